package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wrapped/internal/repositories"
	"github.com/desertthunder/wrapped/internal/server"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/desertthunder/wrapped/internal/tasks"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// AppOpts contains the dependencies of [App]. Mailer and Objects may be nil, which disables the
// contact form and picture uploads respectively.
type AppOpts struct {
	Config    *shared.Config
	Logger    *log.Logger
	DB        *sql.DB
	Spotify   *services.SpotifyService
	Describer services.Describer
	Mailer    services.Mailer
	Objects   services.ObjectStore
	Registry  *prometheus.Registry
}

// App serves the web application.
type App struct {
	cfg       *shared.Config
	logger    *log.Logger
	db        *sql.DB
	profiles  *repositories.ProfileRepository
	wraps     *repositories.WrapRepository
	spotify   *services.SpotifyService
	engine    *tasks.WrapEngine
	mailer    services.Mailer
	objects   services.ObjectStore
	sessions  sessions.Store
	registry  *prometheus.Registry
	metrics   *server.Metrics
	templates map[string]*template.Template
}

// NewApp wires the handlers to their dependencies and parses the templates.
func NewApp(opts AppOpts) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is required", shared.ErrMissingConfig)
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("%w: database is required", shared.ErrServiceUnavailable)
	}
	if opts.Spotify == nil {
		return nil, fmt.Errorf("%w: spotify service is required", shared.ErrServiceUnavailable)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	cfg := opts.Config
	wraps := repositories.NewWrapRepository(opts.DB, cfg.Database.Driver)

	metrics, err := server.NewMetrics(opts.Registry, metricsRoute(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		logger:    opts.Logger,
		db:        opts.DB,
		profiles:  repositories.NewProfileRepository(opts.DB, cfg.Database.Driver),
		wraps:     wraps,
		spotify:   opts.Spotify,
		engine:    tasks.NewWrapEngine(wraps, opts.Describer, opts.Logger),
		mailer:    opts.Mailer,
		objects:   opts.Objects,
		sessions:  newSessionStore(cfg.Session),
		registry:  opts.Registry,
		metrics:   metrics,
		templates: templates,
	}, nil
}

// Handler returns the application's routes wrapped in the middleware stack.
func (a *App) Handler() http.Handler {
	router := server.NewBasicRouter()
	router.Use(server.RequestID, server.Recover(a.logger), server.Logger(a.logger), a.metrics.Middleware, a.csrfMiddleware())

	static, _ := fs.Sub(staticFS, "static")
	router.Handle(http.MethodGet, "/static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	router.HandleFunc(http.MethodGet, "/{$}", a.index)
	router.HandleFunc(http.MethodGet, "/login", a.spotifyLogin)
	router.HandleFunc(http.MethodGet, "/spotify/login", a.spotifyLogin)
	router.HandleFunc(http.MethodGet, "/spotify/callback", a.spotifyCallback)
	router.HandleFunc(http.MethodGet, "/logout", a.logout)

	router.HandleFunc(http.MethodGet, "/contact", a.contact)
	router.HandleFunc(http.MethodPost, "/contact", a.contact)

	router.HandleFunc(http.MethodGet, "/settings", a.authed(a.settings))
	router.HandleFunc(http.MethodPost, "/settings/delete-account", a.deleteAccount)
	router.HandleFunc(http.MethodGet, "/settings/theme/{theme}", a.setTheme)
	router.HandleFunc(http.MethodGet, "/settings/language/{lang}", a.setLanguage)

	router.HandleFunc(http.MethodGet, "/profile", a.authed(a.profile))
	router.HandleFunc(http.MethodPost, "/profile", a.authed(a.updateProfile))
	router.HandleFunc(http.MethodGet, "/profile/picture", a.authed(a.profilePicture))

	router.HandleFunc(http.MethodGet, "/wraps", a.authed(a.listWraps))
	router.HandleFunc(http.MethodPost, "/wraps", a.authed(a.createWrap))
	router.HandleFunc(http.MethodGet, "/wraps/{id}", a.authed(a.showWrap))
	router.HandleFunc(http.MethodGet, "/wraps/{id}/slides/{page}", a.authed(a.showSlide))
	router.HandleFunc(http.MethodGet, "/wraps/{id}/export", a.authed(a.exportWrap))
	router.HandleFunc(http.MethodDelete, "/wraps/{id}", a.deleteWrap)
	router.HandleFunc(http.MethodPost, "/wraps/{id}/delete", a.deleteWrap)

	router.HandleFunc(http.MethodGet, "/healthz", a.healthz)
	router.Handle(http.MethodGet, metricsRoute(a.cfg), server.MetricsHandler(a.registry))

	return router
}

func metricsRoute(cfg *shared.Config) string {
	if cfg.Telemetry.MetricsRoute == "" {
		return "/metrics"
	}
	return cfg.Telemetry.MetricsRoute
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
