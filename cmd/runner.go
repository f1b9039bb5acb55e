package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/repositories"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/desertthunder/wrapped/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	db          *sql.DB
	spotify     *services.SpotifyService
	describer   services.Describer
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
	authTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Config, DB, Spotify and Describer are built from the config file on first use when nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	DB          *sql.DB
	Spotify     *services.SpotifyService
	Describer   services.Describer
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		db:          opts.DB,
		spotify:     opts.Spotify,
		describer:   opts.Describer,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
		authTimeout: 2 * time.Minute,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, loginCommand, profilesCommand, wrapsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by the root --config flag unless one was injected.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		path := cmd.String("config")
		config, err := shared.LoadConfigOrDefault(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.configPath = path
	}

	level := r.config.LogLevel
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// Close releases the database connection, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// database opens the configured database and applies pending migrations on first use.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	cfg := r.cfg().Database
	db, err := shared.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(ctx, db, cfg.Driver, r.logger); err != nil {
		db.Close()
		return nil, err
	}

	r.db = db
	return db, nil
}

func (r *Runner) repositories(ctx context.Context) (*repositories.ProfileRepository, *repositories.WrapRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, nil, err
	}
	driver := r.cfg().Database.Driver
	return repositories.NewProfileRepository(db, driver), repositories.NewWrapRepository(db, driver), nil
}

func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	svc, err := services.NewSpotifyService(r.cfg().Credentials.Spotify)
	if err != nil {
		return nil, err
	}
	r.spotify = svc
	return svc, nil
}

func (r *Runner) wrapEngine(wraps tasks.WrapStore) *tasks.WrapEngine {
	if r.describer == nil {
		r.describer = services.NewOpenAIDescriber(r.cfg().Credentials.OpenAI)
	}
	return tasks.NewWrapEngine(wraps, r.describer, r.logger)
}

// resolveProfile finds a profile by id or Spotify user id. An empty ref selects the only stored
// profile.
func (r *Runner) resolveProfile(ctx context.Context, profiles *repositories.ProfileRepository, ref string) (*models.Profile, error) {
	if ref != "" {
		p, err := profiles.Get(ctx, ref)
		if errors.Is(err, shared.ErrProfileNotFound) {
			p, err = profiles.GetBySpotifyID(ctx, ref)
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	all, err := profiles.List(ctx, map[string]any{"limit": 2})
	if err != nil {
		return nil, err
	}
	switch len(all) {
	case 0:
		return nil, fmt.Errorf("%w: no profiles stored, run `wrapped login` first", shared.ErrProfileNotFound)
	case 1:
		return all[0], nil
	default:
		return nil, fmt.Errorf("%w: several profiles stored, pass --profile", shared.ErrMissingArgument)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
