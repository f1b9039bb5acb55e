package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/server"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/gorilla/sessions"
)

const (
	authCookie = "wrapped_auth"

	keyState = "spotify_auth_state"
	keyTheme = "theme"
	keyLang  = "lang"

	flashSuccess = "success"
	flashError   = "error"
)

// Themes that can be selected from the settings page.
var Themes = []string{"holiday", "dark", "light"}

const defaultTheme = "light"

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

func newSessionStore(cfg shared.SessionConfig) sessions.Store {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (a *App) sessionName() string {
	if a.cfg.Session.Name == "" {
		return "wrapped_session"
	}
	return a.cfg.Session.Name
}

// session returns the request's session. A cookie that no longer decodes (for example after the
// secret was rotated) yields a fresh session.
func (a *App) session(r *http.Request) *sessions.Session {
	s, err := a.sessions.Get(r, a.sessionName())
	if err != nil {
		a.logger.Debug("discarding unreadable session", "error", err)
	}
	return s
}

func (a *App) saveSession(w http.ResponseWriter, r *http.Request, s *sessions.Session) {
	if err := s.Save(r, w); err != nil {
		a.logger.Error("failed to save session", "error", err)
	}
}

// flash queues message for the next page and saves the session.
func (a *App) flash(w http.ResponseWriter, r *http.Request, level, message string) {
	s := a.session(r)
	s.AddFlash(message, level)
	a.saveSession(w, r, s)
}

// redirectWithFlash queues a flash and redirects to target.
func (a *App) redirectWithFlash(w http.ResponseWriter, r *http.Request, level, message, target string) {
	a.flash(w, r, level, message)
	http.Redirect(w, r, target, http.StatusFound)
}

// popFlashes removes the queued flashes from s. The caller must save the session.
func popFlashes(s *sessions.Session) []Flash {
	var out []Flash
	for _, level := range []string{flashSuccess, flashError} {
		for _, v := range s.Flashes(level) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Level: level, Message: msg})
			}
		}
	}
	return out
}

func sessionString(s *sessions.Session, key string) string {
	v, _ := s.Values[key].(string)
	return v
}

func themeOf(s *sessions.Session) string {
	if t := sessionString(s, keyTheme); t != "" {
		return t
	}
	return defaultTheme
}

func languageOf(s *sessions.Session) models.Language {
	if l, ok := models.ParseLanguage(sessionString(s, keyLang)); ok {
		return l
	}
	return models.English
}

// setAuthCookie logs profileID in.
func (a *App) setAuthCookie(w http.ResponseWriter, profileID string) error {
	ttl := a.cfg.Session.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	token, err := server.GenerateToken(profileID, []byte(a.cfg.Session.JWTSecret), ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   a.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *App) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// profileID returns the profile named by the auth cookie without loading it.
func (a *App) profileID(r *http.Request) (string, error) {
	c, err := r.Cookie(authCookie)
	if err != nil || c.Value == "" {
		return "", shared.ErrNotAuthenticated
	}
	return server.ProfileIDFromToken(c.Value, []byte(a.cfg.Session.JWTSecret))
}

// currentProfile loads the logged-in profile. A valid cookie for a deleted profile counts as anonymous.
func (a *App) currentProfile(r *http.Request) (*models.Profile, error) {
	id, err := a.profileID(r)
	if err != nil {
		return nil, err
	}
	p, err := a.profiles.Get(r.Context(), id)
	if errors.Is(err, shared.ErrProfileNotFound) {
		return nil, shared.ErrNotAuthenticated
	}
	return p, err
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p *models.Profile)

// authed redirects anonymous users to /login.
func (a *App) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.currentProfile(r)
		if err != nil {
			if !errors.Is(err, shared.ErrNotAuthenticated) && !errors.Is(err, shared.ErrInvalidToken) {
				a.logger.Error("failed to load profile", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r, p)
	}
}
