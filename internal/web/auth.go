package web

import (
	"net/http"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
)

// spotifyLogin stores a fresh state token in the session and redirects to Spotify's consent page.
func (a *App) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		a.logger.Error("failed to generate state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s := a.session(r)
	s.Values[keyState] = state
	a.saveSession(w, r, s)

	http.Redirect(w, r, a.spotify.GetAuthURL(state), http.StatusFound)
}

func (a *App) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s := a.session(r)
	expected := sessionString(s, keyState)
	delete(s.Values, keyState)

	fail := func(message string) {
		s.AddFlash(message, flashError)
		a.saveSession(w, r, s)
		http.Redirect(w, r, "/", http.StatusFound)
	}

	if errParam := q.Get("error"); errParam != "" {
		a.logger.Warn("spotify authorization denied", "error", errParam)
		fail("Spotify authentication failed.")
		return
	}
	if expected == "" || q.Get("state") != expected {
		fail("State mismatch. Please try again.")
		return
	}

	code := q.Get("code")
	if code == "" {
		fail("Authorization code not found.")
		return
	}

	tok, err := a.spotify.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		fail("Failed to obtain access token.")
		return
	}

	user, err := a.spotify.Client(r.Context(), tok, nil).CurrentUser(r.Context())
	if err != nil {
		a.logger.Error("failed to fetch spotify user", "error", err)
		fail("Failed to fetch Spotify user information.")
		return
	}

	p, err := a.profiles.Upsert(r.Context(), user, tok)
	if err != nil {
		a.logger.Error("failed to save profile", "spotify_user", user.ID, "error", err)
		fail("Failed to save your profile.")
		return
	}

	if err := a.setAuthCookie(w, p.ID()); err != nil {
		a.logger.Error("failed to issue auth token", "error", err)
		fail("Spotify authentication failed.")
		return
	}

	a.logger.Info("logged in", "profile", p.ID(), "spotify_user", user.ID)
	s.AddFlash("Logged in as "+p.SpotifyUsername(), flashSuccess)
	a.saveSession(w, r, s)
	http.Redirect(w, r, "/", http.StatusFound)
}

// logout forgets the session and auth cookie, then renders the logout page.
func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	s := a.session(r)
	for k := range s.Values {
		delete(s.Values, k)
	}
	s.Options.MaxAge = -1
	a.saveSession(w, r, s)
	a.clearAuthCookie(w)

	a.render(w, http.StatusOK, "logout", Page{
		Title:     "Logged out",
		Theme:     defaultTheme,
		Lang:      models.English,
		Languages: models.Languages,
		Themes:    Themes,
	})
}
