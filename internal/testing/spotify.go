package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
)

// Values accepted by [FakeSpotify].
const (
	FakeCode         = "good-code"
	FakeAccessToken  = "access-token"
	FakeRefreshToken = "refresh-token"
	FakeRefreshed    = "refreshed-token"
)

// FakeSpotify serves the accounts and Web API endpoints used by the app from an [httptest.Server].
type FakeSpotify struct {
	Server *httptest.Server

	User    models.SpotifyUser
	Tracks  []models.Track
	Artists []models.Artist
	Lookup  map[string]models.Artist
	Recent  []models.RecentTrack

	// FailExchange and FailRefresh make the token endpoint reject the grant.
	FailExchange bool
	FailRefresh  bool
	// FailMe makes /me return 500.
	FailMe bool

	mu          sync.Mutex
	accessToken string
	requests    []string
}

// NewFakeSpotify starts a fake server that is closed when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		User:        models.SpotifyUser{ID: "spotify-user", DisplayName: "Test Listener"},
		accessToken: FakeAccessToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.token)
	mux.HandleFunc("GET /v1/me", f.authed(f.me))
	mux.HandleFunc("GET /v1/me/top/tracks", f.authed(f.topTracks))
	mux.HandleFunc("GET /v1/me/top/artists", f.authed(f.topArtists))
	mux.HandleFunc("GET /v1/me/player/recently-played", f.authed(f.recentlyPlayed))
	mux.HandleFunc("GET /v1/artists", f.authed(f.artists))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns Spotify settings pointing at the fake server.
func (f *FakeSpotify) Config() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://127.0.0.1:8000/spotify/callback",
		AuthURL:      f.Server.URL + "/authorize",
		TokenURL:     f.Server.URL + "/api/token",
		APIURL:       f.Server.URL + "/v1/",
	}
}

// Requests returns the request paths (with query) the API endpoints received.
func (f *FakeSpotify) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// AccessToken returns the token the API currently accepts.
func (f *FakeSpotify) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessToken
}

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if id, secret, ok := r.BasicAuth(); !ok || id != "client-id" || secret != "client-secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if f.FailExchange || r.PostForm.Get("code") != FakeCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  f.AccessToken(),
			"refresh_token": FakeRefreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	case "refresh_token":
		if f.FailRefresh || r.PostForm.Get("refresh_token") != FakeRefreshToken {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.mu.Lock()
		f.accessToken = FakeRefreshed
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": FakeRefreshed,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeSpotify) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.RequestURI())
		want := f.accessToken
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+want {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"status": 401, "message": "The access token expired"},
			})
			return
		}
		next(w, r)
	}
}

func (f *FakeSpotify) me(w http.ResponseWriter, r *http.Request) {
	if f.FailMe {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"status": 500, "message": "boom"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": f.User.ID, "display_name": f.User.DisplayName})
}

func (f *FakeSpotify) topTracks(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for _, t := range f.Tracks {
		items = append(items, map[string]any{"id": t.ID, "name": t.Name, "artists": simpleArtists(t)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (f *FakeSpotify) topArtists(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for _, a := range f.Artists {
		items = append(items, fullArtist(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (f *FakeSpotify) recentlyPlayed(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for _, rt := range f.Recent {
		items = append(items, map[string]any{
			"track":     map[string]any{"name": rt.Name, "artists": []map[string]string{{"name": rt.Artist}}},
			"played_at": rt.PlayedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (f *FakeSpotify) artists(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for id := range strings.SplitSeq(r.URL.Query().Get("ids"), ",") {
		if a, ok := f.Lookup[id]; ok {
			items = append(items, fullArtist(a))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": items})
}

func simpleArtists(t models.Track) []map[string]string {
	out := []map[string]string{}
	for i, name := range t.Artists {
		a := map[string]string{"name": name}
		if i < len(t.ArtistIDs) {
			a["id"] = t.ArtistIDs[i]
		}
		out = append(out, a)
	}
	return out
}

func fullArtist(a models.Artist) map[string]any {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return map[string]any{"id": a.ID, "name": a.Name, "genres": genres}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
