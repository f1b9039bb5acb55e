package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
	tu "github.com/desertthunder/wrapped/internal/testing"
	"golang.org/x/oauth2"
)

type mockTokenSource struct {
	tokens []*oauth2.Token
	err    error
	calls  int
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	if m.err != nil {
		return nil, m.err
	}
	tok := m.tokens[min(m.calls, len(m.tokens)-1)]
	m.calls++
	return tok, nil
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tu.FakeAccessToken,
		RefreshToken: tu.FakeRefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Missing Credentials", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Endpoints", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.apiURL != defaultAPIURL {
				t.Errorf("expected default api url, got %s", srv.apiURL)
			}
			if srv.config.Endpoint.TokenURL != "https://accounts.spotify.com/api/token" {
				t.Errorf("unexpected token url %s", srv.config.Endpoint.TokenURL)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		cfg := shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost/cb", ShowDialog: true}
		srv, _ := NewSpotifyService(cfg)

		u, err := url.Parse(srv.GetAuthURL("state-123"))
		if err != nil {
			t.Fatalf("invalid url: %v", err)
		}

		q := u.Query()
		if q.Get("state") != "state-123" {
			t.Errorf("expected state state-123, got %s", q.Get("state"))
		}
		if q.Get("scope") != "user-top-read user-read-recently-played" {
			t.Errorf("unexpected scope %q", q.Get("scope"))
		}
		if q.Get("response_type") != "code" || q.Get("client_id") != "id" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("show_dialog") != "true" {
			t.Error("expected show_dialog=true")
		}
		if q.Has("access_type") {
			t.Errorf("unexpected access_type %q", q.Get("access_type"))
		}
		if q.Get("redirect_uri") != "http://localhost/cb" {
			t.Errorf("unexpected redirect %s", q.Get("redirect_uri"))
		}
	})

	t.Run("WithRedirectURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://a/cb"})
		local := srv.WithRedirectURL("http://127.0.0.1:9999/callback")

		if local.RedirectURL() != "http://127.0.0.1:9999/callback" {
			t.Errorf("unexpected redirect %s", local.RedirectURL())
		}
		if srv.RedirectURL() != "http://a/cb" {
			t.Error("original service should be unchanged")
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		srv, _ := NewSpotifyService(fake.Config())

		tok, err := srv.Exchange(context.Background(), tu.FakeCode)
		if err != nil {
			t.Fatalf("exchange failed: %v", err)
		}
		if tok.AccessToken != tu.FakeAccessToken || tok.RefreshToken != tu.FakeRefreshToken {
			t.Errorf("unexpected token %+v", tok)
		}
		if time.Until(tok.Expiry) < 50*time.Minute {
			t.Errorf("expected expiry about an hour out, got %v", tok.Expiry)
		}

		if _, err := srv.Exchange(context.Background(), "bad"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if _, err := srv.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrMissingCode) {
			t.Errorf("expected ErrMissingCode, got %v", err)
		}
	})
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	newClient := func(t *testing.T, tok *oauth2.Token, cb TokenCallback) (*tu.FakeSpotify, *SpotifyClient) {
		fake := tu.NewFakeSpotify(t)
		fake.Tracks = []models.Track{
			{ID: "t1", Name: "Song One", Artists: []string{"A"}, ArtistIDs: []string{"a1"}},
			{ID: "t2", Name: "Song Two", Artists: []string{"B", "C"}, ArtistIDs: []string{"b1", "c1"}},
		}
		fake.Artists = []models.Artist{{ID: "a1", Name: "A", Genres: []string{"pop", "dance pop"}}}
		fake.Recent = []models.RecentTrack{{Name: "Recent", Artist: "A", PlayedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}}
		fake.Lookup = map[string]models.Artist{"b1": {ID: "b1", Name: "B", Genres: []string{"rock"}}}

		srv, err := NewSpotifyService(fake.Config())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		return fake, srv.Client(ctx, tok, cb)
	}

	t.Run("CurrentUser", func(t *testing.T) {
		_, client := newClient(t, validToken(), nil)

		user, err := client.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("CurrentUser() error = %v", err)
		}
		if user.ID != "spotify-user" || user.Username() != "Test Listener" {
			t.Errorf("unexpected user %+v", user)
		}
	})

	t.Run("TopTracks", func(t *testing.T) {
		fake, client := newClient(t, validToken(), nil)

		tracks, err := client.TopTracks(ctx, models.MediumTerm, 50)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 2 || tracks[1].Name != "Song Two" {
			t.Fatalf("unexpected tracks %+v", tracks)
		}
		if len(tracks[1].ArtistIDs) != 2 || tracks[1].ArtistIDs[1] != "c1" {
			t.Errorf("unexpected artist ids %v", tracks[1].ArtistIDs)
		}

		reqs := fake.Requests()
		if len(reqs) != 1 || !strings.Contains(reqs[0], "time_range=medium_term") || !strings.Contains(reqs[0], "limit=50") {
			t.Errorf("unexpected request %v", reqs)
		}
	})

	t.Run("TopArtists", func(t *testing.T) {
		_, client := newClient(t, validToken(), nil)

		artists, err := client.TopArtists(ctx, models.ShortTerm, 50)
		if err != nil {
			t.Fatalf("TopArtists() error = %v", err)
		}
		if len(artists) != 1 || len(artists[0].Genres) != 2 {
			t.Errorf("unexpected artists %+v", artists)
		}
	})

	t.Run("RecentlyPlayed", func(t *testing.T) {
		fake, client := newClient(t, validToken(), nil)

		recent, err := client.RecentlyPlayed(ctx, 5)
		if err != nil {
			t.Fatalf("RecentlyPlayed() error = %v", err)
		}
		if len(recent) != 1 || recent[0].Artist != "A" || recent[0].PlayedAt.Year() != 2024 {
			t.Errorf("unexpected recent %+v", recent)
		}

		reqs := fake.Requests()
		if len(reqs) != 1 || !strings.Contains(reqs[0], "limit=5") {
			t.Errorf("unexpected request %v", reqs)
		}
	})

	t.Run("Artists", func(t *testing.T) {
		_, client := newClient(t, validToken(), nil)

		artists, err := client.Artists(ctx, []string{"b1", "missing"})
		if err != nil {
			t.Fatalf("Artists() error = %v", err)
		}
		if len(artists) != 1 || artists[0].Genres[0] != "rock" {
			t.Errorf("unexpected artists %+v", artists)
		}
	})

	t.Run("Expired Token Is Refreshed Once", func(t *testing.T) {
		var mu sync.Mutex
		var refreshed []*oauth2.Token

		expired := validToken()
		expired.Expiry = time.Now().Add(-time.Minute)

		fake, client := newClient(t, expired, func(tok *oauth2.Token) {
			mu.Lock()
			refreshed = append(refreshed, tok)
			mu.Unlock()
		})

		if _, err := client.CurrentUser(ctx); err != nil {
			t.Fatalf("CurrentUser() error = %v", err)
		}
		if _, err := client.TopTracks(ctx, models.ShortTerm, 50); err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}

		if fake.AccessToken() != tu.FakeRefreshed {
			t.Fatal("expected the fake to have issued a refreshed token")
		}
		if len(refreshed) != 1 {
			t.Fatalf("expected one refresh callback, got %d", len(refreshed))
		}
		if refreshed[0].AccessToken != tu.FakeRefreshed {
			t.Errorf("unexpected refreshed token %+v", refreshed[0])
		}
	})

	t.Run("Refresh Failure", func(t *testing.T) {
		expired := validToken()
		expired.Expiry = time.Now().Add(-time.Minute)

		fake, client := newClient(t, expired, nil)
		fake.FailRefresh = true

		_, err := client.TopTracks(ctx, models.ShortTerm, 50)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("Rejected Token", func(t *testing.T) {
		tok := validToken()
		tok.AccessToken = "stale"
		_, client := newClient(t, tok, nil)

		_, err := client.CurrentUser(ctx)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		fake, client := newClient(t, validToken(), nil)
		fake.FailMe = true

		_, err := client.CurrentUser(ctx)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("Skips Callback For Initial Token", func(t *testing.T) {
		calls := 0
		source := &refreshableTokenSource{
			source:   &mockTokenSource{tokens: []*oauth2.Token{{AccessToken: "initial"}}},
			callback: func(*oauth2.Token) { calls++ },
			last:     "initial",
		}

		if _, err := source.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected no callback, got %d", calls)
		}
	})

	t.Run("Calls Callback Once Per New Token", func(t *testing.T) {
		var captured []string
		source := &refreshableTokenSource{
			source: &mockTokenSource{tokens: []*oauth2.Token{
				{AccessToken: "a"}, {AccessToken: "b"}, {AccessToken: "b"},
			}},
			callback: func(tok *oauth2.Token) { captured = append(captured, tok.AccessToken) },
		}

		for range 3 {
			source.Token()
		}

		if strings.Join(captured, ",") != "a,b" {
			t.Errorf("expected callbacks for a,b got %v", captured)
		}
	})

	t.Run("Nil Callback", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{tokens: []*oauth2.Token{{AccessToken: "a"}}}}
		if _, err := source.Token(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Wraps Errors", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{err: errors.New("invalid_grant")}}
		if _, err := source.Token(); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})
}
