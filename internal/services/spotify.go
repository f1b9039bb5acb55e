package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL = "https://api.spotify.com/v1/"
	// maxArtistIDs is the Spotify limit for the several-artists endpoint.
	maxArtistIDs = 50
)

// Scopes requested during login.
var Scopes = []string{spotifyauth.ScopeUserTopRead, spotifyauth.ScopeUserReadRecentlyPlayed}

// TokenCallback receives a token after it was refreshed.
type TokenCallback func(*oauth2.Token)

// SpotifyService holds the OAuth2 configuration and creates per-user API clients.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	showDialog bool
	limiter    *rate.Limiter
	transport  http.RoundTripper
}

// NewSpotifyService creates a Spotify service from credentials. Empty endpoint settings fall back
// to Spotify's public endpoints.
func NewSpotifyService(cfg shared.SpotifyConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	authURL, tokenURL, apiURL := cfg.AuthURL, cfg.TokenURL, cfg.APIURL
	if authURL == "" {
		authURL = spotifyauth.AuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiURL:     apiURL,
		showDialog: cfg.ShowDialog,
		limiter:    rate.NewLimiter(limit, 1),
		transport:  otelhttp.NewTransport(http.DefaultTransport),
	}, nil
}

// WithRedirectURL returns a copy of the service that uses redirect as the OAuth callback,
// used by the CLI login which listens on its own port.
func (s *SpotifyService) WithRedirectURL(redirect string) *SpotifyService {
	cp := *s
	conf := *s.config
	conf.RedirectURL = redirect
	cp.config = &conf
	return &cp
}

// RedirectURL returns the configured OAuth callback.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if s.showDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return s.config.AuthCodeURL(state, opts...)
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: s.transport})
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, shared.ErrMissingCode
	}
	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// Client returns an API client acting with tok. onRefresh, when non-nil, is called with every
// token obtained by refreshing.
//
// ctx is only used for token refresh requests and must outlive the client.
func (s *SpotifyService) Client(ctx context.Context, tok *oauth2.Token, onRefresh TokenCallback) *SpotifyClient {
	ts := &refreshableTokenSource{
		source:   s.config.TokenSource(s.oauthContext(ctx), tok),
		callback: onRefresh,
		last:     tok.AccessToken,
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(tok, ts),
			Base:   &rateLimitedTransport{base: s.transport, limiter: s.limiter},
		},
	}
	return &SpotifyClient{api: spotify.New(httpClient, spotify.WithBaseURL(s.apiURL))}
}

// refreshableTokenSource reports refreshed tokens and marks refresh failures with [shared.ErrRefreshFailed].
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback TokenCallback
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := r.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if tok.AccessToken != r.last {
		r.last = tok.AccessToken
		if r.callback != nil {
			r.callback(tok)
		}
	}
	return tok, nil
}

type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	return t.base.RoundTrip(req)
}

// SpotifyClient implements [SpotifyAPI] on top of the zmb3 Spotify client.
type SpotifyClient struct {
	api *spotify.Client
}

// CurrentUser returns the account the token belongs to.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (models.SpotifyUser, error) {
	u, err := c.api.CurrentUser(ctx)
	if err != nil {
		return models.SpotifyUser{}, apiError("current user", err)
	}
	return models.SpotifyUser{ID: u.ID, DisplayName: u.DisplayName}, nil
}

// TopTracks returns the user's top tracks for rng.
func (c *SpotifyClient) TopTracks(ctx context.Context, rng models.TimeRange, limit int) ([]models.Track, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(limit), spotify.Timerange(spotify.Range(rng)))
	if err != nil {
		return nil, apiError("top tracks", err)
	}

	tracks := make([]models.Track, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		track := models.Track{ID: string(t.ID), Name: t.Name}
		for _, a := range t.Artists {
			track.Artists = append(track.Artists, a.Name)
			track.ArtistIDs = append(track.ArtistIDs, string(a.ID))
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// TopArtists returns the user's top artists for rng.
func (c *SpotifyClient) TopArtists(ctx context.Context, rng models.TimeRange, limit int) ([]models.Artist, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(limit), spotify.Timerange(spotify.Range(rng)))
	if err != nil {
		return nil, apiError("top artists", err)
	}

	artists := make([]models.Artist, 0, len(page.Artists))
	for _, a := range page.Artists {
		artists = append(artists, toArtist(a))
	}
	return artists, nil
}

// RecentlyPlayed returns up to limit recently played tracks.
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, limit int) ([]models.RecentTrack, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: spotify.Numeric(limit)})
	if err != nil {
		return nil, apiError("recently played", err)
	}

	recent := make([]models.RecentTrack, 0, len(items))
	for _, item := range items {
		rt := models.RecentTrack{Name: item.Track.Name, PlayedAt: item.PlayedAt}
		if len(item.Track.Artists) > 0 {
			rt.Artist = item.Track.Artists[0].Name
		}
		recent = append(recent, rt)
	}
	return recent, nil
}

// Artists looks up artists by id in batches of 50.
func (c *SpotifyClient) Artists(ctx context.Context, ids []string) ([]models.Artist, error) {
	var artists []models.Artist
	for start := 0; start < len(ids); start += maxArtistIDs {
		end := min(start+maxArtistIDs, len(ids))

		batch := make([]spotify.ID, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, spotify.ID(id))
		}

		full, err := c.api.GetArtists(ctx, batch...)
		if err != nil {
			return nil, apiError("artists", err)
		}
		for _, a := range full {
			if a != nil {
				artists = append(artists, toArtist(*a))
			}
		}
	}
	return artists, nil
}

func toArtist(a spotify.FullArtist) models.Artist {
	return models.Artist{ID: string(a.ID), Name: a.Name, Genres: a.Genres}
}

// apiError maps client errors onto the shared sentinels.
func apiError(op string, err error) error {
	if errors.Is(err, shared.ErrRefreshFailed) || errors.Is(err, shared.ErrTimeout) {
		return fmt.Errorf("spotify %s: %w", op, err)
	}

	var se spotify.Error
	if errors.As(err, &se) {
		if se.Status == http.StatusUnauthorized {
			return fmt.Errorf("%w: spotify %s: %s", shared.ErrTokenExpired, op, se.Message)
		}
		return fmt.Errorf("%w: spotify %s: status %d: %s", shared.ErrAPIRequest, op, se.Status, se.Message)
	}
	return fmt.Errorf("%w: spotify %s: %v", shared.ErrAPIRequest, op, err)
}
