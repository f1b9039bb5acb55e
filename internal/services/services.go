// package services defines the interfaces the app uses to reach external HTTP APIs
//
// Spotify, OpenAI, SMTP, S3-compatible object storage
package services

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
)

// SpotifyAPI is the per-user view of the Spotify Web API needed to build wraps.
type SpotifyAPI interface {
	// CurrentUser returns the account the token belongs to.
	CurrentUser(ctx context.Context) (models.SpotifyUser, error)

	// TopTracks returns up to limit of the user's top tracks for the range.
	TopTracks(ctx context.Context, rng models.TimeRange, limit int) ([]models.Track, error)

	// TopArtists returns up to limit of the user's top artists for the range.
	TopArtists(ctx context.Context, rng models.TimeRange, limit int) ([]models.Artist, error)

	// RecentlyPlayed returns up to limit recently played tracks, newest first.
	RecentlyPlayed(ctx context.Context, limit int) ([]models.RecentTrack, error)

	// Artists looks up full artist objects (with genres) by id.
	Artists(ctx context.Context, ids []string) ([]models.Artist, error)
}

// Describer generates short commentary about a wrap.
type Describer interface {
	Describe(ctx context.Context, stats models.WrapStats, lang models.Language) (string, error)
	Enabled() bool
}

// Mailer delivers contact form messages.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// ObjectStore stores uploaded profile pictures.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
	Remove(ctx context.Context, key string) error
}
