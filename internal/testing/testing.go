// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/wrapped/internal/models"
)

// StubSpotify is an in-memory stand-in for services.SpotifyAPI.
type StubSpotify struct {
	User      models.SpotifyUser
	Tracks    []models.Track
	TopArtist []models.Artist
	Lookup    map[string]models.Artist
	Recent    []models.RecentTrack
	Err       error
	LookupErr error

	mu        sync.Mutex
	Ranges    []models.TimeRange
	LookedUp  [][]string
	RecentErr error
}

func (s *StubSpotify) CurrentUser(ctx context.Context) (models.SpotifyUser, error) {
	return s.User, s.Err
}

func (s *StubSpotify) TopTracks(ctx context.Context, rng models.TimeRange, limit int) ([]models.Track, error) {
	s.mu.Lock()
	s.Ranges = append(s.Ranges, rng)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return head(s.Tracks, limit), nil
}

func (s *StubSpotify) TopArtists(ctx context.Context, rng models.TimeRange, limit int) ([]models.Artist, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return head(s.TopArtist, limit), nil
}

func (s *StubSpotify) RecentlyPlayed(ctx context.Context, limit int) ([]models.RecentTrack, error) {
	if s.RecentErr != nil {
		return nil, s.RecentErr
	}
	return head(s.Recent, limit), nil
}

func (s *StubSpotify) Artists(ctx context.Context, ids []string) ([]models.Artist, error) {
	s.mu.Lock()
	s.LookedUp = append(s.LookedUp, ids)
	s.mu.Unlock()
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	var out []models.Artist
	for _, id := range ids {
		if a, ok := s.Lookup[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func head[T any](items []T, n int) []T {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

// StubDescriber returns "<lang>: description" for every language unless Err is set.
type StubDescriber struct {
	Disabled bool
	Err      error

	mu    sync.Mutex
	Calls []models.Language
}

func (d *StubDescriber) Enabled() bool { return !d.Disabled }

func (d *StubDescriber) Describe(ctx context.Context, stats models.WrapStats, lang models.Language) (string, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, lang)
	d.mu.Unlock()
	if d.Err != nil {
		return "", d.Err
	}
	return string(lang) + ": description", nil
}

// StubMailer records sent messages.
type StubMailer struct {
	Err      error
	Subjects []string
	Bodies   []string
}

func (m *StubMailer) Send(ctx context.Context, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Subjects = append(m.Subjects, subject)
	m.Bodies = append(m.Bodies, body)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
