package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WrapStats holds the aggregates computed from the Spotify API for one timeframe.
type WrapStats struct {
	TopSongs           []string      `json:"top_songs"`
	TopArtists         []string      `json:"top_artists"`
	TopGenres          []string      `json:"top_genres"`
	RecentTracks       []RecentTrack `json:"recent_tracks"`
	NumDistinctArtists int           `json:"num_distinct_artists"`
	NumGenres          int           `json:"num_genres"`
}

// Descriptions holds the generated commentary, keyed by language.
type Descriptions map[Language]string

// Wrap is a persisted snapshot of a profile's listening statistics.
type Wrap struct {
	id           string
	sequence     int
	profileID    string
	length       string
	stats        WrapStats
	descriptions Descriptions
	createdAt    time.Time
}

// NewWrap creates a wrap for profileID covering the timeframe label length.
func NewWrap(profileID, length string, stats WrapStats, desc Descriptions) *Wrap {
	if desc == nil {
		desc = Descriptions{}
	}
	return &Wrap{
		profileID:    profileID,
		length:       length,
		stats:        normalizeStats(stats),
		descriptions: desc,
		createdAt:    time.Now().UTC(),
	}
}

func normalizeStats(s WrapStats) WrapStats {
	if s.TopSongs == nil {
		s.TopSongs = []string{}
	}
	if s.TopArtists == nil {
		s.TopArtists = []string{}
	}
	if s.TopGenres == nil {
		s.TopGenres = []string{}
	}
	if s.RecentTracks == nil {
		s.RecentTracks = []RecentTrack{}
	}
	return s
}

func (w *Wrap) ID() string                 { return w.id }
func (w *Wrap) SetID(id string)            { w.id = id }
func (w *Wrap) Sequence() int              { return w.sequence }
func (w *Wrap) SetSequence(seq int)        { w.sequence = seq }
func (w *Wrap) ProfileID() string          { return w.profileID }
func (w *Wrap) Length() string             { return w.length }
func (w *Wrap) Stats() WrapStats           { return w.stats }
func (w *Wrap) CreatedAt() time.Time       { return w.createdAt }
func (w *Wrap) SetCreatedAt(t time.Time)   { w.createdAt = t }
func (w *Wrap) Descriptions() Descriptions { return w.descriptions }

// Description returns the commentary for lang, or "" when none was generated.
func (w *Wrap) Description(lang Language) string {
	return w.descriptions[lang]
}

// Validate checks if the wrap has required fields
func (w *Wrap) Validate() error {
	if w.id == "" {
		return fmt.Errorf("wrap ID is required")
	}
	if w.profileID == "" {
		return fmt.Errorf("profile ID is required")
	}
	if w.length == "" {
		return fmt.Errorf("wrap length is required")
	}
	return nil
}

type wrapJSON struct {
	ID           string              `json:"id"`
	ProfileID    string              `json:"profile_id"`
	Length       string              `json:"length"`
	CreatedAt    time.Time           `json:"date_time"`
	Descriptions map[Language]string `json:"descriptions"`
	WrapStats
}

// MarshalJSON renders the wrap for exports and JSON CLI output.
func (w *Wrap) MarshalJSON() ([]byte, error) {
	return json.Marshal(wrapJSON{
		ID:           w.id,
		ProfileID:    w.profileID,
		Length:       w.length,
		CreatedAt:    w.createdAt,
		Descriptions: w.descriptions,
		WrapStats:    w.stats,
	})
}
