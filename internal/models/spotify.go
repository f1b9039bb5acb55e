package models

import "time"

// SpotifyUser is the subset of the Spotify /me response the app keeps.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Username returns the display name, falling back to the Spotify user id.
func (u SpotifyUser) Username() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// Email returns the internal address assigned to Spotify accounts.
func (u SpotifyUser) Email() string {
	return u.ID + "@spotify.com"
}

// Track represents a Spotify track.
type Track struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	ArtistIDs []string `json:"artist_ids"`
}

// Artist represents a Spotify artist and its genre tags.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// RecentTrack is an entry of the recently played history.
type RecentTrack struct {
	Name     string    `json:"name"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"played_at"`
}
