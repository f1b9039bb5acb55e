// Package models defines domain entities and persistence interfaces for the wrapped service.
//
// The package contains three categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs describing Spotify data
//   - [SpotifyUser] : The authenticated Spotify account
//   - [Track] : A top track with its artists
//   - [Artist] : A top artist with genre tags
//   - [RecentTrack] : A recently played track
//
// 2. Persistent Entities: Database-backed models
//   - [Profile] : A Spotify-linked account with cached OAuth tokens
//   - [Wrap] : A snapshot of listening statistics for one timeframe
//
// 3. Presentation: [Presentation] pages a stored [Wrap] into eight [Slide]s.
//
// JSON list columns are encoded with [EncodeList] and decoded with [DecodeList]; an empty list is stored as "[]".
package models
