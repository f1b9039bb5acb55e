// Package repositories implements SQLite and PostgreSQL persistence for the wrapped domain entities.
//
// Queries are built with squirrel so the same repository works with either placeholder style;
// pass the configured driver name to the constructors.
//
// Key Implementations:
//   - [ProfileRepository] : Spotify-linked accounts, token caching and get-or-create on login
//   - [WrapRepository] : Wrap snapshots with ownership-checked reads and deletes
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
