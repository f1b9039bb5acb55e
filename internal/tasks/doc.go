// Package tasks builds wraps from a user's Spotify listening data with real-time progress reporting.
//
// # Core Operations
//
//  1. [WrapEngine.Create] : Build and persist a wrap
//     - Maps the timeframe label to a Spotify time range
//     - Fetches the top 50 tracks and top 50 artists, plus recently played tracks
//     - Ranks genres by frequency (ties keep first-seen order)
//     - Generates commentary in every supported language
//     - Stores the wrap through [WrapStore]
//
//  2. [WrapEngine.BulkExport] : Export many wraps at once
//     - Renders each wrap with the formatter package from a worker pool
//     - Writes an export_manifest.json summarizing successes and failures
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Failure Handling
//
// A Spotify failure while fetching top tracks or artists aborts creation and nothing is stored.
// Recently played tracks, the genre fallback lookup, and commentary are best effort: failures are logged
// and the wrap is stored without them.
package tasks
