package tasks

import (
	"fmt"

	"github.com/desertthunder/wrapped/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchTopTracks Phase = iota
	FetchTopArtists
	FetchRecent
	FetchGenres
	RankGenres
	Describe
	SaveWrap
	ExportWrap
)

func (p Phase) String() string {
	switch p {
	case FetchTopTracks:
		return "fetch_top_tracks"
	case FetchTopArtists:
		return "fetch_top_artists"
	case FetchRecent:
		return "fetch_recent"
	case FetchGenres:
		return "fetch_genres"
	case RankGenres:
		return "rank_genres"
	case Describe:
		return "describe"
	case SaveWrap:
		return "save_wrap"
	case ExportWrap:
		return "export_wrap"
	default:
		return ""
	}
}

func fetchTopTracksUpdate(rng models.TimeRange) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTopTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching top tracks (%s)...", rng),
	}
}

func fetchTopArtistsUpdate(rng models.TimeRange) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTopArtists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching top artists (%s)...", rng),
	}
}

func fetchRecentUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecent,
		Step:    1,
		Total:   1,
		Message: "Fetching recently played tracks...",
	}
}

func fetchGenresUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchGenres,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up genres for %d artists...", count),
	}
}

func rankGenresUpdate(genres []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RankGenres,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ranked %d top genres", len(genres)),
		Data:    genres,
	}
}

func describeUpdate(step, total int, lang models.Language, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   Describe,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s commentary: %v", step, total, lang.Name(), err),
		}
	}
	return ProgressUpdate{
		Phase:   Describe,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s commentary", step, total, lang.Name()),
	}
}

func saveWrapUpdate(w *models.Wrap) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveWrap,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrap saved: %s (ID: %s)", w.Length(), w.ID()),
		Data:    w,
	}
}

func exportCompletedUpdate(step, total int, w *models.Wrap, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportWrap,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, w.Length(), path),
	}
}

func exportFailedUpdate(step, total int, w *models.Wrap, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportWrap,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, w.Length(), err),
	}
}
