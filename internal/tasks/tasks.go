package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
)

const (
	// FetchLimit is the number of top tracks and artists requested from Spotify.
	FetchLimit = 50
	// TopN is the length of every top list stored on a wrap.
	TopN = 5
	// RecentLimit is the number of recently played tracks stored on a wrap.
	RecentLimit = 5
)

// WrapStore persists newly created wraps.
type WrapStore interface {
	Create(ctx context.Context, w *models.Wrap) error
}

// WrapEngine builds wraps from the Spotify API and stores them.
type WrapEngine struct {
	store     WrapStore
	describer services.Describer
	logger    *log.Logger
}

// NewWrapEngine creates a new WrapEngine. describer may be nil, in which case wraps are stored without commentary.
func NewWrapEngine(store WrapStore, describer services.Describer, logger *log.Logger) *WrapEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &WrapEngine{store: store, describer: describer, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *WrapEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Create builds a wrap of profile's listening for the timeframe label (see [models.Timeframes]) and stores it.
// Unknown labels use the short term range.
func (e *WrapEngine) Create(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	api services.SpotifyAPI,
	profile *models.Profile,
	timeframe string,
) (*models.Wrap, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: wrap store not initialized", shared.ErrServiceUnavailable)
	}
	if api == nil {
		return nil, fmt.Errorf("%w: spotify client not initialized", shared.ErrServiceUnavailable)
	}
	if profile == nil {
		return nil, shared.ErrProfileNotFound
	}
	timeframe = strings.TrimSpace(timeframe)
	if timeframe == "" {
		return nil, fmt.Errorf("%w: timeframe is required", shared.ErrInvalidInput)
	}
	if !slices.Contains(models.Timeframes, timeframe) {
		return nil, fmt.Errorf("%w: unknown timeframe %q", shared.ErrInvalidInput, timeframe)
	}

	stats, err := e.Collect(ctx, progress, api, models.RangeFor(timeframe))
	if err != nil {
		return nil, err
	}

	desc := e.describe(ctx, progress, stats)

	w := models.NewWrap(profile.ID(), timeframe, stats, desc)
	if err := e.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save wrap: %w", err)
	}

	shared.WithLogger(e.logger, "profile", profile.SpotifyUsername()).Info("wrap created", "wrap", w.ID(), "length", timeframe)
	e.sendProgress(progress, saveWrapUpdate(w))
	return w, nil
}

// Collect fetches the user's top lists for rng and reduces them to [models.WrapStats].
//
// Failures fetching top tracks or top artists are returned. Recently played tracks and the
// genre lookup are best effort.
func (e *WrapEngine) Collect(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	api services.SpotifyAPI,
	rng models.TimeRange,
) (models.WrapStats, error) {
	e.sendProgress(progress, fetchTopTracksUpdate(rng))
	tracks, err := api.TopTracks(ctx, rng, FetchLimit)
	if err != nil {
		return models.WrapStats{}, fmt.Errorf("failed to fetch top tracks: %w", err)
	}

	e.sendProgress(progress, fetchTopArtistsUpdate(rng))
	artists, err := api.TopArtists(ctx, rng, FetchLimit)
	if err != nil {
		return models.WrapStats{}, fmt.Errorf("failed to fetch top artists: %w", err)
	}

	e.sendProgress(progress, fetchRecentUpdate())
	recent, err := api.RecentlyPlayed(ctx, RecentLimit)
	if err != nil {
		e.logger.Warn("skipping recently played tracks", "error", err)
		recent = nil
	}

	genreSource := artists
	if !hasGenres(artists) {
		ids := trackArtistIDs(tracks)
		if len(ids) > 0 {
			e.sendProgress(progress, fetchGenresUpdate(len(ids)))
			looked, err := api.Artists(ctx, ids)
			if err != nil {
				e.logger.Warn("genre lookup failed", "artists", len(ids), "error", err)
			} else {
				genreSource = looked
			}
		}
	}

	topSongs := make([]string, 0, TopN)
	for _, t := range head(tracks, TopN) {
		topSongs = append(topSongs, t.Name)
	}
	topArtists := make([]string, 0, TopN)
	for _, a := range head(artists, TopN) {
		topArtists = append(topArtists, a.Name)
	}

	topGenres := TopGenres(genreSource, TopN)
	e.sendProgress(progress, rankGenresUpdate(topGenres))

	return models.WrapStats{
		TopSongs:           topSongs,
		TopArtists:         topArtists,
		TopGenres:          topGenres,
		RecentTracks:       recent,
		NumDistinctArtists: CountDistinct(topArtists),
		NumGenres:          CountDistinct(topGenres),
	}, nil
}

// describe generates commentary for every language concurrently. Failures leave the language empty.
func (e *WrapEngine) describe(ctx context.Context, progress chan<- ProgressUpdate, stats models.WrapStats) models.Descriptions {
	desc := models.Descriptions{}
	if e.describer == nil || !e.describer.Enabled() {
		return desc
	}

	type result struct {
		lang models.Language
		text string
		err  error
	}

	results := make(chan result, len(models.Languages))
	var wg sync.WaitGroup
	for _, lang := range models.Languages {
		wg.Add(1)
		go func(lang models.Language) {
			defer wg.Done()
			text, err := e.describer.Describe(ctx, stats, lang)
			results <- result{lang: lang, text: text, err: err}
		}(lang)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		e.sendProgress(progress, describeUpdate(completed, len(models.Languages), res.lang, res.err))
		if res.err != nil {
			e.logger.Warn("description failed", "lang", res.lang, "error", res.err)
			continue
		}
		desc[res.lang] = res.text
	}
	return desc
}

// TopGenres returns up to n genres across artists ordered by frequency. Ties keep the order in which
// genres were first seen.
func TopGenres(artists []models.Artist, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, a := range artists {
		for _, g := range a.Genres {
			if g == "" {
				continue
			}
			if _, seen := counts[g]; !seen {
				order = append(order, g)
			}
			counts[g]++
		}
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	return head(order, n)
}

// CountDistinct returns the number of distinct non-empty values.
func CountDistinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			seen[item] = struct{}{}
		}
	}
	return len(seen)
}

func hasGenres(artists []models.Artist) bool {
	for _, a := range artists {
		if len(a.Genres) > 0 {
			return true
		}
	}
	return false
}

// trackArtistIDs returns the distinct artist ids of tracks in first-seen order.
func trackArtistIDs(tracks []models.Track) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, t := range tracks {
		for _, id := range t.ArtistIDs {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func head[T any](items []T, n int) []T {
	if n >= 0 && n < len(items) {
		return items[:n]
	}
	return items
}
