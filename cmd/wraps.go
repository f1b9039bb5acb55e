package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/wrapped/internal/formatter"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/repositories"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/desertthunder/wrapped/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func joinTimeframes() string {
	quoted := make([]string, len(models.Timeframes))
	for i, tf := range models.Timeframes {
		quoted[i] = fmt.Sprintf("%q", tf)
	}
	return strings.Join(quoted, ", ")
}

// WrapsList prints a profile's wraps, newest first.
func (r *Runner) WrapsList(ctx context.Context, cmd *cli.Command) error {
	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}
	profile, err := r.resolveProfile(ctx, profiles, cmd.String("profile"))
	if err != nil {
		return err
	}

	all, err := wraps.List(ctx, map[string]any{
		"profile_id": profile.ID(),
		"length":     cmd.String("length"),
		"limit":      cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(all, cmd.Bool("pretty"))
	}

	if len(all) == 0 {
		return r.writePlain("No wraps yet for %s. Run 'wrapped wraps create'.\n", profile.SpotifyUsername())
	}

	r.writePlainHeader(fmt.Sprintf("Wraps of %s", profile.SpotifyUsername()))
	for _, w := range all {
		r.writePlain("%s  %-8s  %s\n", w.ID(), w.Length(), w.CreatedAt().Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// WrapsCreate fetches the profile's listening data and stores a new wrap, printing progress as it goes.
func (r *Runner) WrapsCreate(ctx context.Context, cmd *cli.Command) error {
	timeframe := cmd.String("timeframe")
	if !slices.Contains(models.Timeframes, timeframe) {
		return fmt.Errorf("%w: timeframe must be one of %s", shared.ErrInvalidArgument, joinTimeframes())
	}

	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}
	profile, err := r.resolveProfile(ctx, profiles, cmd.String("profile"))
	if err != nil {
		return err
	}

	create, err := r.creator(profiles, wraps, profile)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	if !asJSON {
		r.writePlain("Creating %s wrap for %s...\n\n", timeframe, profile.SpotifyUsername())
	}

	progressCh := make(chan tasks.ProgressUpdate, 20)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			if asJSON {
				continue
			}
			switch update.Phase {
			case tasks.Describe:
				r.writePlain("   %s\n", update.Message)
			case tasks.SaveWrap:
				r.writePlain("\n📝 %s\n", update.Message)
			default:
				r.writePlain("📥 %s\n", update.Message)
			}
		}
	}()

	wrap, err := create(ctx, progressCh, timeframe)
	close(progressCh)
	<-printed

	if err != nil {
		return fmt.Errorf("failed to create wrap: %w", err)
	}

	if asJSON {
		return r.writeJSON(wrap, cmd.Bool("pretty"))
	}

	stats := wrap.Stats()
	r.writePlain("\n")
	r.writePlainHeader("Wrap Created!")
	r.writePlain("ID: %s\n", wrap.ID())
	r.writePlain("Top songs: %d, top artists: %d, top genres: %d\n", len(stats.TopSongs), len(stats.TopArtists), len(stats.TopGenres))
	r.writePlain("Distinct artists: %d, genres explored: %d\n", stats.NumDistinctArtists, stats.NumGenres)
	return r.writePlain("\nView it with: wrapped wraps show %s\n", wrap.ID())
}

// creator binds the wrap engine to profile's Spotify session. Refreshed tokens are written back to
// the profile.
func (r *Runner) creator(profiles *repositories.ProfileRepository, wraps *repositories.WrapRepository, profile *models.Profile) (func(context.Context, chan<- tasks.ProgressUpdate, string) (*models.Wrap, error), error) {
	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	tok := profile.Token()
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: run `wrapped login` again", shared.ErrNoRefreshToken)
	}

	engine := r.wrapEngine(wraps)
	return func(ctx context.Context, progress chan<- tasks.ProgressUpdate, timeframe string) (*models.Wrap, error) {
		api := svc.Client(ctx, profile.Token(), func(t *oauth2.Token) {
			profile.SetToken(t)
			if err := profiles.UpdateTokens(ctx, profile.ID(), t); err != nil {
				r.logger.Error("failed to store refreshed token", "profile", profile.ID(), "error", err)
			}
		})
		return engine.Create(ctx, progress, api, profile, timeframe)
	}, nil
}

// findWrap loads the wrap named by the id argument, scoped to --profile when given.
func (r *Runner) findWrap(ctx context.Context, cmd *cli.Command) (*models.Wrap, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return nil, fmt.Errorf("%w: wrap id", shared.ErrMissingArgument)
	}

	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return nil, err
	}

	if ref := cmd.String("profile"); ref != "" {
		profile, err := r.resolveProfile(ctx, profiles, ref)
		if err != nil {
			return nil, err
		}
		return wraps.GetForProfile(ctx, id, profile.ID())
	}
	return wraps.Get(ctx, id)
}

// WrapsShow prints the slides of a wrap, or the single slide named by --page.
func (r *Runner) WrapsShow(ctx context.Context, cmd *cli.Command) error {
	lang, ok := models.ParseLanguage(cmd.String("lang"))
	if !ok {
		return fmt.Errorf("%w: unsupported language %q", shared.ErrInvalidArgument, cmd.String("lang"))
	}

	wrap, err := r.findWrap(ctx, cmd)
	if err != nil {
		return err
	}

	pres := models.NewPresentation(wrap, lang)
	slides := pres.Slides()
	if page := cmd.Int("page"); page >= 0 {
		slide, err := pres.Slide(page)
		if err != nil {
			return err
		}
		slides = []models.Slide{slide}
	}

	for i, slide := range slides {
		if i > 0 {
			r.writePlain("\n")
		}
		r.writeSlide(slide, pres.Len())
	}
	return nil
}

func (r *Runner) writeSlide(s models.Slide, total int) {
	r.writePlainHeader(fmt.Sprintf("[%d/%d] %s", s.Page+1, total, s.Title))
	switch s.Kind {
	case models.SlideTopSongs, models.SlideTopArtists, models.SlideTopGenres:
		for i, item := range s.Items {
			r.writePlain("  %d. %s\n", i+1, item)
		}
	case models.SlideSummary:
		for _, item := range s.Items {
			r.writePlain("  %s\n", item)
		}
	case models.SlideDistinctArtists, models.SlideGenreCount:
		r.writePlain("  %d\n", s.Count)
	case models.SlideCommentary:
		r.writePlain("  %s\n", s.Text)
	}
}

// WrapsExport writes a wrap to stdout or a file. With --all it exports every wrap of the profile
// into a directory alongside a manifest.
func (r *Runner) WrapsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if cmd.Bool("all") {
		return r.exportAll(ctx, cmd, format)
	}

	wrap, err := r.findWrap(ctx, cmd)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" {
		data, err := formatter.Export(wrap, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(wrap, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("wrap exported", "wrap", wrap.ID(), "path", path)
	return r.writePlain("✓ Exported to %s\n", path)
}

func (r *Runner) exportAll(ctx context.Context, cmd *cli.Command, format formatter.Format) error {
	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}
	profile, err := r.resolveProfile(ctx, profiles, cmd.String("profile"))
	if err != nil {
		return err
	}

	all, err := wraps.List(ctx, map[string]any{"profile_id": profile.ID()})
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return r.writePlain("No wraps to export for %s.\n", profile.SpotifyUsername())
	}

	r.writePlain("Exporting %d wraps as %s...\n\n", len(all), format)

	progressCh := make(chan tasks.ProgressUpdate, len(all))
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := r.wrapEngine(wraps).BulkExport(ctx, progressCh, all, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		ProfileID:  profile.ID(),
	})
	close(progressCh)
	<-printed

	if err != nil {
		return fmt.Errorf("bulk export failed: %w", err)
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Exported: %d/%d\n", result.Succeeded, result.Total)
	if result.Failed > 0 {
		r.writePlain("\nFailed to export %d wraps:\n", result.Failed)
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.Wrap.ID(), res.Error)
			}
		}
	}
	return r.writePlain("Manifest: %s\n", result.ManifestPath)
}

// WrapsDelete removes a wrap.
func (r *Runner) WrapsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: wrap id", shared.ErrMissingArgument)
	}

	profiles, wraps, err := r.repositories(ctx)
	if err != nil {
		return err
	}

	if ref := cmd.String("profile"); ref != "" {
		var profile *models.Profile
		if profile, err = r.resolveProfile(ctx, profiles, ref); err != nil {
			return err
		}
		err = wraps.DeleteForProfile(ctx, id, profile.ID())
	} else {
		err = wraps.Delete(ctx, id)
	}
	if err != nil {
		return err
	}

	return r.writePlain("✓ Deleted wrap %s\n", id)
}
