package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
)

var wrapColumns = []string{
	"id", "sequence", "profile_id", "length",
	"top_songs", "top_artists", "top_genres", "recent_tracks",
	"num_distinct_artists", "num_genres",
	"description_en", "description_az", "description_ru", "created_at",
}

// WrapRepository implements [models.Repository] for [models.Wrap] persistence.
type WrapRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewWrapRepository creates a new [WrapRepository] for db opened with driver.
func NewWrapRepository(db *sql.DB, driver string) *WrapRepository {
	return &WrapRepository{db: db, sb: Builder(driver)}
}

// Create inserts a new wrap with generated ID and sequence.
func (r *WrapRepository) Create(ctx context.Context, w *models.Wrap) error {
	w.SetID(shared.GenerateID())
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	stats := w.Stats()
	songs, err := models.EncodeList(stats.TopSongs)
	if err != nil {
		return err
	}
	artists, err := models.EncodeList(stats.TopArtists)
	if err != nil {
		return err
	}
	genres, err := models.EncodeList(stats.TopGenres)
	if err != nil {
		return err
	}
	recent, err := models.EncodeList(stats.RecentTracks)
	if err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "wraps")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	w.SetSequence(sequence)

	query, args, err := r.sb.Insert("wraps").
		Columns(wrapColumns...).
		Values(
			w.ID(), sequence, w.ProfileID(), w.Length(),
			songs, artists, genres, recent,
			stats.NumDistinctArtists, stats.NumGenres,
			w.Description(models.English), w.Description(models.Azerbaijani), w.Description(models.Russian),
			w.CreatedAt(),
		).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert wrap: %w", err)
	}
	return nil
}

// Get retrieves a wrap by ID regardless of owner.
func (r *WrapRepository) Get(ctx context.Context, id string) (*models.Wrap, error) {
	return r.getBy(ctx, sq.Eq{"id": id}, id)
}

// GetForProfile retrieves a wrap by ID only when it belongs to profileID.
func (r *WrapRepository) GetForProfile(ctx context.Context, id, profileID string) (*models.Wrap, error) {
	return r.getBy(ctx, sq.Eq{"id": id, "profile_id": profileID}, id)
}

func (r *WrapRepository) getBy(ctx context.Context, where sq.Eq, id string) (*models.Wrap, error) {
	query, args, err := r.sb.Select(wrapColumns...).From("wraps").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	w, err := scanWrap(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrWrapNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wrap: %w", err)
	}
	return w, nil
}

// Delete removes a wrap by ID.
func (r *WrapRepository) Delete(ctx context.Context, id string) error {
	return r.deleteWhere(ctx, sq.Eq{"id": id}, id)
}

// DeleteForProfile removes a wrap only when it belongs to profileID.
func (r *WrapRepository) DeleteForProfile(ctx context.Context, id, profileID string) error {
	return r.deleteWhere(ctx, sq.Eq{"id": id, "profile_id": profileID}, id)
}

func (r *WrapRepository) deleteWhere(ctx context.Context, where sq.Eq, id string) error {
	query, args, err := r.sb.Delete("wraps").Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete wrap: %w", err)
	}
	return expectOneRow(result, shared.ErrWrapNotFound, id)
}

// DeleteAllForProfile removes every wrap owned by profileID and returns how many were deleted.
func (r *WrapRepository) DeleteAllForProfile(ctx context.Context, profileID string) (int64, error) {
	query, args, err := r.sb.Delete("wraps").Where(sq.Eq{"profile_id": profileID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete wraps: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves wraps matching criteria, newest first.
//
// Supported criteria: "profile_id" (string), "length" (string), "limit" (int).
func (r *WrapRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Wrap, error) {
	sel := r.sb.Select(wrapColumns...).From("wraps").OrderBy("created_at DESC", "sequence DESC")

	if profileID, ok := criteria["profile_id"].(string); ok && profileID != "" {
		sel = sel.Where(sq.Eq{"profile_id": profileID})
	}
	if length, ok := criteria["length"].(string); ok && length != "" {
		sel = sel.Where(sq.Eq{"length": length})
	}
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		sel = sel.Limit(uint64(limit))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wraps: %w", err)
	}
	defer rows.Close()

	wraps := []*models.Wrap{}
	for rows.Next() {
		w, err := scanWrap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wrap: %w", err)
		}
		wraps = append(wraps, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return wraps, nil
}

func scanWrap(row scanner) (*models.Wrap, error) {
	var (
		id, profileID, length           string
		songs, artists, genres, recent  string
		descEN, descAZ, descRU          string
		sequence, numArtists, numGenres int
		createdAt                       time.Time
	)

	err := row.Scan(
		&id, &sequence, &profileID, &length,
		&songs, &artists, &genres, &recent,
		&numArtists, &numGenres,
		&descEN, &descAZ, &descRU, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	stats := models.WrapStats{NumDistinctArtists: numArtists, NumGenres: numGenres}
	if stats.TopSongs, err = models.DecodeList[string](songs); err != nil {
		return nil, err
	}
	if stats.TopArtists, err = models.DecodeList[string](artists); err != nil {
		return nil, err
	}
	if stats.TopGenres, err = models.DecodeList[string](genres); err != nil {
		return nil, err
	}
	if stats.RecentTracks, err = models.DecodeList[models.RecentTrack](recent); err != nil {
		return nil, err
	}

	w := models.NewWrap(profileID, length, stats, models.Descriptions{
		models.English:     descEN,
		models.Azerbaijani: descAZ,
		models.Russian:     descRU,
	})
	w.SetID(id)
	w.SetSequence(sequence)
	w.SetCreatedAt(createdAt)
	return w, nil
}
