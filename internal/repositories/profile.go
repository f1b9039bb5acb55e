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
	"golang.org/x/oauth2"
)

var profileColumns = []string{
	"id", "sequence", "spotify_user_id", "spotify_username", "email",
	"access_token", "refresh_token", "token_expires_at",
	"bio", "favorite_genres", "profile_picture", "created_at", "updated_at",
}

// ProfileRepository implements [models.Repository] for [models.Profile] persistence.
type ProfileRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewProfileRepository creates a new [ProfileRepository] for db opened with driver.
func NewProfileRepository(db *sql.DB, driver string) *ProfileRepository {
	return &ProfileRepository{db: db, sb: Builder(driver)}
}

// Create inserts a new profile into the database with generated ID and sequence
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	p.SetID(shared.GenerateID())
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "profiles")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	p.SetSequence(sequence)

	tok := p.Token()
	query, args, err := r.sb.Insert("profiles").
		Columns(profileColumns...).
		Values(
			p.ID(), sequence, p.SpotifyUserID(), p.SpotifyUsername(), p.Email(),
			tok.AccessToken, tok.RefreshToken, nullTime(p.TokenExpiresAt()),
			p.Bio(), p.FavoriteGenres(), p.ProfilePicture(), p.CreatedAt(), p.UpdatedAt(),
		).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by ID
func (r *ProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	return r.getBy(ctx, sq.Eq{"id": id}, id)
}

// GetBySpotifyID retrieves the profile linked to a Spotify user id.
func (r *ProfileRepository) GetBySpotifyID(ctx context.Context, spotifyUserID string) (*models.Profile, error) {
	return r.getBy(ctx, sq.Eq{"spotify_user_id": spotifyUserID}, spotifyUserID)
}

func (r *ProfileRepository) getBy(ctx context.Context, where sq.Eq, key string) (*models.Profile, error) {
	query, args, err := r.sb.Select(profileColumns...).From("profiles").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrProfileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// Update writes every mutable column of p.
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	p.SetUpdatedAt(now)
	tok := p.Token()

	query, args, err := r.sb.Update("profiles").
		Set("spotify_username", p.SpotifyUsername()).
		Set("email", p.Email()).
		Set("access_token", tok.AccessToken).
		Set("refresh_token", tok.RefreshToken).
		Set("token_expires_at", nullTime(p.TokenExpiresAt())).
		Set("bio", p.Bio()).
		Set("favorite_genres", p.FavoriteGenres()).
		Set("profile_picture", p.ProfilePicture()).
		Set("updated_at", now).
		Where(sq.Eq{"id": p.ID()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectOneRow(result, shared.ErrProfileNotFound, p.ID())
}

// UpdateTokens persists a refreshed token for the profile with id.
func (r *ProfileRepository) UpdateTokens(ctx context.Context, id string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("%w: nil token", shared.ErrInvalidArgument)
	}

	update := r.sb.Update("profiles").
		Set("access_token", tok.AccessToken).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if tok.RefreshToken != "" {
		update = update.Set("refresh_token", tok.RefreshToken)
	}
	if tok.Expiry.IsZero() {
		update = update.Set("token_expires_at", nil)
	} else {
		update = update.Set("token_expires_at", tok.Expiry.UTC())
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return expectOneRow(result, shared.ErrProfileNotFound, id)
}

// Upsert gets or creates the profile for user and caches tok on it.
func (r *ProfileRepository) Upsert(ctx context.Context, user models.SpotifyUser, tok *oauth2.Token) (*models.Profile, error) {
	p, err := r.GetBySpotifyID(ctx, user.ID)
	switch {
	case errors.Is(err, shared.ErrProfileNotFound):
		p = models.NewProfile(user)
		p.SetToken(tok)
		if err := r.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	case err != nil:
		return nil, err
	}

	p.SetSpotifyUser(user)
	p.SetToken(tok)
	if err := r.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a profile and all of its wraps in one transaction.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Delete("wraps").Where(sq.Eq{"profile_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete wraps: %w", err)
	}

	query, args, err = r.sb.Delete("profiles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := expectOneRow(result, shared.ErrProfileNotFound, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// List retrieves all profiles matching the given criteria ordered by sequence.
//
// Supported criteria: "spotify_user_id" (string), "limit" (int).
func (r *ProfileRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Profile, error) {
	sel := r.sb.Select(profileColumns...).From("profiles").OrderBy("sequence ASC")
	if id, ok := criteria["spotify_user_id"].(string); ok && id != "" {
		sel = sel.Where(sq.Eq{"spotify_user_id": id})
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
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return profiles, nil
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		id, spotifyID, username, email string
		access, refresh                string
		bio, genres, picture           string
		sequence                       int
		expiresAt                      sql.NullTime
		createdAt, updatedAt           time.Time
	)

	err := row.Scan(
		&id, &sequence, &spotifyID, &username, &email,
		&access, &refresh, &expiresAt,
		&bio, &genres, &picture, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p := models.NewProfile(models.SpotifyUser{ID: spotifyID, DisplayName: username})
	p.SetID(id)
	p.SetSequence(sequence)
	p.RestoreDetails(bio, genres, picture, createdAt)
	p.SetUpdatedAt(updatedAt)

	var exp *time.Time
	if expiresAt.Valid {
		t := expiresAt.Time
		exp = &t
	}
	p.RestoreTokens(access, refresh, exp)
	return p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
