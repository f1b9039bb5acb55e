package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Profile is a Spotify-linked account along with its cached OAuth tokens.
type Profile struct {
	id              string
	sequence        int
	spotifyUserID   string
	spotifyUsername string
	email           string
	accessToken     string
	refreshToken    string
	tokenExpiresAt  *time.Time
	bio             string
	favoriteGenres  string
	profilePicture  string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewProfile creates a profile for the given Spotify account.
func NewProfile(user SpotifyUser) *Profile {
	now := time.Now().UTC()
	return &Profile{
		spotifyUserID:   user.ID,
		spotifyUsername: user.Username(),
		email:           user.Email(),
		createdAt:       now,
		updatedAt:       now,
	}
}

func (p *Profile) ID() string                 { return p.id }
func (p *Profile) SetID(id string)            { p.id = id }
func (p *Profile) Sequence() int              { return p.sequence }
func (p *Profile) SetSequence(seq int)        { p.sequence = seq }
func (p *Profile) SpotifyUserID() string      { return p.spotifyUserID }
func (p *Profile) SpotifyUsername() string    { return p.spotifyUsername }
func (p *Profile) Email() string              { return p.email }
func (p *Profile) Bio() string                { return p.bio }
func (p *Profile) FavoriteGenres() string     { return p.favoriteGenres }
func (p *Profile) ProfilePicture() string     { return p.profilePicture }
func (p *Profile) TokenExpiresAt() *time.Time { return p.tokenExpiresAt }
func (p *Profile) CreatedAt() time.Time       { return p.createdAt }
func (p *Profile) UpdatedAt() time.Time       { return p.updatedAt }
func (p *Profile) SetUpdatedAt(t time.Time)   { p.updatedAt = t }
func (p *Profile) String() string             { return p.spotifyUsername }

// SetSpotifyUser refreshes the cached Spotify identity.
func (p *Profile) SetSpotifyUser(user SpotifyUser) {
	p.spotifyUserID = user.ID
	p.spotifyUsername = user.Username()
	p.email = user.Email()
}

// SetDetails updates the user-editable profile fields.
func (p *Profile) SetDetails(bio, favoriteGenres string) {
	p.bio = strings.TrimSpace(bio)
	p.favoriteGenres = strings.TrimSpace(favoriteGenres)
}

// SetProfilePicture stores the object key of an uploaded picture.
func (p *Profile) SetProfilePicture(key string) { p.profilePicture = key }

// Token returns the cached tokens as an [oauth2.Token]. A nil expiry yields a token that never expires.
func (p *Profile) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.accessToken,
		RefreshToken: p.refreshToken,
		TokenType:    "Bearer",
	}
	if p.tokenExpiresAt != nil {
		tok.Expiry = *p.tokenExpiresAt
	}
	return tok
}

// SetToken caches tok. An empty refresh token keeps the previous one, matching Spotify's refresh
// responses which often omit it.
func (p *Profile) SetToken(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	p.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		p.refreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		p.tokenExpiresAt = nil
	} else {
		exp := tok.Expiry.UTC()
		p.tokenExpiresAt = &exp
	}
}

// RestoreTokens sets the raw token columns when loading from storage.
func (p *Profile) RestoreTokens(access, refresh string, expiresAt *time.Time) {
	p.accessToken = access
	p.refreshToken = refresh
	p.tokenExpiresAt = expiresAt
}

// RestoreDetails sets stored fields that have no constructor argument.
func (p *Profile) RestoreDetails(bio, favoriteGenres, picture string, createdAt time.Time) {
	p.bio = bio
	p.favoriteGenres = favoriteGenres
	p.profilePicture = picture
	p.createdAt = createdAt
}

// FavoriteGenreList splits the comma separated favorite genres.
func (p *Profile) FavoriteGenreList() []string {
	var out []string
	for g := range strings.SplitSeq(p.favoriteGenres, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Validate checks if the profile has required fields
func (p *Profile) Validate() error {
	if p.id == "" {
		return fmt.Errorf("profile ID is required")
	}
	if p.spotifyUserID == "" {
		return fmt.Errorf("spotify user ID is required")
	}
	if len(p.bio) > 500 {
		return fmt.Errorf("bio must be at most 500 characters")
	}
	return nil
}
