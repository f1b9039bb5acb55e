// Package services wraps the external APIs used by the wrapped app.
//
// # Spotify
//
// [SpotifyService] owns the OAuth2 configuration: it builds authorization URLs, exchanges codes
// and hands out per-user [SpotifyClient]s. A client checks the token before every request and
// refreshes it synchronously once when it has expired; the refreshed token is reported through a
// callback so callers can persist it. Requests are rate limited and traced.
//
// # Descriptions
//
// [OpenAIDescriber] asks a chat completion model for a short personality blurb per language.
// Without an API key it is disabled and callers skip descriptions.
//
// # Mail and storage
//
// [SMTPMailer] sends contact form messages; [MinioStore] keeps profile pictures in an
// S3-compatible bucket.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthFailed] : code exchange failed
//   - [shared.ErrRefreshFailed] : the expired token could not be refreshed
//   - [shared.ErrTokenExpired] : Spotify rejected the token
//   - [shared.ErrAPIRequest] : any other non-2xx response or transport failure
//   - [shared.ErrServiceDisabled] : optional service not configured
package services
