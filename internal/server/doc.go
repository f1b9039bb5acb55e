// Package server provides HTTP routing, middleware, auth tokens and the CLI OAuth callback handler.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /wraps/{id}").
//
// # Middleware
//
//   - [RequestID] propagates or generates X-Request-ID
//   - [Logger] writes one structured log line per request
//   - [Recover] converts handler panics into 500 responses
//   - [Metrics] counts requests and observes latency in Prometheus
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the callback of the `wrapped login` command. It validates the state parameter,
// exchanges the authorization code for tokens, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Auth Tokens
//
// The web app keeps the logged-in profile in an HS256 JWT cookie created by [GenerateToken] and read back
// with [ProfileIDFromToken].
package server
