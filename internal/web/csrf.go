package web

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/desertthunder/wrapped/internal/server"
	"github.com/gorilla/csrf"
)

const (
	csrfCookie = "wrapped_csrf"
	csrfField  = "csrf_token"
	csrfHeader = "X-CSRF-Token"

	// maxFormBody bounds unsafe request bodies before the form token is read from them.
	maxFormBody = maxUploadSize + (1 << 20)
)

// csrfMiddleware rejects unsafe requests that do not echo the token issued with the page, either
// in the csrf_token form field or the X-CSRF-Token header. The token key is derived from the
// session secret.
func (a *App) csrfMiddleware() server.Middleware {
	key := sha256.Sum256([]byte("csrf:" + a.cfg.Session.Secret))
	protect := csrf.Protect(key[:],
		csrf.CookieName(csrfCookie),
		csrf.FieldName(csrfField),
		csrf.RequestHeader(csrfHeader),
		csrf.Path("/"),
		csrf.Secure(a.cfg.Session.Secure),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(a.csrfFailure)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
				r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
			}
			// Without TLS the Referer of a same-site form post is plain http.
			if r.TLS == nil && !a.cfg.Session.Secure {
				r = r.WithContext(context.WithValue(r.Context(), csrf.PlaintextHTTPContextKey, true))
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (a *App) csrfFailure(w http.ResponseWriter, r *http.Request) {
	a.logger.Warn("rejected request with invalid csrf token", "method", r.Method, "path", r.URL.Path, "reason", csrf.FailureReason(r))

	const message = "Your form expired. Reload the page and try again."
	if strings.Contains(r.Header.Get("Accept"), "application/json") || r.Method == http.MethodDelete {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": message})
		return
	}
	http.Error(w, message, http.StatusForbidden)
}
