// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/trailhook/trailhook/internal/authz"
	"github.com/trailhook/trailhook/internal/logging"
)

// MiddlewareConfig holds settings for the router's middleware stack.
type MiddlewareConfig struct {
	// CORSOrigins lists allowed CORS origins. Empty disables CORS.
	CORSOrigins []string

	// RateLimit is the per-IP request budget per RateWindow. Zero
	// disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Middleware provides the router's middleware factories, built on the
// Chi ecosystem.
type Middleware struct {
	cfg MiddlewareConfig
}

// NewMiddleware creates the middleware factory.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Middleware{cfg: cfg}
}

// CORS returns the CORS middleware, or a no-op when no origins are
// configured.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	if len(m.cfg.CORSOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: m.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})
}

// RateLimit returns an IP-keyed rate limiting middleware, or a no-op
// when disabled.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.cfg.RateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		m.cfg.RateLimit,
		m.cfg.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RequestID attaches a request ID to the response header and the
// logging context, honoring an inbound X-Request-ID.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize gates every request behind the authorization engine. The
// engine classifies the route itself, so the middleware wraps public and
// protected routes alike: public routes pass through with an Allow, and
// anything the engine cannot classify is rejected.
func Authorize(engine *authz.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := engine.Authorize(r.Context(), bearerToken(r), r.Method, r.URL.Path, nil)
			if err != nil {
				var authErr *authz.AuthError
				if errors.As(err, &authErr) {
					writeError(w, r, authErr.Status(), string(authErr.Kind), authorizeMessage(authErr))
					return
				}
				writeError(w, r, http.StatusForbidden, "authorization-failed", "request denied")
				return
			}

			if !decision.Allowed() {
				writeError(w, r, http.StatusForbidden, string(decision.Reason), "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential from the Authorization header.
// Returns empty for a missing or non-bearer header; the engine turns
// that into a missing-credential rejection on protected routes.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authorizeMessage picks a client-safe message for an auth failure.
// Internal detail stays in the logs and audit trail.
func authorizeMessage(err *authz.AuthError) string {
	switch err.Kind {
	case authz.KindMissingCredential:
		return "authentication required"
	case authz.KindExpiredCredential:
		return "credential expired"
	case authz.KindInvalidCredential:
		return "invalid credential"
	default:
		return "request denied"
	}
}
