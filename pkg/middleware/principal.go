// Package middleware provides the HTTP middleware chain: request ids,
// request-scoped logging and the principal resolution that every
// authorization check builds on.
package middleware

import (
	"net/http"

	"github.com/campusware/gatekeeper/pkg/audit"
	"github.com/campusware/gatekeeper/pkg/contextkeys"
	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
)

// PrincipalHeader names the upstream gateway header carrying the caller's
// user id. The gateway authenticates; this service only authorizes.
const PrincipalHeader = "X-Principal-Id"

// RequestID assigns each request a uuid, honoring one supplied upstream.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging attaches the logger to the request context
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Audit attaches the audit logger to the request context
func Audit(logger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Principal resolves the caller named by the gateway header into a request
// context with fresh per-request loaders. A missing or unknown header leaves
// the principal nil; the checks downstream fail closed for anonymous callers,
// so the request itself still passes through. An invalid or unknown principal
// user behaves the same way.
func Principal(store *rbac.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := &rbac.RequestContext{Loaders: rbac.NewLoaders(store)}

			if raw := r.Header.Get(PrincipalHeader); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					user, err := rc.Loaders.User(r.Context(), id)
					if err == nil && user != nil && user.Valid {
						rc.Principal = user
					} else if err != nil && err != rbac.ErrNotFound {
						observability.FromContext(r.Context()).WithError(err).Error("failed to load principal")
						http.Error(w, "internal server error", http.StatusInternalServerError)
						return
					}
				}
			}

			ctx := rbac.WithRequestContext(r.Context(), rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
