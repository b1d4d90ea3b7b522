package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/me/chatadmin/pkg/model"
)

// Context keys for request-scoped data.
type contextKey string

const (
	sessionContextKey   contextKey = "session"
	requestIDContextKey contextKey = "request_id"
)

// SessionFromContext retrieves the session from the request context,
// or nil outside a guarded route.
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// RequireSession resolves a valid session of at least the user role,
// or halts the request. An absent or expired session redirects to the
// login entry point, preserving the originally requested path for the
// post-login redirect.
func (web *Web) RequireSession(next http.Handler) http.Handler {
	return web.requireRole(model.RoleUser, next)
}

// RequireAdminSession additionally requires the admin role. A valid
// session of insufficient role terminates with 403, no redirect.
func (web *Web) RequireAdminSession(next http.Handler) http.Handler {
	return web.requireRole(model.RoleAdmin, next)
}

func (web *Web) requireRole(required model.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := web.resolveSession(w, r)
		if err != nil {
			// A broken session store is an infrastructure fault, not a
			// missing credential.
			respondError(w, RequestIDFromContext(r.Context()), err, web.logger)
			return
		}
		if sess == nil {
			web.redirectToLogin(w, r)
			return
		}
		if !sess.Role.Satisfies(required) {
			respondError(w, RequestIDFromContext(r.Context()),
				model.NewForbidden("admin access required"), web.logger)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveSession loads the session named by the request cookie,
// sliding its expiry forward when activity lands deep in the validity
// window. Returns nil, nil when there is no usable session.
func (web *Web) resolveSession(w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}

	sess, err := web.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	now := time.Now()
	if sess.Expired(now) {
		_ = web.store.DeleteSession(r.Context(), sess.ID)
		return nil, nil
	}
	if sess.Renew(now, web.sessionTTL) {
		// The request proceeds on the in-memory expiry either way; a
		// failed touch only means the next restart forgets the renewal.
		if err := web.store.TouchSession(r.Context(), sess.ID, sess.ExpiresAt); err != nil {
			web.logger.Warn("session renewal not persisted", "error", err)
		}
		web.setSessionCookie(w, sess)
	}
	return sess, nil
}

func (web *Web) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// RequestIDMiddleware generates a request_id and stores it in context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID()
		ctx := context.WithValue(r.Context(), requestIDContextKey, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs requests at INFO level (method, path, status,
// duration).
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
