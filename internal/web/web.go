package web

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/me/chatadmin/internal/backend"
	"github.com/me/chatadmin/internal/store"
	"github.com/me/chatadmin/pkg/model"
)

// SessionCookieName is the name of the portal session cookie.
const SessionCookieName = "chatadmin_session"

// Web serves the portal's HTTP surface: login, self-service profile
// operations, and the admin API. It holds no per-request state; the
// session travels in the request context.
type Web struct {
	store     store.Store
	transport *backend.Transport
	logger    *slog.Logger

	domain     string
	sessionTTL time.Duration
	secure     bool
}

// Config holds web layer configuration.
type Config struct {
	Domain        string        // service domain appended to bare localparts
	SessionTTL    time.Duration // maximum web session lifetime
	SecureCookies bool          // Secure flag on session cookies
}

// New creates the web layer on top of a session store and a backend
// transport.
func New(st store.Store, transport *backend.Transport, cfg Config, logger *slog.Logger) *Web {
	return &Web{
		store:      st,
		transport:  transport,
		logger:     logger.With("component", "web"),
		domain:     cfg.Domain,
		sessionTTL: cfg.SessionTTL,
		secure:     cfg.SecureCookies,
	}
}

// client returns a backend client bound to the request's session.
// One client per request; nothing is shared across requests.
func (web *Web) client(r *http.Request) *backend.Client {
	return backend.NewClient(web.transport, web.sessionTTL, web.logger).
		ForSession(SessionFromContext(r.Context()))
}

// setSessionCookie sets the session cookie on the response.
func (web *Web) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   web.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
	})
}

// clearSessionCookie removes the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// newSessionID generates a cryptographically secure random session ID.
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return "sess_" + hex.EncodeToString(b), nil
}
