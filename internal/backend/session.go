package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/me/chatadmin/pkg/model"
)

const sessionPath = "/admin/api/v1/session"

// SessionManager owns one caller's session: login, logout, role-gated
// resolution, and session-scoped call sequences. An instance is bound
// to a single request context and must never be shared across
// concurrent operations.
type SessionManager struct {
	rc     *ResourceClient
	maxTTL time.Duration
	logger *slog.Logger
	now    func() time.Time
	sess   *model.Session
}

// NewSessionManager creates an unbound manager. maxTTL caps session
// lifetime even when the backend credential lives longer.
func NewSessionManager(rc *ResourceClient, maxTTL time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		rc:     rc,
		maxTTL: maxTTL,
		logger: logger.With("component", "sessions"),
		now:    time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Bind attaches an existing session, typically restored from the web
// layer's credential store at the start of a request.
func (m *SessionManager) Bind(sess *model.Session) {
	m.sess = sess
}

type loginRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	Role      model.Role `json:"role"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Login authenticates against the backend and binds the resulting
// session. A rejected credential surfaces as Unauthenticated; the
// password is never logged.
func (m *SessionManager) Login(ctx context.Context, address, password string) (*model.Session, error) {
	res, err := fetch[loginResponse](ctx, m.rc, nil, http.MethodPost, sessionPath, loginRequest{
		Address:  address,
		Password: password,
	})
	if err != nil {
		switch model.KindOf(err) {
		case model.KindUnauthenticated, model.KindForbidden:
			return nil, model.NewUnauthenticated("invalid username or password")
		}
		return nil, err
	}

	now := m.now().UTC()
	sess := &model.Session{
		Localpart:      localpartOf(address),
		Role:           res.Role,
		Token:          res.Token,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.maxTTL),
		TokenExpiresAt: res.ExpiresAt,
	}
	if sess.Role == "" {
		sess.Role = model.RoleUser
	}
	// The session may not outlive the backend credential, not even
	// through renewal.
	if !res.ExpiresAt.IsZero() && res.ExpiresAt.Before(sess.ExpiresAt) {
		sess.ExpiresAt = res.ExpiresAt
	}

	m.sess = sess
	m.logger.Info("login", "localpart", sess.Localpart, "role", sess.Role)
	return sess, nil
}

// Current returns the bound session if it is present, unexpired, and of
// at least the required role. It never fabricates a session. Activity
// on a session deep into its window slides the expiry forward, up to
// the backend credential's own lifetime; the web layer persists the
// renewed expiry.
func (m *SessionManager) Current(required model.Role) (*model.Session, error) {
	if m.sess == nil {
		return nil, model.NewUnauthenticated("no active session")
	}
	now := m.now()
	if m.sess.Expired(now) {
		m.sess = nil
		return nil, model.NewUnauthenticated("session expired")
	}
	if !m.sess.Role.Satisfies(required) {
		return nil, model.NewForbidden("admin session required")
	}
	if m.sess.Renew(now, m.maxTTL) {
		m.logger.Debug("session renewed",
			"localpart", m.sess.Localpart, "expires_at", m.sess.ExpiresAt)
	}
	return m.sess, nil
}

// Logout invalidates the session server-side and locally. Idempotent:
// a second logout, or one for a session the backend already dropped,
// is not an error.
func (m *SessionManager) Logout(ctx context.Context) error {
	if m.sess == nil {
		return nil
	}
	sess := m.sess
	m.sess = nil

	err := send(ctx, m.rc, sess, http.MethodDelete, sessionPath, nil)
	switch model.KindOf(err) {
	case model.KindNotFound, model.KindUnauthenticated:
		return nil
	}
	if err != nil {
		return err
	}
	m.logger.Info("logout", "localpart", sess.Localpart)
	return nil
}

// Scoped resolves a session of the required role once and runs fn with
// it, so a multi-call read-modify-write sequence observes one
// consistent credential. The pooled transport holds no per-sequence
// resources, so there is nothing further to release on exit.
func (m *SessionManager) Scoped(ctx context.Context, required model.Role, fn func(ctx context.Context, sess *model.Session) error) error {
	sess, err := m.Current(required)
	if err != nil {
		return err
	}
	return fn(ctx, sess)
}

// localpartOf strips the domain from a chat address.
func localpartOf(address string) string {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		return address[:i]
	}
	return address
}
