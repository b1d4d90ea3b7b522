package model

import "time"

// Role is the privilege level attached to a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Satisfies reports whether a session with role r may perform an
// operation requiring the given role.
func (r Role) Satisfies(required Role) bool {
	if required == RoleAdmin {
		return r == RoleAdmin
	}
	return r == RoleUser || r == RoleAdmin
}

// Session is the authenticated context under which portal operations
// run. Token carries the backend credential and is never serialized.
// TokenExpiresAt is the credential's own expiry; the session may slide
// forward on activity but never past it.
type Session struct {
	ID             string    `json:"id"`
	Localpart      string    `json:"localpart"`
	Role           Role      `json:"role"`
	Token          string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	TokenExpiresAt time.Time `json:"-"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Renew slides the expiry forward to now+ttl once less than half the
// window remains, capped by the backend credential expiry when one is
// known. An expired session is never revived. Reports whether the
// expiry changed.
func (s *Session) Renew(now time.Time, ttl time.Duration) bool {
	if s.Expired(now) {
		return false
	}
	if s.ExpiresAt.Sub(now) > ttl/2 {
		return false
	}
	next := now.Add(ttl)
	if !s.TokenExpiresAt.IsZero() && next.After(s.TokenExpiresAt) {
		next = s.TokenExpiresAt
	}
	if !next.After(s.ExpiresAt) {
		return false
	}
	s.ExpiresAt = next
	return true
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
