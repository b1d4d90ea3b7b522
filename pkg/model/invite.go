package model

import "time"

// InviteKind distinguishes the three invitation flavors.
type InviteKind string

const (
	InviteAccount       InviteKind = "account"
	InviteGroup         InviteKind = "group"
	InvitePasswordReset InviteKind = "password-reset"
)

// Invite is a time-limited token granting account creation, circle
// membership, or a password reset. Revocation is deletion; an expired
// invite eventually reads as not-found on the backend.
type Invite struct {
	ID        string     `json:"id"`
	Kind      InviteKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
	TTL       int64      `json:"ttl"`
	Groups    []string   `json:"groups,omitempty"`
	Localpart string     `json:"localpart,omitempty"`
	Link      string     `json:"link,omitempty"`
}

// IsReset reports whether the invite is a password-reset link.
func (i *Invite) IsReset() bool {
	return i.Kind == InvitePasswordReset
}

// ExpiresAt returns the instant the invite stops being usable.
func (i *Invite) ExpiresAt() time.Time {
	return i.CreatedAt.Add(time.Duration(i.TTL) * time.Second)
}
