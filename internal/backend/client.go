package backend

import (
	"log/slog"
	"time"

	"github.com/me/chatadmin/pkg/model"
)

// Client bundles the session manager and domain services for one
// request. Construct one per inbound request and bind the restored
// session to it; no client state is shared across requests.
type Client struct {
	Sessions *SessionManager
	Users    *UserService
	Invites  *InviteService
	Circles  *GroupService
	Access   *AccessModelCoordinator
}

// NewClient assembles a client on top of a shared transport. The
// transport is safe for concurrent use; everything session-scoped
// lives in the returned client.
func NewClient(t *Transport, sessionTTL time.Duration, logger *slog.Logger) *Client {
	rc := NewResourceClient(t, logger)
	sessions := NewSessionManager(rc, sessionTTL, logger)

	return &Client{
		Sessions: sessions,
		Users:    NewUserService(rc, sessions, logger),
		Invites:  NewInviteService(rc, sessions, logger),
		Circles:  NewGroupService(rc, sessions, logger),
		Access:   NewAccessModelCoordinator(rc, sessions, logger),
	}
}

// ForSession returns the client with sess bound. Convenience for the
// guard middleware.
func (c *Client) ForSession(sess *model.Session) *Client {
	c.Sessions.Bind(sess)
	return c
}
