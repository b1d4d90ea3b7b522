package store

import (
	"context"
	"time"

	"github.com/me/chatadmin/pkg/model"
)

// Store is the credential store the web layer keeps sessions in.
// Sessions are the only portal-local state; everything else lives in
// the chat backend.
type Store interface {
	CreateSession(ctx context.Context, sess *model.Session) error
	// GetSession returns nil, nil when no session with this id exists.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// TouchSession persists a renewed expiry for an existing session.
	TouchSession(ctx context.Context, id string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteExpiredSessions removes sessions past expiry and returns
	// how many were dropped.
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	Close() error
	Migrate(ctx context.Context) error
}
