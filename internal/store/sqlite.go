package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/chatadmin/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// WAL mode for concurrent reads from request handlers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the sessions table and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "id", sess.ID)

	var tokenExpires int64
	if !sess.TokenExpiresAt.IsZero() {
		tokenExpires = sess.TokenExpiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, localpart, role, token, created_at, expires_at, token_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Localpart, string(sess.Role), sess.Token,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(), tokenExpires,
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s.logger.Debug("sql", "op", "select", "table", "sessions", "id", id)

	var sess model.Session
	var role string
	var createdAt, expiresAt, tokenExpires int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, localpart, role, token, created_at, expires_at, token_expires_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Localpart, &role, &sess.Token, &createdAt, &expiresAt, &tokenExpires)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess.Role = model.Role(role)
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if tokenExpires > 0 {
		sess.TokenExpiresAt = time.Unix(tokenExpires, 0).UTC()
	}
	return &sess, nil
}

// TouchSession persists a renewed expiry. Touching an unknown id is a
// no-op; the session was dropped concurrently and the caller's copy is
// already on its way out.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, expiresAt time.Time) error {
	s.logger.Debug("sql", "op", "update", "table", "sessions", "id", id)

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`, expiresAt.Unix(), id)
	return err
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "sessions", "id", id)

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("expired sessions removed", "count", n)
	}
	return n, nil
}
