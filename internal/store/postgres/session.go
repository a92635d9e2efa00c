package postgres

import (
	"context"
	"time"
)

func (s *Store) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1,$2,$3)`,
		id, userID, expiresAt,
	)
	return err
}

func (s *Store) SessionActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1 AND NOT revoked AND expires_at > NOW())`, id,
	).Scan(&active)
	return active, err
}

// RevokeSession is idempotent.
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET revoked = true WHERE id = $1`, id)
	return err
}
