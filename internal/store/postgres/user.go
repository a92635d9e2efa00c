package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, role, display_name) VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.DisplayName,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicateUser
	}
	return err
}

const userColumns = `id, username, password_hash, role, display_name, created_at, updated_at`

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.user(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.user(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) user(ctx context.Context, q, arg string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx, q, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if isNoRows(err) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) AddRoleMember(ctx context.Context, role model.Role, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO roles (name) VALUES ($1) ON CONFLICT DO NOTHING`, string(role)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO role_members (role, user_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		string(role), userID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) RolesOf(ctx context.Context, userID string) ([]model.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT role FROM role_members WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, model.Role(r))
	}
	return out, rows.Err()
}
