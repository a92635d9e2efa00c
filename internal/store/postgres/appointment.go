package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

const apptColumns = `id, date, time, duration, interlocutor, purpose, location,
	status, comments, COALESCE(creator_id, ''), created_at, updated_at`

// readable is the row-level read check; $1 is the user id, $2 the role names.
const readable = `(public_read OR $1 = ANY(write_users) OR write_roles && $2::text[])`

func scanAppointment(row pgx.Row, a *model.Appointment) error {
	return row.Scan(&a.ID, &a.Date, &a.Time, &a.Duration, &a.Interlocutor, &a.Purpose,
		&a.Location, &a.Status, &a.Comments, &a.CreatorID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) ListAppointments(ctx context.Context, p model.Principal, limit int) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apptColumns+`
		 FROM appointments
		 WHERE `+readable+`
		 ORDER BY created_at DESC, id
		 LIMIT $3`, p.UserID, roleNames(p.Roles), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAppointment(ctx context.Context, p model.Principal, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE `+readable+` AND id = $3`,
		p.UserID, roleNames(p.Roles), id,
	), a)
	if isNoRows(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment, acl model.ACL) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var creator *string
	if a.CreatorID != "" {
		creator = &a.CreatorID
	}
	writeUsers := acl.WriteUsers
	if writeUsers == nil {
		writeUsers = []string{}
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO appointments
		   (id, date, time, duration, interlocutor, purpose, location, status, comments,
		    creator_id, public_read, write_roles, write_users)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 RETURNING created_at, updated_at`,
		a.ID, a.Date, a.Time, a.Duration, a.Interlocutor, a.Purpose, a.Location,
		string(a.Status), a.Comments, creator, acl.PublicRead, roleNames(acl.WriteRoles), writeUsers,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicateID
		}
		return err
	}
	if err := notify(ctx, tx, model.EventCreated, a.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockForWrite loads the record's ACL under a row lock and checks p against it.
func lockForWrite(ctx context.Context, tx pgx.Tx, p model.Principal, id string) error {
	var (
		acl   model.ACL
		roles []string
	)
	err := tx.QueryRow(ctx,
		`SELECT public_read, write_roles, write_users FROM appointments WHERE id = $1 FOR UPDATE`, id,
	).Scan(&acl.PublicRead, &roles, &acl.WriteUsers)
	if isNoRows(err) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	for _, r := range roles {
		acl.WriteRoles = append(acl.WriteRoles, model.Role(r))
	}
	if !acl.CanRead(p) {
		return model.ErrNotFound
	}
	if !acl.CanWrite(p) {
		return model.ErrPermissionDenied
	}
	return nil
}

func (s *Store) UpdateAppointment(ctx context.Context, p model.Principal, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockForWrite(ctx, tx, p, a.ID); err != nil {
		return err
	}
	err = scanAppointment(tx.QueryRow(ctx,
		`UPDATE appointments
		 SET date=$1, time=$2, duration=$3, interlocutor=$4, purpose=$5, location=$6,
		     status=$7, comments=$8, updated_at=clock_timestamp()
		 WHERE id=$9
		 RETURNING `+apptColumns,
		a.Date, a.Time, a.Duration, a.Interlocutor, a.Purpose, a.Location,
		string(a.Status), a.Comments, a.ID,
	), a)
	if err != nil {
		return err
	}
	if err := notify(ctx, tx, model.EventUpdated, a.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, p model.Principal, id string, st model.Status) (*model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockForWrite(ctx, tx, p, id); err != nil {
		return nil, err
	}
	a := &model.Appointment{}
	err = scanAppointment(tx.QueryRow(ctx,
		`UPDATE appointments SET status=$1, updated_at=clock_timestamp()
		 WHERE id=$2
		 RETURNING `+apptColumns,
		string(st), id,
	), a)
	if err != nil {
		return nil, err
	}
	if err := notify(ctx, tx, model.EventUpdated, id); err != nil {
		return nil, err
	}
	return a, tx.Commit(ctx)
}

func (s *Store) DeleteAppointment(ctx context.Context, p model.Principal, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockForWrite(ctx, tx, p, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return err
	}
	if err := notify(ctx, tx, model.EventDeleted, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
