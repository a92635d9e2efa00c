// Package store defines the persistence the agenda service runs on. Every
// appointment operation is checked against the record's ACL for the given
// principal; implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"dg-agenda/internal/model"
)

type Store interface {
	Appointments
	Users
	Sessions

	// Watch delivers an event for every committed appointment mutation until
	// ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan model.Event, error)
	Ping(ctx context.Context) error
	Close()
}

type Appointments interface {
	// ListAppointments returns readable records, newest-created first.
	ListAppointments(ctx context.Context, p model.Principal, limit int) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, p model.Principal, id string) (*model.Appointment, error)
	// CreateAppointment stores a, which must carry its ID; timestamps are set
	// by the store.
	CreateAppointment(ctx context.Context, a *model.Appointment, acl model.ACL) error
	// UpdateAppointment overwrites the editable fields and bumps UpdatedAt.
	UpdateAppointment(ctx context.Context, p model.Principal, a *model.Appointment) error
	// UpdateAppointmentStatus changes only the status, bumps UpdatedAt and
	// returns the stored record.
	UpdateAppointmentStatus(ctx context.Context, p model.Principal, id string, st model.Status) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, p model.Principal, id string) error
}

type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	// AddRoleMember creates the role if needed.
	AddRoleMember(ctx context.Context, role model.Role, userID string) error
	RolesOf(ctx context.Context, userID string) ([]model.Role, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, id, userID string, expiresAt time.Time) error
	SessionActive(ctx context.Context, id string) (bool, error)
	RevokeSession(ctx context.Context, id string) error
}

// ErrUserNotFound is returned by user lookups.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateID is returned by CreateAppointment when the id is taken.
var ErrDuplicateID = errors.New("appointment id already exists")

// ErrDuplicateUser is returned by CreateUser for a taken username.
var ErrDuplicateUser = errors.New("username already taken")
