// Package appointments is the appointment repository: list, create, update,
// status change and delete against a remote Backend on behalf of a session.
package appointments

import (
	"context"
	"fmt"

	"dg-agenda/internal/model"
)

// DefaultMaxRetrieval caps List.
const DefaultMaxRetrieval = 1000

type Repository struct {
	backend Backend
	session *model.Session
	max     int
}

type Option func(*Repository)

// WithMaxRetrieval overrides DefaultMaxRetrieval; n <= 0 is ignored.
func WithMaxRetrieval(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.max = n
		}
	}
}

// New binds b to session, which may be nil for an anonymous caller.
func New(b Backend, session *model.Session, opts ...Option) *Repository {
	r := &Repository{backend: b, session: session, max: DefaultMaxRetrieval}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repository) MaxRetrieval() int { return r.max }

// List returns appointments newest-created first, never more than MaxRetrieval.
func (r *Repository) List(ctx context.Context) ([]model.Appointment, error) {
	list, err := r.backend.List(ctx, r.max)
	if err != nil {
		return nil, model.Remote("list appointments", err)
	}
	if len(list) > r.max {
		list = list[:r.max]
	}
	return list, nil
}

// Create stores a new appointment owned by the session user, readable by
// everyone and writable by the office roles and its creator.
func (r *Repository) Create(ctx context.Context, f model.Fields) (*model.Appointment, error) {
	creator := ""
	if r.session != nil {
		creator = r.session.UserID
	}
	a, err := r.backend.Create(ctx, f, creator, model.DefaultACL(creator))
	if err != nil {
		return nil, model.Remote("create appointment", err)
	}
	return a, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, model.Remote("get appointment", err)
	}
	return a, nil
}

// Update overwrites every editable field of id.
func (r *Repository) Update(ctx context.Context, id string, f model.Fields) (*model.Appointment, error) {
	return r.modify(ctx, "update appointment", id, func(a *model.Appointment) { a.Fields = f })
}

// UpdateStatus changes only the status of id; the other fields are left as
// the backend holds them.
func (r *Repository) UpdateStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, s)
	}
	a, err := r.backend.SaveStatus(ctx, id, s)
	if err != nil {
		return nil, model.Remote("update status", err)
	}
	return a, nil
}

func (r *Repository) modify(ctx context.Context, op, id string, edit func(*model.Appointment)) (*model.Appointment, error) {
	a, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, model.Remote(op, err)
	}
	edit(a)
	saved, err := r.backend.Save(ctx, a)
	if err != nil {
		return nil, model.Remote(op, err)
	}
	return saved, nil
}

// Delete fetches id, then removes it permanently.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.backend.Get(ctx, id); err != nil {
		return model.Remote("delete appointment", err)
	}
	if err := r.backend.Delete(ctx, id); err != nil {
		return model.Remote("delete appointment", err)
	}
	return nil
}

// Subscribe opens the push channel for the appointment collection.
func (r *Repository) Subscribe(ctx context.Context) (Subscription, error) {
	sub, err := r.backend.Subscribe(ctx)
	if err != nil {
		return nil, model.Remote("subscribe", err)
	}
	return sub, nil
}
