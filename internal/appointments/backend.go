package appointments

import (
	"context"

	"dg-agenda/internal/model"
)

// Backend is the remote store bound to one session. Implementations live
// under internal/remote. Errors follow the model taxonomy: model.ErrNotFound
// for a missing record, otherwise something that wraps model.ErrRemote.
type Backend interface {
	// List returns at most limit records, newest-created first.
	List(ctx context.Context, limit int) ([]model.Appointment, error)
	Get(ctx context.Context, id string) (*model.Appointment, error)
	// Create persists fields with the given creator and ACL and returns the
	// stored record.
	Create(ctx context.Context, f model.Fields, creatorID string, acl model.ACL) (*model.Appointment, error)
	// Save overwrites the editable fields of an existing record.
	Save(ctx context.Context, a *model.Appointment) (*model.Appointment, error)
	// SaveStatus writes the status of id and nothing else.
	SaveStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is an open push channel. Events is closed when the channel
// drops or Close is called; Err then tells which.
type Subscription interface {
	Events() <-chan model.Event
	Err() error
	Close() error
}
