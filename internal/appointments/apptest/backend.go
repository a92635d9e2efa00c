// Package apptest provides an in-memory appointments.Backend with hooks for
// injecting failures and holding calls in flight.
package apptest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/model"
)

// ErrOffline is a convenient injected failure.
var ErrOffline = fmt.Errorf("%w: network unreachable", model.ErrRemote)

// Hook runs before every backend operation; a non-nil error fails it. Hooks
// may block to keep a call in flight.
type Hook func(ctx context.Context, op, id string) error

type Backend struct {
	mu    sync.Mutex
	items []model.Appointment // newest first
	seq   int
	subs  map[*subscription]struct{}
	hook  Hook
	calls map[string]int

	// Emit controls whether mutations publish events to subscribers.
	Emit bool
}

var _ appointments.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{subs: map[*subscription]struct{}{}, calls: map[string]int{}, Emit: true}
}

func (b *Backend) SetHook(h Hook) {
	b.mu.Lock()
	b.hook = h
	b.mu.Unlock()
}

// Calls reports how many times op ran (including failed attempts).
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) before(ctx context.Context, op, id string) error {
	b.mu.Lock()
	b.calls[op]++
	h := b.hook
	b.mu.Unlock()
	if h != nil {
		return h(ctx, op, id)
	}
	return nil
}

// Seed inserts records directly, without events, and returns them. The last
// argument ends up newest.
func (b *Backend) Seed(fs ...model.Fields) []model.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Appointment, 0, len(fs))
	for _, f := range fs {
		out = append(out, b.insert(f, ""))
	}
	return out
}

func (b *Backend) insert(f model.Fields, creator string) model.Appointment {
	b.seq++
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(b.seq) * time.Second)
	a := model.Appointment{
		ID:        fmt.Sprintf("rec-%03d", b.seq),
		Fields:    f,
		CreatedAt: now,
		UpdatedAt: now,
		CreatorID: creator,
	}
	b.items = append([]model.Appointment{a}, b.items...)
	return a
}

// Items returns the stored records, newest first.
func (b *Backend) Items() []model.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

func (b *Backend) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	if err := b.before(ctx, "list", ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := slices.Clone(b.items)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListUncapped ignores limit, like a backend that over-delivers.
type ListUncapped struct{ *Backend }

func (b ListUncapped) List(ctx context.Context, _ int) ([]model.Appointment, error) {
	return b.Backend.List(ctx, 0)
}

func (b *Backend) index(id string) int {
	return slices.IndexFunc(b.items, func(a model.Appointment) bool { return a.ID == id })
}

func (b *Backend) Get(ctx context.Context, id string) (*model.Appointment, error) {
	if err := b.before(ctx, "get", id); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return nil, model.ErrNotFound
	}
	a := b.items[i]
	return &a, nil
}

func (b *Backend) Create(ctx context.Context, f model.Fields, creatorID string, _ model.ACL) (*model.Appointment, error) {
	if err := b.before(ctx, "create", ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	a := b.insert(f, creatorID)
	b.mu.Unlock()
	b.publish(model.Event{Kind: model.EventCreated, ID: a.ID})
	return &a, nil
}

func (b *Backend) Save(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	if err := b.before(ctx, "save", a.ID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	i := b.index(a.ID)
	if i < 0 {
		b.mu.Unlock()
		return nil, model.ErrNotFound
	}
	b.items[i].Fields = a.Fields
	b.items[i].UpdatedAt = b.items[i].UpdatedAt.Add(time.Millisecond)
	saved := b.items[i]
	b.mu.Unlock()
	b.publish(model.Event{Kind: model.EventUpdated, ID: a.ID})
	return &saved, nil
}

func (b *Backend) SaveStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error) {
	if err := b.before(ctx, "status", id); err != nil {
		return nil, err
	}
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return nil, model.ErrNotFound
	}
	b.items[i].Status = s
	b.items[i].UpdatedAt = b.items[i].UpdatedAt.Add(time.Millisecond)
	saved := b.items[i]
	b.mu.Unlock()
	b.publish(model.Event{Kind: model.EventUpdated, ID: id})
	return &saved, nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.before(ctx, "delete", id); err != nil {
		return err
	}
	b.mu.Lock()
	i := b.index(id)
	if i < 0 {
		b.mu.Unlock()
		return model.ErrNotFound
	}
	b.items = slices.Delete(b.items, i, i+1)
	b.mu.Unlock()
	b.publish(model.Event{Kind: model.EventDeleted, ID: id})
	return nil
}

// ErrDropped is the Err of a subscription ended by Drop.
var ErrDropped = errors.New("subscription dropped")

type subscription struct {
	b      *Backend
	events chan model.Event
	once   sync.Once
	err    error
}

func (s *subscription) Events() <-chan model.Event { return s.events }

func (s *subscription) Err() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.end(nil)
	return nil
}

// end must be called with b.mu held.
func (s *subscription) end(err error) {
	s.once.Do(func() {
		s.err = err
		delete(s.b.subs, s)
		close(s.events)
	})
}

func (b *Backend) Subscribe(ctx context.Context) (appointments.Subscription, error) {
	if err := b.before(ctx, "subscribe", ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &subscription{b: b, events: make(chan model.Event, 64)}
	b.subs[s] = struct{}{}
	return s, nil
}

// Subscribers reports the number of open subscriptions.
func (b *Backend) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every open subscription.
func (b *Backend) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (b *Backend) publish(ev model.Event) {
	b.mu.Lock()
	emit := b.Emit
	b.mu.Unlock()
	if emit {
		b.Publish(ev)
	}
}

// Drop ends every open subscription with ErrDropped.
func (b *Backend) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.end(ErrDropped)
	}
}

// Fields returns a valid field set for interlocutor who.
func Fields(who string) model.Fields {
	return model.Fields{
		Date: "2025-11-07", Time: "15:00", Interlocutor: who,
		Purpose: "Audience", Location: "FDCUIC", Status: model.StatusToValidate,
	}
}
