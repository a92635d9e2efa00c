// Package reconcile owns the appointment list a screen shows. Mutations are
// applied to the local list at once and undone individually if their remote
// call fails; lists delivered by the live feed replace the local list
// outright.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/livefeed"
	"dg-agenda/internal/metrics"
	"dg-agenda/internal/model"
)

var (
	ErrClosed         = errors.New("controller closed")
	ErrTooManyPending = errors.New("too many pending changes")
)

// DefaultMaxPending bounds the speculative edits in flight.
const DefaultMaxPending = 32

// TempPrefix marks ids of records created locally and not yet listed by the
// backend.
const TempPrefix = "temp-"

// Repository is the part of *appointments.Repository the controller uses.
type Repository interface {
	List(ctx context.Context) ([]model.Appointment, error)
	Create(ctx context.Context, f model.Fields) (*model.Appointment, error)
	Update(ctx context.Context, id string, f model.Fields) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (appointments.Subscription, error)
}

type State int

const (
	Idle State = iota
	Loading
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	MaxPending int
	Log        zerolog.Logger
	Now        func() time.Time
	// Feed configures resubscription; its Log is replaced by Log.
	Feed livefeed.Options
}

// Snapshot is a consistent copy of the controller's observable state.
type Snapshot struct {
	State   State
	Loading bool
	Items   []model.Appointment
	Banner  string
	Pending int
}

type op string

const (
	opCreate op = "create"
	opUpdate op = "update"
	opStatus op = "status"
	opDelete op = "delete"
)

// mutation is one optimistic edit awaiting its remote call.
type mutation struct {
	seq   uint64
	op    op
	recID string
	gen   uint64             // list generation when applied
	prev  *model.Appointment // record before the edit (update, status, delete)
	next  *model.Appointment // record after the edit (create, update, status)
	index int                // former position (delete)
	apply func(*model.Appointment)
}

type Controller struct {
	repo Repository
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	attempted bool
	items     []model.Appointment
	banner    string
	gen       uint64
	seq       uint64
	pending   map[uint64]*mutation
	// edits applied to listed records since the last delivery, in order,
	// and each edited record as it was before the first of them
	edits     []*mutation
	bases     map[string]model.Appointment
	feed      *livefeed.Feed
	changes   chan struct{}
}

func New(repo Repository, opts Options) *Controller {
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Feed.Log = opts.Log
	return &Controller{
		repo:    repo,
		opts:    opts,
		log:     opts.Log.With().Str("component", "controller").Logger(),
		pending: map[uint64]*mutation{},
		bases:   map[string]model.Appointment{},
		changes: make(chan struct{}, 1),
	}
}

// Changes signals after every observable change. Signals coalesce; read
// Snapshot for the current state. The channel is closed by Close.
func (c *Controller) Changes() <-chan struct{} { return c.changes }

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:   c.state,
		Loading: c.state == Loading || (c.state == Idle && !c.attempted),
		Items:   slices.Clone(c.items),
		Banner:  c.banner,
		Pending: len(c.pending),
	}
}

// ClearBanner dismisses the current message.
func (c *Controller) ClearBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.banner != "" {
		c.banner = ""
		c.notify()
	}
}

// notify must be called with mu held.
func (c *Controller) notify() {
	if c.state == Closed {
		return
	}
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Mount subscribes, loads the list and goes live. On failure the list is
// left empty, the banner explains why, the controller returns to Idle and
// Mount may be retried. Mounting a live controller does nothing.
func (c *Controller) Mount(ctx context.Context) error { return c.load(ctx, true) }

// Load is Mount without the live feed: the list changes only through this
// controller's own edits and Replace.
func (c *Controller) Load(ctx context.Context) error { return c.load(ctx, false) }

func (c *Controller) load(ctx context.Context, live bool) error {
	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return ErrClosed
	case Loading, Live:
		c.mu.Unlock()
		return nil
	}
	c.state = Loading
	c.attempted = true
	c.notify()
	c.mu.Unlock()

	// subscribe first so writes landing during the list are not missed; the
	// feed retries on its own if this fails
	var sub appointments.Subscription
	if live {
		var err error
		if sub, err = c.repo.Subscribe(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn().Err(err).Msg("subscribe before load")
			sub = nil
		}
	}
	closeSub := func() {
		if sub != nil {
			_ = sub.Close()
		}
	}
	list, err := c.repo.List(ctx)

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		closeSub()
		return ErrClosed
	}
	if err != nil {
		c.items = nil
		c.state = Idle
		c.banner = fmt.Sprintf("could not load appointments: %v", err)
		c.notify()
		c.mu.Unlock()
		closeSub()
		c.log.Error().Err(err).Msg("initial load")
		return err
	}
	c.items = slices.Clone(list)
	c.newGeneration()
	c.state = Live
	c.banner = ""
	var feed *livefeed.Feed
	if live {
		feed = livefeed.New(c.repo, c.Replace, c.opts.Feed)
		c.feed = feed
	}
	c.notify()
	c.mu.Unlock()

	switch {
	case feed == nil:
	case sub != nil:
		feed.Attach(context.WithoutCancel(ctx), sub)
	default:
		feed.Start(context.WithoutCancel(ctx))
	}
	return nil
}

// Replace installs an authoritative list. Pending optimistic edits are not
// carried over; a record whose call is still in flight may disappear and
// come back with the next delivery.
func (c *Controller) Replace(list []model.Appointment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return
	}
	c.items = slices.Clone(list)
	c.newGeneration()
	c.notify()
}

// newGeneration marks the list as authoritative. Callers hold mu.
func (c *Controller) newGeneration() {
	c.gen++
	c.edits = nil
	clear(c.bases)
}

// Close stops the feed. Results of calls still in flight are discarded and
// further mutations fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	feed := c.feed
	close(c.changes)
	c.mu.Unlock()

	// outside mu: the feed delivers through Replace
	if feed != nil {
		feed.Close()
	}
}

// begin registers m, or refuses when closed or saturated. Callers hold mu.
func (c *Controller) begin(m *mutation) error {
	if c.state == Closed {
		return ErrClosed
	}
	if len(c.pending) >= c.opts.MaxPending {
		return ErrTooManyPending
	}
	c.seq++
	m.seq = c.seq
	m.gen = c.gen
	c.pending[m.seq] = m
	return nil
}

func (c *Controller) index(id string) int {
	return slices.IndexFunc(c.items, func(a model.Appointment) bool { return a.ID == id })
}

// Create shows a temporary record at the head of the list, then creates it
// remotely. The temporary record is replaced by the next delivered list.
func (c *Controller) Create(ctx context.Context, f model.Fields) (*model.Appointment, error) {
	c.mu.Lock()
	now := c.opts.Now()
	temp := model.Appointment{ID: TempPrefix + uuid.New().String(), Fields: f, CreatedAt: now, UpdatedAt: now}
	m := &mutation{op: opCreate, recID: temp.ID, next: &temp}
	if err := c.begin(m); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.items = slices.Insert(c.items, 0, temp)
	c.notify()
	c.mu.Unlock()

	a, err := c.repo.Create(ctx, f)
	c.finish(m, err)
	return a, err
}

// Update replaces every editable field of id.
func (c *Controller) Update(ctx context.Context, id string, f model.Fields) (*model.Appointment, error) {
	return c.edit(ctx, opUpdate, id, func(a *model.Appointment) { a.Fields = f },
		func() (*model.Appointment, error) { return c.repo.Update(ctx, id, f) })
}

// UpdateStatus changes only the status of id.
func (c *Controller) UpdateStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error) {
	return c.edit(ctx, opStatus, id, func(a *model.Appointment) { a.Status = s },
		func() (*model.Appointment, error) { return c.repo.UpdateStatus(ctx, id, s) })
}

func (c *Controller) edit(_ context.Context, o op, id string, apply func(*model.Appointment), call func() (*model.Appointment, error)) (*model.Appointment, error) {
	c.mu.Lock()
	m := &mutation{op: o, recID: id}
	if err := c.begin(m); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	// an id missing locally still goes to the backend, which decides
	if i := c.index(id); i >= 0 {
		prev := c.items[i]
		next := prev
		apply(&next)
		next.UpdatedAt = c.opts.Now()
		m.prev, m.next, m.apply = &prev, &next, apply
		c.items[i] = next
		if _, ok := c.bases[id]; !ok {
			c.bases[id] = prev
		}
		c.edits = append(c.edits, m)
		c.notify()
	}
	c.mu.Unlock()

	a, err := call()
	c.finish(m, err)
	return a, err
}

// Delete removes id from the list, then from the backend.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	m := &mutation{op: opDelete, recID: id}
	if err := c.begin(m); err != nil {
		c.mu.Unlock()
		return err
	}
	if i := c.index(id); i >= 0 {
		prev := c.items[i]
		m.prev, m.index = &prev, i
		c.items = slices.Delete(c.items, i, i+1)
		c.notify()
	}
	c.mu.Unlock()

	err := c.repo.Delete(ctx, id)
	c.finish(m, err)
	return err
}

// finish retires m; on failure it undoes m's own effect and sets the banner.
func (c *Controller) finish(m *mutation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, m.seq)
	if c.state == Closed {
		return
	}
	if err != nil {
		metrics.Rollbacks.WithLabelValues(string(m.op)).Inc()
		c.log.Warn().Err(err).Str("op", string(m.op)).Str("id", m.recID).Msg("remote call failed, undoing")
		// a list delivered since m was applied already reflects the backend
		if m.gen == c.gen {
			c.edits = slices.DeleteFunc(c.edits, func(e *mutation) bool { return e == m })
			c.undo(m)
		}
		c.banner = message(m.op, err)
	}
	if len(c.pending) == 0 {
		c.edits = nil
		clear(c.bases)
	}
	c.notify()
}

func (c *Controller) undo(m *mutation) {
	switch m.op {
	case opCreate:
		if i := c.index(m.recID); i >= 0 {
			c.items = slices.Delete(c.items, i, i+1)
		}
	case opUpdate, opStatus:
		if m.prev == nil {
			return
		}
		if i := c.index(m.recID); i >= 0 {
			c.items[i] = c.rebuild(m.recID, *m.prev)
		}
	case opDelete:
		if m.prev == nil || c.index(m.recID) >= 0 {
			return
		}
		i := min(m.index, len(c.items))
		c.items = slices.Insert(c.items, i, c.rebuild(m.recID, *m.prev))
	}
}

// rebuild replays the surviving edits of id, pending or already accepted,
// over the record as it was before the first of them. Without recorded
// edits it returns fallback.
func (c *Controller) rebuild(id string, fallback model.Appointment) model.Appointment {
	rec, ok := c.bases[id]
	if !ok {
		return fallback
	}
	for _, e := range c.edits {
		if e.recID == id {
			e.apply(&rec)
			rec.UpdatedAt = e.next.UpdatedAt
		}
	}
	return rec
}

func message(o op, err error) string {
	var what string
	switch o {
	case opCreate:
		what = "could not create the appointment"
	case opUpdate:
		what = "could not save the appointment"
	case opStatus:
		what = "could not change the status"
	case opDelete:
		what = "could not delete the appointment"
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return what + ": it no longer exists"
	case errors.Is(err, model.ErrPermissionDenied):
		return what + ": permission denied"
	}
	return fmt.Sprintf("%s: %v", what, err)
}
