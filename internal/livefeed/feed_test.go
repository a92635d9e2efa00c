package livefeed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/appointments/apptest"
	"dg-agenda/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	lists [][]model.Appointment
}

func (r *recorder) deliver(l []model.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, l)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func (r *recorder) last() []model.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lists) == 0 {
		return nil
	}
	return r.lists[len(r.lists)-1]
}

func start(t *testing.T, b *apptest.Backend) (*Feed, *recorder) {
	t.Helper()
	rec := &recorder{}
	repo := appointments.New(b, nil)
	sub, err := repo.Subscribe(context.Background())
	require.NoError(t, err)
	f := New(repo, rec.deliver, Options{Log: zerolog.Nop(), InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	f.Attach(context.Background(), sub)
	t.Cleanup(f.Close)
	require.Equal(t, 1, b.Subscribers())
	return f, rec
}

func TestStartCatchesUpOnFirstSubscription(t *testing.T) {
	b := apptest.New()
	b.Seed(apptest.Fields("written before subscribing"))
	rec := &recorder{}
	f := New(appointments.New(b, nil), rec.deliver, Options{Log: zerolog.Nop()})
	f.Start(context.Background())
	t.Cleanup(f.Close)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "written before subscribing", rec.last()[0].Interlocutor)
	assert.Equal(t, 1, b.Subscribers())
}

func TestAttachAfterCloseClosesSubscription(t *testing.T) {
	b := apptest.New()
	repo := appointments.New(b, nil)
	f := New(repo, (&recorder{}).deliver, Options{Log: zerolog.Nop()})
	f.Close()

	sub, err := repo.Subscribe(context.Background())
	require.NoError(t, err)
	f.Attach(context.Background(), sub)
	assert.Equal(t, 0, b.Subscribers())
}

func TestEventTriggersFullRelist(t *testing.T) {
	b := apptest.New()
	_, rec := start(t, b)

	// a write from another session
	other := appointments.New(b, &model.Session{UserID: "u-b"})
	_, err := other.Create(context.Background(), apptest.Fields("from B"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	require.Len(t, rec.last(), 1)
	assert.Equal(t, "from B", rec.last()[0].Interlocutor)
}

func TestRefetchFailureKeepsSubscription(t *testing.T) {
	b := apptest.New()
	_, rec := start(t, b)

	var fail atomic.Bool
	fail.Store(true)
	b.SetHook(func(_ context.Context, op, _ string) error {
		if op == "list" && fail.Load() {
			return apptest.ErrOffline
		}
		return nil
	})

	b.Publish(model.Event{Kind: model.EventUpdated, ID: "x"})
	require.Eventually(t, func() bool { return b.Calls("list") == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 1, b.Subscribers())

	fail.Store(false)
	b.Seed(apptest.Fields("later"))
	b.Publish(model.Event{Kind: model.EventCreated, ID: "rec-001"})
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
}

func TestResubscribesAndCatchesUp(t *testing.T) {
	b := apptest.New()
	_, rec := start(t, b)

	var failures atomic.Int32
	failures.Store(2)
	b.SetHook(func(_ context.Context, op, _ string) error {
		if op == "subscribe" && failures.Add(-1) >= 0 {
			return apptest.ErrOffline
		}
		return nil
	})

	b.Seed(apptest.Fields("missed while offline"))
	b.Drop()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "missed while offline", rec.last()[0].Interlocutor)
	assert.Equal(t, 1, b.Subscribers())
	assert.Equal(t, 4, b.Calls("subscribe"))
}

func TestLastResolvedWins(t *testing.T) {
	b := apptest.New()
	_, rec := start(t, b)

	release := make(chan struct{})
	var n atomic.Int32
	b.SetHook(func(_ context.Context, op, _ string) error {
		if op == "list" && n.Add(1) == 1 {
			<-release
		}
		return nil
	})

	b.Publish(model.Event{Kind: model.EventUpdated, ID: "a"})
	require.Eventually(t, func() bool { return b.Calls("list") == 1 }, time.Second, time.Millisecond)

	// the first re-fetch reads the list only after this record exists
	b.Seed(apptest.Fields("newer"))
	b.Publish(model.Event{Kind: model.EventUpdated, ID: "b"})
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	b.Seed(apptest.Fields("newest"))
	close(release)
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
	assert.Len(t, rec.last(), 2)
}

func TestCloseDropsLateResults(t *testing.T) {
	b := apptest.New()
	f, rec := start(t, b)

	release := make(chan struct{})
	b.SetHook(func(ctx context.Context, op, _ string) error {
		if op == "list" {
			<-release
		}
		return nil
	})
	b.Publish(model.Event{Kind: model.EventDeleted, ID: "a"})
	require.Eventually(t, func() bool { return b.Calls("list") == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		f.Close()
		close(done)
	}()
	require.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, time.Millisecond)
	close(release)
	<-done

	assert.Equal(t, 0, rec.count())
	f.Close()
}
