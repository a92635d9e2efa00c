// Package livefeed keeps a list fresh from a push subscription: every event
// triggers a full re-list whose result is handed to a callback.
package livefeed

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/metrics"
	"dg-agenda/internal/model"
)

// Source is what the feed reads from; *appointments.Repository satisfies it.
type Source interface {
	List(ctx context.Context) ([]model.Appointment, error)
	Subscribe(ctx context.Context) (appointments.Subscription, error)
}

type Options struct {
	Log zerolog.Logger
	// Resubscription backoff bounds.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Feed re-fetches on every event without debouncing. Re-fetches may overlap;
// whichever resolves last is delivered last.
type Feed struct {
	src     Source
	deliver func([]model.Appointment)
	opts    Options
	log     zerolog.Logger

	mu     sync.Mutex
	sub    appointments.Subscription
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func New(src Source, deliver func([]model.Appointment), opts Options) *Feed {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Feed{
		src:     src,
		deliver: deliver,
		opts:    opts,
		log:     opts.Log.With().Str("component", "livefeed").Logger(),
	}
}

// Start subscribes in the background and keeps resubscribing until Close or
// until ctx is done. Every subscription, the first included, is followed by a
// re-fetch. Calling Start twice, or after Close, does nothing.
func (f *Feed) Start(ctx context.Context) { f.start(ctx, nil) }

// Attach is Start with a subscription the caller opened before its own
// initial list, so no re-fetch follows it. The feed owns sub from then on.
func (f *Feed) Attach(ctx context.Context, sub appointments.Subscription) { f.start(ctx, sub) }

func (f *Feed) start(ctx context.Context, sub appointments.Subscription) {
	f.mu.Lock()
	if f.closed || f.cancel != nil {
		f.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.sub = sub
	f.wg.Add(1)
	f.mu.Unlock()
	go f.run(ctx, sub)
}

func (f *Feed) run(ctx context.Context, sub appointments.Subscription) {
	defer f.wg.Done()
	for {
		if sub == nil {
			s, err := f.subscribe(ctx)
			if err != nil {
				return
			}
			f.mu.Lock()
			if f.closed {
				f.mu.Unlock()
				_ = s.Close()
				return
			}
			f.sub = s
			f.mu.Unlock()
			sub = s
			// events may have been missed before this subscription
			f.refetch(ctx)
		}

		for ev := range sub.Events() {
			f.log.Debug().Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg("event")
			f.refetch(ctx)
		}
		if ctx.Err() != nil {
			return
		}
		f.log.Warn().Err(sub.Err()).Msg("subscription dropped, resubscribing")
		sub = nil
	}
}

func (f *Feed) subscribe(ctx context.Context) (appointments.Subscription, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.opts.InitialBackoff
	exp.Multiplier = 2
	exp.MaxInterval = f.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.RetryNotifyWithData(func() (appointments.Subscription, error) {
		return f.src.Subscribe(ctx)
	}, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
		f.log.Warn().Err(err).Dur("retry_in", wait).Msg("subscribe failed")
	})
}

func (f *Feed) refetch(ctx context.Context) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		list, err := f.src.List(ctx)
		if err != nil {
			if ctx.Err() == nil {
				metrics.FeedRefetches.WithLabelValues("error").Inc()
				f.log.Error().Err(err).Msg("re-fetch failed")
			}
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			metrics.FeedRefetches.WithLabelValues("discarded").Inc()
			return
		}
		metrics.FeedRefetches.WithLabelValues("ok").Inc()
		f.deliver(list)
	}()
}

// Close ends the subscription and waits for in-flight re-fetches; their
// results are dropped. The deliver callback must not call Close.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		_ = f.sub.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}
