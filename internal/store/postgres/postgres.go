// Package postgres implements store.Store on PostgreSQL through pgx. Every
// appointment mutation runs in one transaction that also issues pg_notify on
// the appointment_events channel, so Watch sees only committed changes.
// Notifications are received on a single connection outside the pool and
// fanned out to watchers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

const channel = "appointment_events"

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger

	mu     sync.Mutex
	lis    *listener
	subs   map[chan model.Event]struct{}
	closed bool
}

var errClosed = errors.New("store closed")

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{
		pool: pool,
		log:  log.With().Str("component", "postgres").Logger(),
		subs: map[chan model.Event]struct{}{},
	}
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Migrate executes the SQL file at path. The schema is idempotent.
func (s *Store) Migrate(ctx context.Context, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close stops the listener, closes every watcher channel and the pool.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	l := s.lis
	s.lis = nil
	for ch := range s.subs {
		s.drop(ch)
	}
	s.mu.Unlock()
	if l != nil {
		l.cancel()
		<-l.done
	}
	s.pool.Close()
}

// Watch registers a subscriber with the store's listener, starting it if
// needed. All watchers share one LISTEN connection opened outside the pool.
// If that connection fails, every subscriber channel is closed and the next
// Watch reconnects.
func (s *Store) Watch(ctx context.Context) (<-chan model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.lis == nil {
		l, err := s.listen(ctx)
		if err != nil {
			return nil, err
		}
		s.lis = l
	}
	ch := make(chan model.Event, 64)
	s.subs[ch] = struct{}{}
	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.drop(ch)
	})
	return ch, nil
}

type listener struct {
	conn   *pgx.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// listen opens the LISTEN connection. Callers hold mu.
func (s *Store) listen(ctx context.Context) (*listener, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, fmt.Errorf("listen connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}
	lctx, cancel := context.WithCancel(context.Background())
	l := &listener{conn: conn, cancel: cancel, done: make(chan struct{})}
	go s.run(lctx, l)
	return l, nil
}

func (s *Store) run(ctx context.Context, l *listener) {
	defer close(l.done)
	defer l.conn.Close(context.Background())
	for {
		n, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error().Stack().Err(err).Msg("listen")
			}
			s.mu.Lock()
			if s.lis == l {
				s.lis = nil
				for ch := range s.subs {
					s.drop(ch)
				}
			}
			s.mu.Unlock()
			return
		}
		ev, ok := parseEvent(n.Payload)
		if !ok {
			s.log.Warn().Str("payload", n.Payload).Msg("unexpected notification")
			continue
		}
		s.mu.Lock()
		// slow watchers lose events rather than stall the others
		for ch := range s.subs {
			select {
			case ch <- ev:
			default:
			}
		}
		s.mu.Unlock()
	}
}

// drop closes ch once. Callers hold mu.
func (s *Store) drop(ch chan model.Event) {
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

// Watchers reports the registered subscribers.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func parseEvent(payload string) (model.Event, bool) {
	kind, id, ok := strings.Cut(payload, ":")
	if !ok || id == "" {
		return model.Event{}, false
	}
	switch k := model.EventKind(kind); k {
	case model.EventCreated, model.EventUpdated, model.EventDeleted:
		return model.Event{Kind: k, ID: id}, true
	}
	return model.Event{}, false
}

func notify(ctx context.Context, tx pgx.Tx, kind model.EventKind, id string) error {
	_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(kind)+":"+id)
	return err
}

func roleNames(roles []model.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
