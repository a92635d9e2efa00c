package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store/storetest"
)

func databaseURL(t *testing.T) string {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	return dbURL
}

func TestStore(t *testing.T) {
	dbURL := databaseURL(t)
	ctx := context.Background()
	pool, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	s := New(pool, zerolog.Nop())
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx, "../../../db/migrations/001_init.sql"))

	storetest.Run(t, s)
}

func TestWatchersShareOneConnection(t *testing.T) {
	dbURL := databaseURL(t)
	cfg, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	s := New(pool, zerolog.Nop())
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background(), "../../../db/migrations/001_init.sql"))

	wctx, cancel := context.WithCancel(context.Background())
	var watches []<-chan model.Event
	for range 5 {
		ch, err := s.Watch(wctx)
		require.NoError(t, err)
		watches = append(watches, ch)
	}
	assert.Equal(t, 5, s.Watchers())

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	p := model.Principal{UserID: uuid.NewString(), Roles: []model.Role{model.RoleSecretary}}
	_, err = s.ListAppointments(ctx, p, 10)
	require.NoError(t, err)

	a := &model.Appointment{ID: uuid.NewString(), Fields: model.Fields{
		Date: "2025-11-07", Time: "15:00", Interlocutor: "pool", Purpose: "Audience",
		Location: "FDCUIC", Status: model.StatusToValidate,
	}}
	require.NoError(t, s.CreateAppointment(ctx, a, model.DefaultACL(p.UserID)))
	for _, ch := range watches {
		for seen := false; !seen; {
			select {
			case ev := <-ch:
				seen = ev == model.Event{Kind: model.EventCreated, ID: a.ID}
			case <-ctx.Done():
				t.Fatal("watcher missed the event")
			}
		}
	}

	cancel()
	for _, ch := range watches {
		for range ch {
		}
	}
	assert.Equal(t, 0, s.Watchers())
}

func TestParseEvent(t *testing.T) {
	ev, ok := parseEvent("update:abc-1")
	require.True(t, ok)
	assert.Equal(t, model.Event{Kind: model.EventUpdated, ID: "abc-1"}, ev)

	for _, bad := range []string{"", "update", "update:", "rename:x"} {
		_, ok := parseEvent(bad)
		assert.False(t, ok, bad)
	}
}
