package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerRequiresSecret(t *testing.T) {
	t.Setenv("AGENDA_JWT_SECRET", "")
	_, err := LoadServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENDA_JWT_SECRET")
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("AGENDA_JWT_SECRET", "s3cret")
	t.Setenv("AGENDA_SEED_USERS", "secretaire:pw:Secretary:Secrétaire,directeur:pw:Director:DG")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Len(t, cfg.SeedUsers, 2)
}

func TestLoadServerRejectsUnknownStore(t *testing.T) {
	t.Setenv("AGENDA_JWT_SECRET", "s3cret")
	t.Setenv("AGENDA_STORE", "mysql")
	_, err := LoadServer()
	require.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("AGENDA_SESSION_FILE", "/tmp/agenda-session.json")
	t.Setenv("AGENDA_PAGE_SIZE", "0")
	t.Setenv("AGENDA_PARSE_APP_ID", "abc")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "grpc", cfg.Driver)
	assert.Equal(t, 15, cfg.PageSize)
	assert.Equal(t, 1000, cfg.MaxRetrieval)
	assert.Equal(t, "/tmp/agenda-session.json", cfg.SessionFile)
	assert.Equal(t, "wss://abc.back4app.io", cfg.LiveQueryURL())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
