package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"dg-agenda/internal/store/memory"
)

type downStore struct{ *memory.Store }

func (downStore) Ping(context.Context) error { return context.DeadlineExceeded }

func TestRouter(t *testing.T) {
	bridged := false
	bridge := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { bridged = true })
	r := router(memory.New(), bridge)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agenda.v1.AgendaService/Login", nil))
	assert.True(t, bridged)

	rec = httptest.NewRecorder()
	router(downStore{memory.New()}, bridge).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
