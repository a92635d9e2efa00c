// Package rpc implements agenda.v1.AgendaService over a store.Store.
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/middleware"
	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

// DefaultListLimit applies when a ListRequest carries no limit; MaxListLimit
// caps what a client may ask for.
const (
	DefaultListLimit = 1000
	MaxListLimit     = 10000
)

type Handler struct {
	store  store.Store
	secret string
	ttl    time.Duration
	log    zerolog.Logger
}

var _ AgendaServer = (*Handler)(nil)

func New(st store.Store, secret string, ttl time.Duration, log zerolog.Logger) *Handler {
	return &Handler{store: st, secret: secret, ttl: ttl, log: log.With().Str("component", "rpc").Logger()}
}

// principal resolves the caller and its role memberships.
func (h *Handler) principal(ctx context.Context) (model.Principal, error) {
	c, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return model.Principal{}, status.Error(codes.Unauthenticated, "no session")
	}
	roles, err := h.store.RolesOf(ctx, c.UserID)
	if err != nil {
		return model.Principal{}, h.internal(err, "roles")
	}
	return model.Principal{UserID: c.UserID, Roles: roles}, nil
}

// storeErr maps store failures to status codes without leaking details.
func (h *Handler) storeErr(err error, op string) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, model.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return h.internal(err, op)
}

func (h *Handler) internal(err error, op string) error {
	h.log.Error().Stack().Err(err).Str("op", op).Msg("store")
	return status.Error(codes.Internal, "internal error")
}
