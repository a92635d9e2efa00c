package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/auth"
	"dg-agenda/internal/middleware"
	"dg-agenda/internal/store"
	"dg-agenda/internal/wire"
)

func (h *Handler) Login(ctx context.Context, req *wire.LoginRequest) (*wire.LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "username and password required")
	}

	u, err := h.store.UserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return nil, h.internal(err, "login")
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	sid := uuid.New().String()
	if err := h.store.CreateSession(ctx, sid, u.ID, time.Now().Add(h.ttl)); err != nil {
		return nil, h.internal(err, "create session")
	}
	tok, err := auth.MakeToken(u, sid, h.secret, h.ttl)
	if err != nil {
		return nil, h.internal(err, "sign token")
	}

	h.log.Info().Str("user", u.Username).Msg("login")
	return &wire.LoginResponse{
		Token:       tok,
		UserID:      u.ID,
		Username:    u.Username,
		Role:        string(u.Role),
		DisplayName: u.DisplayName,
	}, nil
}

// Logout revokes the session the caller's token belongs to.
func (h *Handler) Logout(ctx context.Context, _ *wire.Empty) (*wire.Empty, error) {
	c, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no session")
	}
	if err := h.store.RevokeSession(ctx, c.SessionID()); err != nil {
		return nil, h.internal(err, "revoke session")
	}
	return &wire.Empty{}, nil
}
