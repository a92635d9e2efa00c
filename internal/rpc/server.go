package rpc

import (
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"dg-agenda/internal/middleware"
	"dg-agenda/internal/wire"
)

// NewServer builds a grpc.Server serving h with the standard interceptor
// chain: metrics, login rate limit, then auth.
func NewServer(h *Handler, rl *middleware.RateLimiter, log zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ForceServerCodec(wire.Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.Observe(log),
			middleware.RateLimit(rl, MethodLogin),
			middleware.Auth(h.secret, h.store),
		),
		grpc.ChainStreamInterceptor(
			middleware.ObserveStream(log),
			middleware.AuthStream(h.secret, h.store),
		),
	)
	srv := grpc.NewServer(opts...)
	Register(srv, h)
	return srv
}
