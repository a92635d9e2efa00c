package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// SessionChecker reports whether a session id (the token's jti) is still live.
type SessionChecker interface {
	SessionActive(ctx context.Context, id string) (bool, error)
}

// skip auth for these
var open = map[string]bool{
	"/agenda.v1.AgendaService/Login": true,
}

// ClaimsFrom returns the claims the auth interceptor attached to ctx.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// WithClaims is used by tests that call handlers directly.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func authenticate(ctx context.Context, secret string, sessions SessionChecker) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	// token from Authorization: Bearer <jwt>
	raw := ""
	if vals := md.Get("authorization"); len(vals) > 0 {
		raw = strings.TrimPrefix(vals[0], "Bearer ")
	}
	if raw == "" {
		return nil, status.Error(codes.Unauthenticated, "no token")
	}

	claims, err := auth.ParseToken(raw, secret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "bad token")
	}
	active, err := sessions.SessionActive(ctx, claims.SessionID())
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	if !active {
		return nil, status.Error(codes.Unauthenticated, "session ended")
	}
	return WithClaims(ctx, claims), nil
}

func Auth(secret string, sessions SessionChecker) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}
		ctx, err := authenticate(ctx, secret, sessions)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

func AuthStream(secret string, sessions SessionChecker) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), secret, sessions)
		if err != nil {
			return err
		}
		return next(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}
