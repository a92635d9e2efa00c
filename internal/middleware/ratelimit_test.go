package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/wire"
)

const login = "/agenda.v1.AgendaService/Login"

func from(addr string) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func call(t *testing.T, ic grpc.UnaryServerInterceptor, ctx context.Context, method, user string) codes.Code {
	t.Helper()
	_, err := ic(ctx, &wire.LoginRequest{Username: user, Password: "x"}, &grpc.UnaryServerInfo{FullMethod: method},
		func(context.Context, any) (any, error) { return &wire.LoginResponse{}, nil })
	return status.Code(err)
}

func limiter(t *testing.T, burst int) *RateLimiter {
	rl := NewRateLimiter(0.001, burst)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimitPerHostIgnoresPort(t *testing.T) {
	ic := RateLimit(limiter(t, 2), login)

	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.1:5001"), login, "a"))
	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.1:5002"), login, "b"))
	assert.Equal(t, codes.ResourceExhausted, call(t, ic, from("10.0.0.1:5003"), login, "c"))
	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.2:5001"), login, "d"))
}

func TestRateLimitPerAccount(t *testing.T) {
	ic := RateLimit(limiter(t, 2), login)

	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.1:1"), login, "directeur"))
	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.2:1"), login, " Directeur"))
	assert.Equal(t, codes.ResourceExhausted, call(t, ic, from("10.0.0.3:1"), login, "DIRECTEUR"))
	assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.4:1"), login, "secretaire"))
}

func TestRateLimitOnlyListedMethods(t *testing.T) {
	ic := RateLimit(limiter(t, 1), login)
	for range 5 {
		assert.Equal(t, codes.OK, call(t, ic, from("10.0.0.1:1"), "/agenda.v1.AgendaService/ListAppointments", ""))
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	rl := limiter(t, 1)
	now := time.Date(2025, 11, 6, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	require.True(t, rl.allow("host:a"))
	require.False(t, rl.allow("host:a"))

	now = now.Add(idleAfter + time.Second)
	rl.sweep()
	assert.Empty(t, rl.buckets)
	assert.True(t, rl.allow("host:a"))
}
