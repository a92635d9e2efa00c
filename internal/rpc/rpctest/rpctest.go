// Package rpctest runs an in-memory AgendaService over bufconn for tests.
package rpctest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"dg-agenda/internal/middleware"
	"dg-agenda/internal/rpc"
	"dg-agenda/internal/store/memory"
)

const Secret = "test-secret"

// Target is the address to dial together with DialOptions.
const Target = "passthrough:///bufnet"

type Server struct {
	Store *memory.Store
	lis   *bufconn.Listener
}

// Start seeds users ("username:password:Role[:Display]") and serves until the
// test ends.
func Start(t *testing.T, users ...string) *Server {
	t.Helper()
	st := memory.New()
	if _, err := rpc.SeedUsers(context.Background(), st, users); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rl := middleware.NewRateLimiter(1000, 1000)
	h := rpc.New(st, Secret, time.Hour, zerolog.Nop())
	srv := rpc.NewServer(h, rl, zerolog.Nop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		srv.Stop()
		rl.Stop()
	})
	return &Server{Store: st, lis: lis}
}

func (s *Server) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}
