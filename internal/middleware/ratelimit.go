package middleware

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/wire"
)

// idleAfter is how long an unused bucket is kept.
const idleAfter = 3 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter throttles sign-in attempts. Each attempt spends a token from
// the bucket of the calling host and from the bucket of the account named in
// the request, so guessing one password from many hosts is slowed as well.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	burst   int
	now     func() time.Time
	done    chan struct{}
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		r:       rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-rl.done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl
}

// Stop ends the sweeper.
func (rl *RateLimiter) Stop() { close(rl.done) }

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for k, b := range rl.buckets {
		if now.Sub(b.seen) > idleAfter {
			delete(rl.buckets, k)
		}
	}
}

// allow spends one token from every bucket named by keys. Tokens already
// taken are not given back when a later bucket refuses.
func (rl *RateLimiter) allow(keys ...string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	ok := true
	for _, k := range keys {
		b, found := rl.buckets[k]
		if !found {
			b = &bucket{lim: rate.NewLimiter(rl.r, rl.burst)}
			rl.buckets[k] = b
		}
		b.seen = now
		if !b.lim.AllowN(now, 1) {
			ok = false
		}
	}
	return ok
}

// host drops the port: a client opens a new source port per connection.
func host(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	h, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return h
}

// RateLimit applies rl to the given full method names.
func RateLimit(rl *RateLimiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !limited[info.FullMethod] {
			return next(ctx, req)
		}
		keys := []string{"host:" + host(ctx)}
		if lr, ok := req.(*wire.LoginRequest); ok && lr.Username != "" {
			keys = append(keys, "user:"+strings.ToLower(strings.TrimSpace(lr.Username)))
		}
		if !rl.allow(keys...) {
			return nil, status.Error(codes.ResourceExhausted, "too many sign-in attempts")
		}
		return next(ctx, req)
	}
}
