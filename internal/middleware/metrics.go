package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/metrics"
)

// Observe records request counts and latency, and logs failures.
func Observe(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)
		metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		metrics.RPCRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
		if err != nil {
			log.Debug().Str("method", info.FullMethod).Str("code", code.String()).Msg("rpc failed")
		}
		return resp, err
	}
}

func ObserveStream(log zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		metrics.Watchers.Inc()
		defer metrics.Watchers.Dec()
		err := next(srv, ss)
		code := status.Code(err)
		metrics.RPCRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
		log.Debug().Str("method", info.FullMethod).Str("code", code.String()).Msg("stream closed")
		return err
	}
}
