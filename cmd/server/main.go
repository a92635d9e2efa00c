package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"dg-agenda/internal/config"
	gweb "dg-agenda/internal/grpcweb"
	"dg-agenda/internal/logger"
	"dg-agenda/internal/middleware"
	"dg-agenda/internal/rpc"
	"dg-agenda/internal/store"
	"dg-agenda/internal/store/memory"
	"dg-agenda/internal/store/postgres"
)

func main() {
	log := logger.New("agenda-server")
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("store")
	}
	defer st.Close()

	if n, err := rpc.SeedUsers(ctx, st, cfg.SeedUsers); err != nil {
		log.Fatal().Stack().Err(err).Msg("seed users")
	} else if n > 0 {
		log.Info().Int("users", n).Msg("seeded users")
	}

	h := rpc.New(st, cfg.JWTSecret, cfg.SessionTTL, log)

	// grpc server
	rl := middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)
	defer rl.Stop()
	srv := rpc.NewServer(h, rl, log)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("listen")
	}
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")
		if err := srv.Serve(lis); err != nil {
			log.Error().Stack().Err(err).Msg("grpc")
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.GRPCPort, map[string]*grpc.StreamDesc{
		rpc.MethodWatch: &rpc.ServiceDesc.Streams[0],
	}, log)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("bridge")
	}
	defer bridge.Close()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           router(st, bridge.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Stack().Err(err).Msg("http")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	// Watch streams never finish on their own
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-sctx.Done():
		srv.Stop()
	}
}

func openStore(ctx context.Context, cfg *config.Server, log zerolog.Logger) (store.Store, error) {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to postgres")
	st := postgres.New(pool, log)

	// run migrations
	if err := st.Migrate(ctx, cfg.Migrations); err != nil {
		log.Warn().Err(err).Str("file", cfg.Migrations).Msg("migration skipped")
	} else {
		log.Info().Msg("migration applied")
	}
	return st, nil
}

func router(st store.Store, bridge http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/" + rpc.ServiceName + "/").Handler(bridge)
	return r
}
