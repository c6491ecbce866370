package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pix-lifecycle/pix"
	"pix-lifecycle/pix/application"
	"pix-lifecycle/pix/domain"
	"pix-lifecycle/pix/infra"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Pix HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

type store interface {
	domain.Store
	domain.StaleLister
}

// openStore escolhe o Store pelo STORE_DRIVER. O close devolvido é sempre não nil.
func openStore(ctx context.Context, cfg config) (store, func() error, error) {
	switch cfg.StoreDriver {
	case "postgres":
		s, err := infra.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return infra.NewMemoryStore(), func() error { return nil }, nil
	}
}

func newLogger(cfg config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))
}

func serve(parent context.Context) error {
	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	auth, err := pix.NewJWTOwner(cfg.JWTSecret)
	if err != nil {
		return err
	}

	// Broadcast: o Hub local sempre existe; Redis e Kafka entram quando configurados.
	hub := infra.NewHub()
	sinks := infra.FanOut{hub}
	var dashboard domain.Subscriber = hub

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pcancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pcancel()
		if err != nil {
			return fmt.Errorf("redis broadcast ping error: %w", err)
		}

		rb := infra.NewRedisBroadcaster(rdb, infra.WithRedisChannel(cfg.RedisChannel), infra.WithRedisLogger(logger))
		// com Redis o dashboard escuta o canal compartilhado, não o Hub local
		sinks = infra.FanOut{rb}
		dashboard = rb
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := infra.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		kb := infra.NewKafkaBroadcaster(producer, cfg.KafkaTopic)
		defer func() { _ = kb.Close() }()
		sinks = append(sinks, kb)
	}

	async := infra.NewAsyncBroadcaster(sinks,
		infra.WithAsyncWorkers(cfg.BroadcastWorkers),
		infra.WithAsyncQueue(cfg.BroadcastQueue),
		infra.WithAsyncTimeout(cfg.BroadcastTimeout),
		infra.WithAsyncLogger(logger),
	)
	defer async.Close()

	stats := application.Stats{Store: st}
	notifier := application.Notifier{Stats: stats, Broadcaster: async, Logger: logger}
	lifecycle := application.Lifecycle{Store: st, Notifier: notifier, Logger: logger}
	issuer := application.Issuer{
		Store:    st,
		Tokens:   infra.UUIDIssuer{},
		Window:   cfg.ExpirationWindow,
		Notifier: notifier,
		Logger:   logger,
	}

	misses := infra.NewMissLimiters(cfg.LookupMissRPS, cfg.LookupMissBurst)
	misses.StartJanitor(ctx)

	application.Sweeper{
		Stale:     st,
		Lifecycle: lifecycle,
		Interval:  cfg.SweepInterval,
		Batch:     cfg.SweepBatch,
		Logger:    logger,
	}.Start(ctx)

	h := pix.NewHandler(pix.Options{
		Issuer: issuer,
		Lookup: application.Lookup{
			Lifecycle:  lifecycle,
			Misses:     misses,
			RetryAfter: cfg.LookupRetryAfter,
			Logger:     logger,
		},
		Stats:               stats,
		Store:               st,
		Dashboard:           dashboard,
		Auth:                auth,
		PublicBaseURL:       cfg.PublicBaseURL,
		ClientKey:           pix.ClientKeyFrom(cfg.LookupKeyHeader, cfg.TrustXFF),
		DashboardMaxClients: cfg.DashboardMaxClients,
		Logger:              logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
		// sem WriteTimeout: o websocket do dashboard fica aberto
	}

	logger.Info("pixd listening",
		"addr", cfg.ListenAddr,
		"store", cfg.StoreDriver,
		"window", cfg.ExpirationWindow,
		"redis", cfg.RedisAddr != "",
		"kafka", len(cfg.KafkaBrokers) > 0,
		"sweep_interval", cfg.SweepInterval,
	)
	logger.Info("lookup limits",
		"miss_rps", cfg.LookupMissRPS,
		"miss_burst", cfg.LookupMissBurst,
		"key_header", cfg.LookupKeyHeader,
		"trust_xff", cfg.TrustXFF,
		"retry_after", cfg.LookupRetryAfter,
		"dashboard_max_clients", cfg.DashboardMaxClients,
	)

	return runServer(ctx, srv, srv.ListenAndServe, logger)
}

// runServer atende até ctx terminar e só devolve depois que o Shutdown drenou
// as requisições em andamento. ListenAndServe volta assim que o Shutdown
// começa; os defers de serve (broadcaster, store) não podem rodar antes disso.
func runServer(ctx context.Context, srv *http.Server, listen func() error, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("pixd shutdown incomplete", "error", err)
		}
	}()

	err := listen()
	// listener caiu sozinho: destrava a goroutine de shutdown
	cancel()
	<-done
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
