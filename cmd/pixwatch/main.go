// Command pixwatch acompanha o dashboard do Pix pelo terminal.
//
// Com REDIS_ADDR assina o canal direto no Redis; sem ele conecta no websocket
// /ws/dashboard de um pixd (PIXD_URL).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pix-lifecycle/pix/domain"
	"pix-lifecycle/pix/infra"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/websocket"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		err = watchRedis(ctx, addr, os.Getenv("REDIS_CHANNEL"), logger)
	} else {
		base := os.Getenv("PIXD_URL")
		if base == "" {
			base = "http://localhost:8080"
		}
		err = watchWebsocket(ctx, base, logger)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("pixwatch stopped", "error", err)
		os.Exit(1)
	}
}

func watchRedis(ctx context.Context, addr, channel string, logger *slog.Logger) error {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	b := infra.NewRedisBroadcaster(rdb, infra.WithRedisChannel(channel), infra.WithRedisLogger(logger))
	events, unsubscribe, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()

	logger.Info("watching redis", "addr", addr, "channel", b.Channel())
	for ev := range events {
		printEvent(ev)
	}
	return ctx.Err()
}

func watchWebsocket(ctx context.Context, base string, logger *slog.Logger) error {
	wsURL := strings.Replace(strings.TrimRight(base, "/"), "http", "ws", 1) + "/ws/dashboard"
	conn, err := websocket.Dial(wsURL, "", base)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	logger.Info("watching websocket", "url", wsURL)
	for {
		var ev domain.Event
		if err := websocket.JSON.Receive(conn, &ev); err != nil {
			return err
		}
		printEvent(ev)
	}
}

func printEvent(ev domain.Event) {
	fmt.Printf("%s %s generated=%d paid=%d expired=%d total=%d\n",
		time.Now().Format(time.TimeOnly), ev.Name,
		ev.Stats.Generated, ev.Stats.Paid, ev.Stats.Expired, ev.Stats.Total())
}
