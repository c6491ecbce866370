package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pix-lifecycle/pix/domain"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publica o snapshot via PUBLISH no canal do dashboard e
// permite assinar via SUBSCRIBE. Serve para várias instâncias do pixd
// compartilharem o mesmo tópico.
//
// Redis Pub/Sub não guarda histórico: quem não está inscrito perde o evento.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

type RedisBroadcastOption func(*RedisBroadcaster)

func WithRedisChannel(channel string) RedisBroadcastOption {
	return func(b *RedisBroadcaster) {
		if c := strings.TrimSpace(channel); c != "" {
			b.channel = c
		}
	}
}

func WithRedisLogger(l *slog.Logger) RedisBroadcastOption {
	return func(b *RedisBroadcaster) { b.logger = l }
}

func NewRedisBroadcaster(rdb *redis.Client, opts ...RedisBroadcastOption) *RedisBroadcaster {
	b := &RedisBroadcaster{
		rdb:     rdb,
		channel: domain.DashboardTopic,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBroadcaster) Channel() string { return b.channel }

func (b *RedisBroadcaster) Publish(ctx context.Context, s domain.Snapshot) error {
	if b == nil || b.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(domain.NewEvent(s))
	if err != nil {
		return fmt.Errorf("encode dashboard event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channel, err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context) (<-chan domain.Event, func(), error) {
	ps := b.rdb.Subscribe(ctx, b.channel)
	// espera a confirmação do SUBSCRIBE antes de devolver
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	out := make(chan domain.Event, 16)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(stop) }) }

	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("pix: dropping malformed dashboard event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

var (
	_ domain.Broadcaster = (*RedisBroadcaster)(nil)
	_ domain.Subscriber  = (*RedisBroadcaster)(nil)
)
