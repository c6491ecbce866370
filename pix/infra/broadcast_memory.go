package infra

import (
	"context"
	"sync"

	"pix-lifecycle/pix/domain"
)

// Hub é um pub/sub em memória para um único processo.
//
// Cada assinante tem um buffer próprio; se ele estiver lento e o buffer
// encher, o evento mais antigo é descartado para dar lugar ao novo (o
// dashboard só precisa do snapshot mais recente). Publish nunca bloqueia.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan domain.Event
	nextID uint64
	buffer int
}

type HubOption func(*Hub)

func WithHubBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[uint64]chan domain.Event),
		buffer: 16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Publish(_ context.Context, s domain.Snapshot) error {
	ev := domain.NewEvent(s)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, h.buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return ch, cancel, nil
}

// Subscribers devolve quantos assinantes estão ativos.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var (
	_ domain.Broadcaster = (*Hub)(nil)
	_ domain.Subscriber  = (*Hub)(nil)
)
