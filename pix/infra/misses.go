package infra

import (
	"context"
	"sync"
	"time"

	"pix-lifecycle/pix/domain"

	"golang.org/x/time/rate"
)

// MissLimiters guarda um token bucket (x/time/rate) por cliente que já errou
// algum token. Quem nunca errou não ocupa memória.
type MissLimiters struct {
	mu      sync.Mutex
	clients map[domain.ClientKey]*rate.Limiter
	rps     rate.Limit
	burst   int
	sweep   time.Duration
}

type MissOption func(*MissLimiters)

// WithMissSweep define de quanto em quanto tempo o janitor solta buckets cheios.
func WithMissSweep(d time.Duration) MissOption {
	return func(m *MissLimiters) {
		if d > 0 {
			m.sweep = d
		}
	}
}

// NewMissLimiters: cada cliente pode errar `burst` tokens de uma vez e recupera
// `rps` erros por segundo.
func NewMissLimiters(rps float64, burst int, opts ...MissOption) *MissLimiters {
	if burst < 1 {
		burst = 1
	}
	m := &MissLimiters{
		clients: make(map[domain.ClientKey]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		sweep:   time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MissLimiters) For(key domain.ClientKey) domain.MissBudget {
	return clientBudget{m: m, key: key}
}

func (m *MissLimiters) lookup(key domain.ClientKey) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[key]
}

func (m *MissLimiters) limiter(key domain.ClientKey) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, ok := m.clients[key]
	if !ok {
		lim = rate.NewLimiter(m.rps, m.burst)
		m.clients[key] = lim
	}
	return lim
}

// Clients é o número de clientes com bucket ativo.
func (m *MissLimiters) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Forget solta os buckets que já recarregaram por completo: recriá-los depois
// dá o mesmo resultado. Devolve quantos foram soltos.
func (m *MissLimiters) Forget() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, lim := range m.clients {
		if lim.Tokens() >= float64(m.burst) {
			delete(m.clients, key)
			n++
		}
	}
	return n
}

// StartJanitor roda Forget periodicamente até o ctx ser cancelado.
func (m *MissLimiters) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Forget()
			}
		}
	}()
}

type clientBudget struct {
	m   *MissLimiters
	key domain.ClientKey
}

// Exhausted só espia o bucket; não gasta nada.
func (b clientBudget) Exhausted() bool {
	lim := b.m.lookup(b.key)
	return lim != nil && lim.Tokens() < 1
}

func (b clientBudget) Spend() {
	b.m.limiter(b.key).Allow()
}
