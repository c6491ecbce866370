package infra

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pix-lifecycle/pix/domain"
)

// ErrBroadcastQueueFull: a fila do AsyncBroadcaster está cheia e o snapshot foi descartado.
var ErrBroadcastQueueFull = errors.New("broadcast queue is full")

// ErrBroadcasterClosed: Publish depois de Close.
var ErrBroadcasterClosed = errors.New("broadcaster is closed")

// FanOut publica o mesmo snapshot em vários destinos (ex.: Hub + Redis + Kafka).
// Um destino com erro não impede os outros; os erros voltam juntos.
type FanOut []domain.Broadcaster

func (f FanOut) Publish(ctx context.Context, s domain.Snapshot) error {
	var errs []error
	for _, b := range f {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncBroadcaster desacopla a entrega do ciclo requisição/resposta:
// Publish só enfileira e workers entregam ao destino real.
type AsyncBroadcaster struct {
	next    domain.Broadcaster
	queue   chan asyncJob
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type asyncJob struct {
	ctx  context.Context
	snap domain.Snapshot
}

type AsyncOption func(*AsyncBroadcaster)

func WithAsyncWorkers(n int) AsyncOption {
	return func(a *AsyncBroadcaster) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithAsyncQueue(n int) AsyncOption {
	return func(a *AsyncBroadcaster) {
		if n > 0 {
			a.queue = make(chan asyncJob, n)
		}
	}
}

// WithAsyncTimeout limita cada entrega ao destino. 0 = sem limite.
func WithAsyncTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncBroadcaster) { a.timeout = d }
}

func WithAsyncLogger(l *slog.Logger) AsyncOption {
	return func(a *AsyncBroadcaster) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAsyncBroadcaster já inicia os workers. Chame Close para drenar a fila.
func NewAsyncBroadcaster(next domain.Broadcaster, opts ...AsyncOption) *AsyncBroadcaster {
	a := &AsyncBroadcaster{
		next:    next,
		queue:   make(chan asyncJob, 256),
		workers: 1,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.wg.Add(a.workers)
	for i := 0; i < a.workers; i++ {
		go a.run()
	}
	return a
}

// Publish nunca bloqueia. O ctx da requisição só empresta seus valores
// (trace); o cancelamento dele não interrompe a entrega.
func (a *AsyncBroadcaster) Publish(ctx context.Context, s domain.Snapshot) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrBroadcasterClosed
	}

	select {
	case a.queue <- asyncJob{ctx: context.WithoutCancel(ctx), snap: s}:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}

func (a *AsyncBroadcaster) run() {
	defer a.wg.Done()
	for job := range a.queue {
		ctx := job.ctx
		cancel := func() {}
		if a.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
		}
		if err := a.next.Publish(ctx, job.snap); err != nil {
			a.logger.Warn("pix: dashboard delivery failed", "error", err)
		}
		cancel()
	}
}

// Close para de aceitar snapshots e espera a fila esvaziar.
func (a *AsyncBroadcaster) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}

var (
	_ domain.Broadcaster = FanOut(nil)
	_ domain.Broadcaster = (*AsyncBroadcaster)(nil)
)
