package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pix-lifecycle/pix/domain"
)

// Sweeper é um worker opcional que expira Pix esquecidos.
//
// Sem ele, um Pix que ninguém consulta fica generated para sempre no banco e o
// dashboard subconta expired. O sweeper usa Lifecycle.Expire: mesmo
// compare-and-swap e mesmo broadcast, mas só a aresta generated -> expired.
type Sweeper struct {
	Stale     domain.StaleLister
	Lifecycle Lifecycle
	// Interval <= 0 desliga o Start.
	Interval time.Duration
	// Batch é o máximo de Pix por rodada (padrão 100).
	Batch  int
	Now    func() time.Time
	Logger *slog.Logger
}

// Sweep faz uma rodada e devolve quantos Pix esta rodada expirou.
func (s Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.Stale == nil {
		return 0, errors.New("sweeper: stale lister is not configured")
	}
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	cutoff := now().UTC()
	stale, err := s.Stale.ListStale(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		// o Store filtrou pelo mesmo corte; confere de novo antes de escrever
		if !p.ExpiredAt(cutoff) {
			continue
		}
		ok, err := s.Lifecycle.Expire(ctx, p)
		if err != nil {
			loggerOr(s.Logger).WarnContext(ctx, "pix: sweep expire failed", "pix_id", p.ID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// Start inicia uma goroutine que roda Sweep a cada Interval.
// Pare cancelando o contexto.
func (s Sweeper) Start(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	log := loggerOr(s.Logger)

	t := time.NewTicker(s.Interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.Sweep(ctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					log.WarnContext(ctx, "pix: sweep failed", "error", err)
					continue
				}
				if n > 0 {
					log.InfoContext(ctx, "pix: sweep expired stale pix", "count", n)
				}
			}
		}
	}()
}
