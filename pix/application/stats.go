package application

import (
	"context"
	"errors"
	"fmt"

	"pix-lifecycle/pix/domain"

	"go.opentelemetry.io/otel/attribute"
)

// Stats calcula a contagem por estado direto do Store, sem cache.
type Stats struct {
	Store domain.Store
}

// Snapshot conta generated/paid/expired. owner vazio = contagem global
// (usada no tópico do dashboard); a rota HTTP usa sempre o owner.
func (s Stats) Snapshot(ctx context.Context, owner string) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "pix.stats.snapshot")
	defer span.End()
	span.SetAttributes(attribute.Bool("pix.owner_scoped", owner != ""))

	if s.Store == nil {
		err := errors.New("stats: store is not configured")
		spanFail(span, err)
		return domain.Snapshot{}, err
	}

	var snap domain.Snapshot
	for _, st := range domain.Statuses {
		n, err := s.Store.CountByStatus(ctx, st, owner)
		if err != nil {
			err = fmt.Errorf("count %s: %w", st, err)
			spanFail(span, err)
			return domain.Snapshot{}, err
		}
		switch st {
		case domain.StatusGenerated:
			snap.Generated = n
		case domain.StatusPaid:
			snap.Paid = n
		case domain.StatusExpired:
			snap.Expired = n
		}
	}
	return snap, nil
}
