package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pix-lifecycle/pix/domain"

	"go.opentelemetry.io/otel/attribute"
)

type Outcome string

const (
	OutcomePaid            Outcome = "paid"
	OutcomeExpired         Outcome = "expired"
	OutcomeAlreadyTerminal Outcome = "already_terminal"
)

// Resolution é o resultado de Resolve. Pix traz o estado atual do registro.
type Resolution struct {
	Outcome Outcome
	Pix     domain.Pix
}

func (r Resolution) Status() domain.Status { return r.Pix.Status }

// Transitioned diz se esta chamada foi a que mudou o estado.
func (r Resolution) Transitioned() bool { return r.Outcome != OutcomeAlreadyTerminal }

// maxResolveAttempts: um conflito só acontece quando outro resolvedor já
// levou o Pix a um estado terminal, então a releitura resolve na 2ª volta.
const maxResolveAttempts = 3

// Lifecycle decide e aplica a transição de um Pix quando o token é consultado.
//
// A expiração é preguiçosa: só é descoberta aqui. A primeira consulta de um
// token ainda dentro da janela conta como confirmação de pagamento (não há
// callback de gateway; é uma simplificação).
type Lifecycle struct {
	Store    domain.Store
	Notifier Notifier
	Now      func() time.Time
	Logger   *slog.Logger
}

func (s Lifecycle) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve devolve o estado do Pix, aplicando a transição se ele ainda estiver generated.
//
// Um Pix terminal é idempotente: sem escrita e sem broadcast. Só a chamada que
// vence o compare-and-swap dispara o aviso ao dashboard.
func (s Lifecycle) Resolve(ctx context.Context, token string) (Resolution, error) {
	ctx, span := tracer.Start(ctx, "pix.resolve")
	defer span.End()

	if s.Store == nil {
		err := errors.New("lifecycle: store is not configured")
		spanFail(span, err)
		return Resolution{}, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Resolution{}, domain.ErrNotFound
	}

	p, err := s.Store.FindByToken(ctx, token)
	if err != nil {
		spanFail(span, err)
		return Resolution{}, err
	}

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		if p.Status.Terminal() {
			span.SetAttributes(attribute.String("pix.outcome", string(OutcomeAlreadyTerminal)))
			return Resolution{Outcome: OutcomeAlreadyTerminal, Pix: p}, nil
		}

		res, err := s.transition(ctx, p)
		if err == nil {
			span.SetAttributes(attribute.String("pix.outcome", string(res.Outcome)))
			s.Notifier.Notify(ctx)
			return res, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			spanFail(span, err)
			return Resolution{}, err
		}

		loggerOr(s.Logger).DebugContext(ctx, "pix: lost transition race, re-reading", "pix_id", p.ID, "attempt", attempt)
		p, err = s.Store.FindByToken(ctx, token)
		if err != nil {
			spanFail(span, err)
			return Resolution{}, err
		}
	}

	err = fmt.Errorf("resolve pix %d: %w", p.ID, domain.ErrConflict)
	spanFail(span, err)
	return Resolution{}, err
}

func (s Lifecycle) transition(ctx context.Context, p domain.Pix) (Resolution, error) {
	now := s.now()

	t := domain.Transition{PixID: p.ID, From: domain.StatusGenerated}
	out := OutcomePaid
	if p.ExpiredAt(now) {
		t.To = domain.StatusExpired
		out = OutcomeExpired
	} else {
		paidAt := now.UTC().Truncate(domain.TimePrecision)
		t.To = domain.StatusPaid
		t.PaidAt = &paidAt
	}

	if err := s.Store.ApplyTransition(ctx, t); err != nil {
		return Resolution{}, err
	}

	p.Status = t.To
	p.PaidAt = t.PaidAt
	return Resolution{Outcome: out, Pix: p}, nil
}

// Expire leva um Pix generated direto para expired e nunca paga.
//
// É o caminho do Sweeper: quem listou já decidiu que a janela passou, então
// um relógio atrasado aqui não vira pagamento. Devolve false quando o Pix já
// era terminal ou outro resolvedor chegou antes.
func (s Lifecycle) Expire(ctx context.Context, p domain.Pix) (bool, error) {
	ctx, span := tracer.Start(ctx, "pix.expire")
	defer span.End()
	span.SetAttributes(attribute.Int64("pix.id", p.ID))

	if s.Store == nil {
		err := errors.New("lifecycle: store is not configured")
		spanFail(span, err)
		return false, err
	}
	if p.Status != domain.StatusGenerated {
		return false, nil
	}

	err := s.Store.ApplyTransition(ctx, domain.Transition{
		PixID: p.ID,
		From:  domain.StatusGenerated,
		To:    domain.StatusExpired,
	})
	switch {
	case err == nil:
		s.Notifier.Notify(ctx)
		return true, nil
	case errors.Is(err, domain.ErrConflict):
		return false, nil
	default:
		spanFail(span, err)
		return false, fmt.Errorf("expire pix %d: %w", p.ID, err)
	}
}
