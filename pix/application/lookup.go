package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pix-lifecycle/pix/domain"
)

// DefaultRetryAfter é a espera sugerida a um cliente bloqueado.
const DefaultRetryAfter = 5 * time.Second

// Lookup é a consulta pública por token, protegida contra varredura.
//
// O token é público e a primeira consulta paga o Pix, então um token real
// achado por força bruta seria pago por quem varreu. Por isso o saldo do
// cliente é conferido antes de resolver e só é gasto quando o token não existe.
type Lookup struct {
	Lifecycle Lifecycle
	// Misses nil desliga a proteção.
	Misses domain.MissBudgets
	// RetryAfter <= 0 usa DefaultRetryAfter.
	RetryAfter time.Duration
	Logger     *slog.Logger
}

func (s Lookup) Resolve(ctx context.Context, client domain.ClientKey, token string) (Resolution, error) {
	if s.Misses == nil {
		return s.Lifecycle.Resolve(ctx, token)
	}

	budget := s.Misses.For(client)
	if budget.Exhausted() {
		retry := s.RetryAfter
		if retry <= 0 {
			retry = DefaultRetryAfter
		}
		loggerOr(s.Logger).DebugContext(ctx, "pix: lookup blocked after unknown tokens", "client", client)
		return Resolution{}, &domain.ThrottledError{Client: client, RetryAfter: retry}
	}

	res, err := s.Lifecycle.Resolve(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		budget.Spend()
	}
	return res, err
}
