package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pix-lifecycle/pix/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultWindow é a janela de validade de um Pix novo.
const DefaultWindow = 10 * time.Minute

// maxIssueAttempts limita as tentativas quando o token colide no índice único.
const maxIssueAttempts = 3

// Issuer cria Pix novos: gera o token, calcula ExpiresAt e grava no Store.
type Issuer struct {
	Store  domain.Store
	Tokens domain.TokenIssuer
	// Window <= 0 usa DefaultWindow.
	Window   time.Duration
	Now      func() time.Time
	Notifier Notifier
	Logger   *slog.Logger
}

// Issue grava um Pix generated para o owner. amount <= 0 devolve ErrValidation
// e nada é persistido.
func (s Issuer) Issue(ctx context.Context, owner string, amount decimal.Decimal) (domain.Pix, error) {
	ctx, span := tracer.Start(ctx, "pix.issue")
	defer span.End()

	if s.Store == nil || s.Tokens == nil {
		err := errors.New("issuer: store and token issuer are required")
		spanFail(span, err)
		return domain.Pix{}, err
	}

	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	createdAt := now().UTC().Truncate(domain.TimePrecision)
	n := domain.NewPix{
		Owner:     strings.TrimSpace(owner),
		Amount:    amount,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(window),
	}

	var (
		p   domain.Pix
		err error
	)
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		n.Token = s.Tokens.Issue()
		p, err = s.Store.Create(ctx, n)
		if !errors.Is(err, domain.ErrDuplicateToken) {
			break
		}
		loggerOr(s.Logger).WarnContext(ctx, "pix: token collision, issuing a new one", "attempt", attempt)
	}
	if err != nil {
		spanFail(span, err)
		return domain.Pix{}, fmt.Errorf("issue pix: %w", err)
	}
	span.SetAttributes(attribute.Int64("pix.id", p.ID))

	s.Notifier.Notify(ctx)
	return p, nil
}
