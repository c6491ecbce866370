package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusGenerated Status = "generated"
	StatusPaid      Status = "paid"
	StatusExpired   Status = "expired"
)

// Statuses lista todos os estados na ordem usada pelo dashboard.
var Statuses = []Status{StatusGenerated, StatusPaid, StatusExpired}

func (s Status) Valid() bool {
	switch s {
	case StatusGenerated, StatusPaid, StatusExpired:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusExpired
}

// ParseStatus aceita o nome do estado sem diferenciar maiúsculas.
func ParseStatus(v string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	return s, s.Valid()
}

// TimePrecision é a resolução dos instantes gravados: SQLite guarda unix
// millis e Postgres micros. Instantes truncados antes da escrita voltam iguais
// nas leituras seguintes.
const TimePrecision = time.Millisecond

// MaxAmount é o primeiro valor que não cabe em NUMERIC(10,2).
var MaxAmount = decimal.New(1, 8)

// Pix é um registro simples: quem muda status/PaidAt é o Store, via ApplyTransition.
type Pix struct {
	ID        int64
	Owner     string
	Token     string
	Amount    decimal.Decimal
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
	PaidAt    *time.Time
}

// ExpiredAt diz se a janela do Pix já passou no instante informado.
// O limite é inclusivo: now == ExpiresAt já conta como expirado.
func (p Pix) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// NewPix são os dados necessários para criar um Pix.
//
// CreatedAt zero significa "agora" (relógio do store).
type NewPix struct {
	Owner     string
	Token     string
	Amount    decimal.Decimal
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Validate verifica as regras de criação sem tocar no store.
func (n NewPix) Validate() error {
	if strings.TrimSpace(n.Owner) == "" {
		return validationf("owner is required")
	}
	if strings.TrimSpace(n.Token) == "" {
		return validationf("token is required")
	}
	if !n.Amount.IsPositive() {
		return validationf("amount must be greater than zero")
	}
	// a coluna é NUMERIC(10,2): 0.001 viraria 0.00 no banco
	if !n.Amount.Equal(n.Amount.Round(2)) {
		return validationf("amount must have at most 2 decimal places")
	}
	if n.Amount.GreaterThanOrEqual(MaxAmount) {
		return validationf("amount must be less than %s", MaxAmount)
	}
	if n.ExpiresAt.IsZero() {
		return validationf("expires_at is required")
	}
	if !n.CreatedAt.IsZero() && !n.ExpiresAt.After(n.CreatedAt) {
		return validationf("expires_at must be after created_at")
	}
	return nil
}

// Transition é um compare-and-swap de status.
//
// PaidAt só é aceito (e exigido) na aresta generated -> paid.
type Transition struct {
	PixID  int64
	From   Status
	To     Status
	PaidAt *time.Time
}

// Validate aceita apenas as arestas generated -> paid e generated -> expired.
func (t Transition) Validate() error {
	if t.From != StatusGenerated || !t.To.Terminal() {
		return invalidTransitionf("%s -> %s", t.From, t.To)
	}
	if t.To == StatusPaid && t.PaidAt == nil {
		return invalidTransitionf("paid requires paid_at")
	}
	if t.To == StatusExpired && t.PaidAt != nil {
		return invalidTransitionf("expired must not carry paid_at")
	}
	return nil
}

type PageRequest struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize aplica os defaults: página 1, 10 itens, no máximo 100.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

type Page struct {
	Items    []Pix
	Page     int
	PageSize int
	Total    int64
}

func (p Page) LastPage() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}
