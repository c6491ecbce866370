package domain

import (
	"context"
	"time"
)

// TokenIssuer gera o token público de um Pix novo.
//
// A colisão deve ser desprezível; o índice único do Store é a garantia final.
type TokenIssuer interface {
	Issue() string
}

// Store é o registro durável dos Pix.
//
// ApplyTransition é o único caminho que altera Status/PaidAt. Implementações
// devem fazer o compare-and-swap no momento da escrita (ex.: UPDATE ... WHERE
// status = From) e devolver ErrConflict sem alterar nada quando perderem a corrida.
type Store interface {
	Create(ctx context.Context, n NewPix) (Pix, error)
	FindByToken(ctx context.Context, token string) (Pix, error)
	ListByOwner(ctx context.Context, owner string, req PageRequest) (Page, error)
	// CountByStatus conta por estado; owner vazio conta globalmente.
	CountByStatus(ctx context.Context, status Status, owner string) (int64, error)
	ApplyTransition(ctx context.Context, t Transition) error
}

// StaleLister lista Pix ainda generated cuja janela terminou antes de `before`.
// Só o sweeper opcional usa isso; a expiração continua sendo preguiçosa.
type StaleLister interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]Pix, error)
}
