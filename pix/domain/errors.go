package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: dados de criação inválidos (ex.: amount <= 0). Não se tenta de novo.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: token desconhecido.
	ErrNotFound = errors.New("pix not found")
	// ErrConflict: o compare-and-swap perdeu a corrida; o status já não era o esperado.
	ErrConflict = errors.New("pix status changed concurrently")
	// ErrDuplicateToken: o store já tem um Pix com esse token.
	ErrDuplicateToken = errors.New("pix token already exists")
	// ErrTooManyMisses: consultas demais a tokens inexistentes (varredura de tokens).
	ErrTooManyMisses = errors.New("too many unknown pix tokens")
	// ErrInvalidTransition: aresta fora da máquina de estados.
	ErrInvalidTransition = errors.New("invalid pix transition")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
