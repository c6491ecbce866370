package domain

import (
	"fmt"
	"time"
)

// ClientKey identifica quem consulta tokens (IP ou header configurado).
type ClientKey string

// MissBudget é o saldo de consultas a tokens inexistentes de um cliente.
//
// Só token inexistente gasta saldo: quem consulta um Pix real nunca é cobrado.
// Sem saldo o cliente fica bloqueado até recarregar, inclusive para tokens
// reais, porque consultar um token válido é o que confirma o pagamento.
type MissBudget interface {
	Exhausted() bool
	Spend()
}

// MissBudgets devolve o saldo de cada cliente.
type MissBudgets interface {
	For(ClientKey) MissBudget
}

// ThrottledError: o cliente esgotou o saldo de tokens inexistentes.
type ThrottledError struct {
	Client     ClientKey
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("client %s: %v (retry after %s)", e.Client, ErrTooManyMisses, e.RetryAfter)
}

func (e *ThrottledError) Unwrap() error { return ErrTooManyMisses }
