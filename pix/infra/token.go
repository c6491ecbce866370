package infra

import "github.com/google/uuid"

// UUIDIssuer gera tokens UUID v4 (122 bits aleatórios).
type UUIDIssuer struct{}

func (UUIDIssuer) Issue() string { return uuid.NewString() }
