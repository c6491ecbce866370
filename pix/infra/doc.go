// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore / SQLStore: Store em memória, Postgres (lib/pq) ou SQLite (modernc)
//   - UUIDIssuer: tokens públicos via github.com/google/uuid
//   - Hub, RedisBroadcaster, KafkaBroadcaster: publicação do snapshot do dashboard
//   - AsyncBroadcaster: fila + workers para não segurar a resposta HTTP
//   - MissLimiters: saldo de tokens inexistentes por cliente (golang.org/x/time/rate)
package infra
