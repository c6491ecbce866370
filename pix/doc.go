// Package pix fornece os adapters HTTP (net/http) do ciclo de vida do Pix.
//
// Visão geral (camadas):
//
//   - domain: tipos e contratos (sem dependência de net/http)
//   - application: casos de uso (emitir, resolver, contar, avisar) sem net/http
//   - infra: implementações concretas (Postgres/SQLite/memória, Redis, Kafka, saldo de erros)
//   - pix (este pacote): rotas HTTP, autenticação do owner, websocket do dashboard,
//     tradução de erros para status
//
// Rotas:
//
//	POST /pix           cria um Pix (owner obrigatório)        201 / 401 / 422
//	GET  /pix           lista os Pix do owner, mais novos antes 200 / 401
//	GET  /pix/stats     contagem por estado do owner           200 / 401
//	GET  /pix/{token}   resolve o Pix (público)                200 / 404 / 429
//	GET  /ws/dashboard  websocket com eventos "pix.updated"
//
// A consulta por token é pública e é ela que confirma o pagamento: a primeira
// consulta dentro da janela marca paid, depois dela marca expired. Por isso
// quem erra tokens demais (varredura) recebe 429 antes de chegar ao Lifecycle;
// consultar um token real nunca gasta saldo.
package pix
