// Package application contém os casos de uso do ciclo de vida do Pix:
// emitir (Issuer), resolver por token (Lifecycle), contar por estado (Stats),
// avisar o dashboard (Notifier) e, opcionalmente, varrer Pix vencidos (Sweeper).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Lifecycle.Resolve(ctx, token) devolve uma Resolution (paid/expired/já terminal).
//
// Lookup é a consulta pública: bloqueia quem erra tokens demais antes de
// deixar o Lifecycle pagar alguma coisa.
package application
