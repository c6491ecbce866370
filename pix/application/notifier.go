package application

import (
	"context"
	"log/slog"

	"pix-lifecycle/pix/domain"
)

// Notifier tira um snapshot global fresco e entrega ao Broadcaster.
//
// É best-effort: falha ao contar ou publicar vira log e nunca derruba a
// requisição que disparou o aviso. Para não segurar a resposta HTTP, o
// Broadcaster de produção é assíncrono (infra.AsyncBroadcaster).
//
// A transição já foi gravada quando Notify roda: o cliente desconectar
// (ctx cancelado) não pode apagar o aviso. Só os valores do ctx (trace) seguem.
type Notifier struct {
	Stats       Stats
	Broadcaster domain.Broadcaster
	Logger      *slog.Logger
}

func (n Notifier) Notify(ctx context.Context) {
	if n.Broadcaster == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := loggerOr(n.Logger)

	snap, err := n.Stats.Snapshot(ctx, "")
	if err != nil {
		log.WarnContext(ctx, "pix: snapshot for broadcast failed", "error", err)
		return
	}
	if err := n.Broadcaster.Publish(ctx, snap); err != nil {
		log.WarnContext(ctx, "pix: broadcast failed", "error", err)
	}
}
