package pix

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pix-lifecycle/pix/application"
	"pix-lifecycle/pix/domain"

	"golang.org/x/net/websocket"
)

const dashboardWriteTimeout = 10 * time.Second

// DashboardHandler entrega por websocket cada evento "pix.updated" publicado
// depois da conexão. Ao conectar, manda um snapshot global atual (leitura
// nova, não replay de eventos antigos).
//
// maxClients > 0 limita as conexões abertas; além disso responde 503 antes do
// upgrade.
func DashboardHandler(sub domain.Subscriber, stats *application.Stats, maxClients int, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	var slots chan struct{}
	if maxClients > 0 {
		slots = make(chan struct{}, maxClients)
	}

	ws := websocket.Handler(func(conn *websocket.Conn) {
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(conn.Request().Context())
		defer cancel()

		events, unsubscribe, err := sub.Subscribe(ctx)
		if err != nil {
			logger.WarnContext(ctx, "pix: dashboard subscribe failed", "error", err)
			return
		}
		defer unsubscribe()

		// o cliente só escuta; uma leitura com erro significa desconexão
		go func() {
			var discard string
			for {
				if err := websocket.Message.Receive(conn, &discard); err != nil {
					cancel()
					return
				}
			}
		}()

		if stats != nil {
			if snap, err := stats.Snapshot(ctx, ""); err == nil {
				if err := sendEvent(conn, domain.NewEvent(snap)); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := sendEvent(conn, ev); err != nil {
					logger.DebugContext(ctx, "pix: dashboard client gone", "remote", conn.Request().RemoteAddr, "error", err)
					return
				}
			}
		}
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub == nil {
			http.Error(w, "dashboard is not configured", http.StatusServiceUnavailable)
			return
		}
		if slots != nil {
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			default:
				logger.WarnContext(r.Context(), "pix: dashboard full", "max_clients", maxClients)
				http.Error(w, "dashboard is full", http.StatusServiceUnavailable)
				return
			}
		}
		ws.ServeHTTP(w, r)
	})
}

func sendEvent(conn *websocket.Conn, ev domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(dashboardWriteTimeout))
	return websocket.JSON.Send(conn, ev)
}
