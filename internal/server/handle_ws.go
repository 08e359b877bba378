package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWS upgrades the connection and streams the jam's broadcast events
// to it. The socket is notify-only: client frames are read and discarded
// so close handshakes and pongs are processed, but nothing a client sends
// mutates state.
func handleWS(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jam := jamFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "jam_id", jam.ID, "error", err)
			return
		}
		defer conn.CloseNow()

		sub := hub.Subscribe(jam.ID)
		defer sub.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Drain the client side so the connection's control frames keep
		// flowing. Any read error means the client is gone.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					return
				}
			}
		}()

		pings := time.NewTicker(wsPingInterval)
		defer pings.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Write(wctx, websocket.MessageText, msg)
				wcancel()
				if err != nil {
					logger.Debug("websocket write failed", "jam_id", jam.ID, "error", err)
					return
				}
			case <-pings.C:
				wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(wctx)
				wcancel()
				if err != nil {
					return
				}
			}
		}
	}
}
