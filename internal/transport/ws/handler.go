package ws

import (
	"context"
	"net/http"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
// Connections outlive the request, so they hang off base rather than the
// request context.
func ServeWS(base context.Context, hub *Hub, parser middleware.TokenParser, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		sess, err := parser.ParseToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		me, err := hub.services.Profiles.Get(r.Context(), sess)
		if err != nil {
			http.Error(w, "unknown account", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			logger.Warn(r.Context(), "ws accept failed", "error", err)
			return
		}

		client := NewClient(base, hub, conn, sess, me.Partner(), logger)
		hub.join(client)

		go client.WritePump()
		client.ReadPump()
	}
}
