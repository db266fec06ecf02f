package websocket

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/kazna/internal/auth"
)

// Greeter builds the snapshot a newly connected client receives.
type Greeter func(ctx context.Context, admin bool) (Message, error)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. The admin flag is taken from the
// request's AuthContext at connect time.
func HandleWebSocket(hub *Hub, originPatterns []string, greet Greeter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
		if len(originPatterns) == 0 {
			opts.InsecureSkipVerify = true
		}
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		admin := auth.IsAdmin(r.Context())
		client := NewClient(hub, conn, admin)
		client.Run(r.Context(), func(c *Client) {
			if greet == nil {
				return
			}
			msg, err := greet(r.Context(), admin)
			if err != nil {
				hub.logger.Error("websocket greeting", "error", err)
				return
			}
			if err := hub.Send(c, msg); err != nil {
				hub.logger.Error("websocket greeting send", "error", err)
			}
		})
	}
}
