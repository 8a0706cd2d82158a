package events

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sai-assistant/sai/pkg/logger"
)

// WSBridge exposes the hub over a websocket endpoint. Each connection
// gets its own subscription; events are written as JSON envelopes.
type WSBridge struct {
	hub            *Hub
	allowedOrigins []string
	logger         *logger.Logger
}

// NewWSBridge creates the websocket handler.
func NewWSBridge(hub *Hub, allowedOrigins []string, log *logger.Logger) *WSBridge {
	return &WSBridge{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("events-ws"),
	}
}

// ServeHTTP implements http.Handler.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: b.allowedOrigins,
	})
	if err != nil {
		b.logger.Warn("Websocket accept failed", logger.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id, ch := b.hub.Subscribe()
	defer b.hub.Unsubscribe(id)

	b.logger.Info("UI client connected", logger.String("remote", r.RemoteAddr))
	defer b.logger.Info("UI client disconnected", logger.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}
