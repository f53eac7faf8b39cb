package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The desktop webview connects from its own scheme; CORS is enforced by
	// the router middleware for plain HTTP routes.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebsocketHandler streams hub events to the client as JSON text frames
// until either side goes away.
func (h *Hub) WebsocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error.
			h.log.Warn("Websocket upgrade failed", logger.ErrorField(err))
			return
		}

		log := logger.GetLoggerFromContext(r.Context(), h.log)
		sub := h.Subscribe()
		log.Info("Event stream connected", logger.IntField("subscribers", h.Subscribers()))

		done := make(chan struct{})
		go readLoop(conn, done)

		writeLoop(conn, sub, done, log)

		sub.Close()
		_ = conn.Close()
		log.Info("Event stream disconnected")
	}
}

// readLoop drains client frames so control messages are processed and
// signals done when the connection closes.
func readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLoop(conn *websocket.Conn, sub *Subscription, done <-chan struct{}, log logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("Event stream write failed", logger.ErrorField(err))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
