package events

import (
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 2 * KeepAlive
)

// NewUpgrader accepts connections from the configured front-end origins.
// An empty list accepts any origin.
func NewUpgrader(origins []string) *gorillawebsocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
}

// WebSocket mirrors the SSE feed for display screens that prefer a socket.
// Each event is one JSON text frame; pings keep idle connections alive.
func (h *StreamHandler) WebSocket(upgrader *gorillawebsocket.Upgrader) echo.HandlerFunc {
	return func(c echo.Context) error {
		channel, err := channelFromQuery(c)
		if err != nil {
			return err
		}
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		mb := h.bus.Subscribe(channel)
		h.metrics.SubscriberOpened("websocket")
		defer func() {
			h.bus.Unsubscribe(channel, mb)
			h.metrics.SubscriberClosed("websocket")
			ws.Close()
		}()

		closed := make(chan struct{})
		go readPump(ws, closed)

		ping := time.NewTicker(h.keepAlive)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return nil
			case <-c.Request().Context().Done():
				return nil
			case <-mb.Ready():
				for _, ev := range mb.Drain() {
					ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := ws.WriteJSON(ev); err != nil {
						return nil
					}
				}
			case <-ping.C:
				ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
					return nil
				}
			}
		}
	}
}

// readPump discards inbound frames and reports when the peer goes away.
func readPump(ws *gorillawebsocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
