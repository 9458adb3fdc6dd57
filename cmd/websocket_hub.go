package cmd

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/simline/simline/sim/event"
)

// wsHub relays simulation events to websocket clients. Each client gets
// its own event subscription and writer goroutine, so a slow browser only
// loses its own events. Pacing is applied per client after each write and
// never reaches the kernel.
type wsHub struct {
	upgrader websocket.Upgrader
	events   *event.Hub
	pace     time.Duration
	buffer   int
}

func newWSHub(events *event.Hub, pace time.Duration, buffer int) *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events: events,
		pace:   pace,
		buffer: buffer,
	}
}

func (h *wsHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := h.events.Subscribe(h.buffer)
	go h.writeLoop(conn, sub)

	// Incoming messages are only read to notice the client going away.
	go func() {
		defer sub.Unsubscribe()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Warnf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()
}

func (h *wsHub) writeLoop(conn *websocket.Conn, sub *event.Subscription) {
	defer conn.Close()
	for ev := range sub.C() {
		if err := conn.WriteJSON(ev); err != nil {
			logrus.Warnf("Failed to send event to WebSocket client: %v", err)
			sub.Unsubscribe()
			return
		}
		if h.pace > 0 {
			time.Sleep(h.pace)
		}
	}
	if n := sub.Dropped(); n > 0 {
		logrus.Infof("WebSocket client missed %d events", n)
	}
}
