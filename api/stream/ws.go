// Package stream pushes dispense status events to websocket clients.
package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/vending/core/logger"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/internal/eventbus"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the kiosk frontend is served from a different origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHandler serves /ws. Each connection gets its own bus subscription,
// released when the client goes away.
func NewHandler(bus *eventbus.TypedBus[model.StatusEvent], log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("websocket upgrade: %v", err)
			return
		}
		sub := bus.Subscribe()
		log.Infof("websocket client connected from %s", r.RemoteAddr)
		defer func() {
			bus.Unsubscribe(sub)
			_ = conn.Close()
			log.Infof("websocket client %s disconnected", r.RemoteAddr)
		}()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-sub:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					log.Warnf("websocket write: %v", err)
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	})
}
