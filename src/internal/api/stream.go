package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/michaelquigley/pfxlog"

	"hellopod/src/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Read-only greeting, any origin may watch it
	},
}

// handleStream pushes the greeting to a WebSocket client, and again whenever the
// host name file changes and the resolved greeting differs from the last one sent.
func (a *Api) handleStream(w http.ResponseWriter, r *http.Request) {
	log := pfxlog.ContextLogger(r.RemoteAddr)

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer c.Close()

	a.metrics.streams.Inc()
	defer a.metrics.streams.Dec()

	var changes <-chan struct{}
	if a.changes != nil {
		var unsubscribe func()
		changes, unsubscribe = a.changes.Subscribe()
		defer unsubscribe()
	}

	// Reads are only needed to process control frames and notice the client leaving
	closed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	log.Debug("greeting stream opened")

	last := ""
	send := func() bool {
		msg, err := a.greet(r.RemoteAddr)
		if err != nil {
			closeStream(c, websocket.CloseInternalServerErr, domain.HostnameErrorBody)
			return false
		}
		if msg == last {
			return true
		}
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.WithError(err).Debug("greeting stream write failed")
			return false
		}
		last = msg
		return true
	}

	if !send() {
		return
	}

	for {
		select {
		case <-changes:
			if !send() {
				return
			}
		case err := <-closed:
			log.WithError(err).Debug("greeting stream closed by client")
			return
		case <-a.done:
			closeStream(c, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func closeStream(c *websocket.Conn, code int, text string) {
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
