package rpc

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seloria/seloria/core"
)

// writeWait bounds how long a single websocket write may block a
// subscriber's fan-out goroutine.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Agents connect from arbitrary origins; this endpoint carries no
	// session state an attacker could ride on, only a read-only event feed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Type   string            `json:"type"`
	Height uint64            `json:"height"`
	TxHash string            `json:"tx_hash"`
	Fields map[string]string `json:"fields"`
}

func toWSEvent(ev core.Event) wsEvent {
	return wsEvent{Type: string(ev.Type), Height: ev.Height, TxHash: ev.TxHash.Hex(), Fields: ev.Fields}
}

// serveEvents upgrades the connection to a websocket and streams every
// committed event until the client disconnects. The emitter is the one passed
// to NewServer; with a nil emitter the request is answered 503 without upgrading.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	if s.emitter == nil {
		http.Error(w, "event stream not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[rpc] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.emitter.Subscribe()
	defer unsubscribe()

	// Drain client-initiated control frames (pings/close) on its own
	// goroutine so a silent client doesn't wedge the write loop.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toWSEvent(ev)); err != nil {
				return
			}
		}
	}
}
