package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/togpt/togpt/internal/chat"
)

const writeWait = 10 * time.Second

// WireEvent is the JSON envelope sent server->client on /api/events.
// Seq increases by one per event on a connection.
type WireEvent struct {
	Seq   int64       `json:"seq"`
	Type  string      `json:"type"`
	State *chat.State `json:"state,omitempty"`
}

// handleEvents streams a state snapshot on connect and after every
// registry change. A slow client only ever sees the newest snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade(w, r)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates := make(chan chat.State, 1)
	unsubscribe := s.reg.Subscribe(func(st chat.State) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var seq int64
	send := func(st chat.State) error {
		seq++
		return writeEvent(conn, WireEvent{Seq: seq, Type: "state", State: &st})
	}

	if err := send(s.reg.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case st := <-updates:
			if err := send(st); err != nil {
				s.logger.Debug("event write failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.originAllowed,
	}
	return upgrader.Upgrade(w, r, nil)
}

func writeEvent(conn *websocket.Conn, e WireEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
