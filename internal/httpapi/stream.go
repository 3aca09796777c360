package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 25 * time.Second
	streamPollPeriod = 500 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes progress snapshots for
// one run until it reaches a terminal stage or the client disconnects.
// There is exactly one run per connection, so no hub/broadcast fan-out is
// needed: each connection polls its own run's tracker directly.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	go drainClientMessages(conn)

	ticker := time.NewTicker(streamPollPeriod)
	defer ticker.Stop()
	pinger := time.NewTicker(streamPingPeriod)
	defer pinger.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			snap, err := s.orch.Query(ctx, runID)
			if err != nil {
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				_ = conn.WriteJSON(map[string]string{"error": "run not found"})
				return
			}

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if snap.Stage.Terminal() {
				return
			}
		}
	}
}

// drainClientMessages discards anything the client sends (this stream is
// push-only) but keeps reading so control frames (ping, pong, close) are
// processed; it returns once the connection errors or closes.
func drainClientMessages(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
