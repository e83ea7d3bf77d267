package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/fire-tactics/internal/engine"
)

const (
	maxStreamConns = 50
	pingInterval   = 30 * time.Second
	writeWait      = 10 * time.Second
)

// handleStream pushes simulation events to a websocket client until it
// disconnects. Slow clients miss events instead of stalling the tick.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.streamMu.Lock()
	if s.streamConns >= maxStreamConns {
		s.streamMu.Unlock()
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	s.streamConns++
	s.streamMu.Unlock()
	defer func() {
		s.streamMu.Lock()
		s.streamConns--
		s.streamMu.Unlock()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(id)

	// The greeting tells the client it is subscribed.
	hello := engine.Event{
		Tick:        s.Sim.CurrentTick(),
		Description: "stream connected",
		Category:    engine.CategoryOperator,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	// Reader goroutine detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	slog.Debug("stream client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
