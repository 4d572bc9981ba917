package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only send control
	// frames.
	maxMessageSize = 512
)

// handleEvents upgrades the request and streams hub messages. A "since"
// query parameter replays buffered messages after that sequence number.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	if !s.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	remoteAddr := conn.RemoteAddr().String()
	sub, backlog := s.hub.subscribe(remoteAddr, since)
	s.logger.Info("Event stream opened",
		zap.String("remote_addr", remoteAddr),
		zap.Uint64("since", since),
		zap.Int("backlog", len(backlog)),
	)

	go s.readPump(conn, sub)
	s.writePump(conn, sub, backlog)

	s.logger.Info("Event stream closed", zap.String("remote_addr", remoteAddr))
}

// readPump discards client frames and answers pongs. It unsubscribes when
// the peer goes away, which ends the write pump.
func (s *Server) readPump(conn *websocket.Conn, sub *subscriber) {
	defer s.hub.unsubscribe(sub)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Event stream read error",
					zap.String("remote_addr", sub.id),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump sends the backlog, then live messages, with periodic pings.
func (s *Server) writePump(conn *websocket.Conn, sub *subscriber, backlog []Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for _, msg := range backlog {
		if err := s.writeMessage(conn, msg); err != nil {
			return
		}
	}

	for {
		select {
		case msg, ok := <-sub.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if err := s.writeMessage(conn, msg); err != nil {
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

func (s *Server) writeMessage(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("Event stream write failed",
			zap.String("remote_addr", conn.RemoteAddr().String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
