package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ConnectionManager tracks live websocket connections for the realtime
// channel. Connections are keyed by a server-generated id; names are only
// present once the client announces itself with a user-login message.
type ConnectionManager struct {
	connections map[string]*websocket.Conn
	names       map[string]string
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		names:       make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.names, id)
}

// SetName records the display name announced over a connection.
func (cm *ConnectionManager) SetName(id, name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.connections[id]; exists {
		cm.names[id] = name
	}
}

func (cm *ConnectionManager) Name(id string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.names[id]
}

// Count reports how many connections are currently open.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Snapshot returns the current set of connections. The copy lets broadcasts
// iterate without holding the manager lock across socket writes.
func (cm *ConnectionManager) Snapshot() map[string]*websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := make(map[string]*websocket.Conn, len(cm.connections))
	for id, conn := range cm.connections {
		conns[id] = conn
	}
	return conns
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	s.log.WithField("connection", connectionID).Info("websocket connected")
	s.connectionManager.AddConnection(connectionID, socket)
	s.broadcastOnlineCount()

	defer func() {
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.log.WithField("connection", connectionID).Info("websocket disconnected")
		s.broadcastOnlineCount()
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			s.log.WithField("connection", connectionID).Debugf("read ended: %v", err)
			return
		}

		if msgType != websocket.MessageText {
			s.log.WithField("connection", connectionID).Warn("non-text input ignored")
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: Too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err.Error())
			continue
		}

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "user-login":
			s.handleUserLogin(socket, ctx, connectionID, msg.Payload)

		case "skor-disimpan":
			s.handleScoreSaved(socket, ctx, connectionID, msg.Payload)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		s.log.WithField("connection", connectionID).Warnf("failed to send pong: %v", err)
	}
}

// handleUserLogin records the announced display name and tells everyone the
// online roster changed.
func (s *Server) handleUserLogin(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req UserLoginPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid user-login payload")
		return
	}
	if err := ValidatePlayerName(req.Nama); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.connectionManager.SetName(connectionID, req.Nama)
	s.log.WithFields(map[string]any{
		"connection": connectionID,
		"nama":       req.Nama,
	}).Info("user announced")

	s.broadcastAll(ServerMessage{Type: "user-login", Payload: req})
	s.broadcastOnlineCount()
}

// handleScoreSaved fans a finished game out to every connected client as a
// leaderboard-update so open leaderboards refresh without polling.
func (s *Server) handleScoreSaved(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ScoreSavedPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid skor-disimpan payload")
		return
	}

	s.broadcastScoreSaved(req)
}

// broadcastScoreSaved is shared by the websocket path and the HTTP save-score
// handler, so a score reaches open leaderboards no matter how it arrived.
func (s *Server) broadcastScoreSaved(score ScoreSavedPayload) {
	s.broadcastAll(ServerMessage{
		Type: "leaderboard-update",
		Payload: LeaderboardUpdatePayload{
			NamaPemain:       score.NamaPemain,
			Skor:             score.Skor,
			WaktuDetik:       score.WaktuDetik,
			TingkatKesulitan: score.TingkatKesulitan,
			Message: fmt.Sprintf("%s selesai %s dengan skor %d!",
				score.NamaPemain, score.TingkatKesulitan, score.Skor),
		},
	})
}

func (s *Server) broadcastOnlineCount() {
	s.broadcastAll(ServerMessage{
		Type: "user-online-count",
		Payload: OnlineCountPayload{
			OnlineCount: s.connectionManager.Count(),
		},
	})
}

// broadcastAll sends a message to every open connection. Write failures are
// logged and skipped: the failing connection's read loop will notice and
// clean up on its own.
func (s *Server) broadcastAll(msg ServerMessage) {
	for id, conn := range s.connectionManager.Snapshot() {
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			s.log.WithField("connection", id).Warnf("broadcast failed: %v", err)
		}
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type:    "error",
		Payload: ErrorPayload{Message: msg},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		s.log.Warnf("failed to send error message: %v", err)
	}
}
