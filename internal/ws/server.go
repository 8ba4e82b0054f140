// Package ws is the event-dispatch layer: one WebSocket endpoint that
// authenticates the user, decodes intents into engine actions, routes
// them through the game sessions, and fans events and per-recipient views
// back out over the live connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/auth"
	"github.com/gene9831/cabo/internal/engine"
	gamepkg "github.com/gene9831/cabo/internal/game"
	"github.com/gene9831/cabo/internal/lobby"
)

const (
	pingInterval  = 15 * time.Second
	sendQueueSize = 64
)

// Msg is the wire envelope for client intents.
type Msg struct {
	T string         `json:"t"`
	M map[string]any `json:"m,omitempty"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Server owns the connection registry and routes between the transport
// and the lobby/game managers.
type Server struct {
	Auth    *auth.Authenticator
	Games   *gamepkg.Manager
	Lobbies *lobby.Manager

	// GameRules produces the rules for a newly started game; wired by cmd
	// from config.
	GameRules func() engine.Rules

	mu      sync.RWMutex
	clients map[uuid.UUID]*client // by user id, latest connection wins
}

func NewServer(a *auth.Authenticator, games *gamepkg.Manager, lobbies *lobby.Manager) *Server {
	return &Server{
		Auth:      a,
		Games:     games,
		Lobbies:   lobbies,
		GameRules: engine.DefaultRules,
		clients:   make(map[uuid.UUID]*client),
	}
}

// HandleWS upgrades the connection. The token comes from the Authorization
// bearer header or the token query parameter.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := s.Auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		logrus.Warnf("ws: accept failed for user %s: %v", userID, err)
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendQueueSize)}
	s.register(c)
	logrus.Infof("ws: user %s connected", userID)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.unregister(c)
	logrus.Infof("ws: user %s disconnected", userID)
	if g, ok := s.Games.GameForUser(userID); ok {
		g.HandleDisconnect(userID)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	if old, ok := s.clients[c.userID]; ok {
		close(old.send)
	}
	s.clients[c.userID] = c
	s.mu.Unlock()

	if g, ok := s.Games.GameForUser(c.userID); ok {
		g.HandleReconnect(c.userID)
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if cur, ok := s.clients[c.userID]; ok && cur == c {
		delete(s.clients, c.userID)
		close(c.send)
	}
	s.mu.Unlock()
}

// writeLoop drains the send queue onto the socket and keeps the
// connection alive with pings.
func (s *Server) writeLoop(ctx context.Context, c *client) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var m Msg
		if err := json.Unmarshal(data, &m); err != nil {
			s.sendError(c.userID, "bad message")
			continue
		}
		s.dispatch(c, m)
	}
}

// SendToUser queues a marshaled payload for one user's connection.
// Drops on a full queue rather than blocking a game lock path. The send
// happens under the registry read lock: register/unregister close the
// channel under the write lock, so a send can never hit a closed channel.
func (s *Server) SendToUser(userID uuid.UUID, payload any) {
	blob, err := json.Marshal(payload)
	if err != nil {
		logrus.Errorf("ws: marshaling payload for %s: %v", userID, err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[userID]
	if !ok {
		return
	}
	select {
	case c.send <- blob:
	default:
		logrus.Warnf("ws: dropping message for %s, send queue full", userID)
	}
}

func (s *Server) sendError(userID uuid.UUID, reason string) {
	s.SendToUser(userID, gamepkg.GameEvent{
		Type:    gamepkg.EventPrivateError,
		Payload: map[string]any{"reason": reason},
	})
}
