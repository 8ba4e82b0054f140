package ws

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/engine"
	gamepkg "github.com/gene9831/cabo/internal/game"
	"github.com/gene9831/cabo/internal/lobby"
)

// dispatch routes one decoded client intent.
func (s *Server) dispatch(c *client, m Msg) {
	switch m.T {
	case "create_lobby":
		l := s.Lobbies.CreateLobby(c.userID)
		s.SendToUser(c.userID, Msg{T: "lobby_created", M: map[string]any{"lobbyId": l.ID.String()}})

	case "join_lobby":
		l, ok := s.lobbyFromMsg(c.userID, m)
		if !ok {
			return
		}
		if err := l.Join(c.userID); err != nil {
			s.sendError(c.userID, err.Error())
			return
		}
		s.broadcastLobby(l)

	case "leave_lobby":
		l, ok := s.lobbyFromMsg(c.userID, m)
		if !ok {
			return
		}
		if err := l.Leave(c.userID); err != nil {
			s.sendError(c.userID, err.Error())
			return
		}
		s.broadcastLobby(l)

	case "lobby_ready":
		l, ok := s.lobbyFromMsg(c.userID, m)
		if !ok {
			return
		}
		ready, _ := m.M["ready"].(bool)
		if err := l.SetReady(c.userID, ready); err != nil {
			s.sendError(c.userID, err.Error())
			return
		}
		s.broadcastLobby(l)

	case "start_game":
		s.startGame(c.userID, m)

	case "action":
		s.submitAction(c.userID, m)

	case "sync":
		g, ok := s.Games.GameForUser(c.userID)
		if !ok {
			s.sendError(c.userID, "no active game")
			return
		}
		view := g.View(c.userID)
		s.SendToUser(c.userID, gamepkg.GameEvent{Type: gamepkg.EventPrivateSyncState, State: &view})

	default:
		s.sendError(c.userID, "unknown message type")
	}
}

func (s *Server) lobbyFromMsg(userID uuid.UUID, m Msg) (*lobby.Lobby, bool) {
	raw, _ := m.M["lobbyId"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		s.sendError(userID, "bad lobby id")
		return nil, false
	}
	l, err := s.Lobbies.GetLobby(id)
	if err != nil {
		s.sendError(userID, err.Error())
		return nil, false
	}
	return l, true
}

func (s *Server) broadcastLobby(l *lobby.Lobby) {
	seats := l.Seats()
	ids := make([]string, len(seats))
	for i, id := range seats {
		ids[i] = id.String()
	}
	msg := Msg{T: "lobby_state", M: map[string]any{"lobbyId": l.ID.String(), "seats": ids}}
	for _, uid := range seats {
		s.SendToUser(uid, msg)
	}
}

// startGame closes the lobby, creates the session, wires its broadcast
// callbacks onto the connection registry, and begins play.
func (s *Server) startGame(userID uuid.UUID, m Msg) {
	l, ok := s.lobbyFromMsg(userID, m)
	if !ok {
		return
	}
	if l.HostID != userID {
		s.sendError(userID, "only the host can start the game")
		return
	}
	seats, err := l.Start()
	if err != nil {
		s.sendError(userID, err.Error())
		return
	}

	g, err := s.Games.CreateGame(l.ID, seats, s.GameRules())
	if err != nil {
		l.Reopen()
		s.sendError(userID, err.Error())
		return
	}

	g.BroadcastFn = func(ev gamepkg.GameEvent) {
		for _, uid := range seats {
			s.SendToUser(uid, ev)
		}
	}
	g.BroadcastToPlayerFn = func(uid uuid.UUID, ev gamepkg.GameEvent) {
		s.SendToUser(uid, ev)
	}
	g.OnGameEnd = func(lobbyID uuid.UUID, standings []engine.Standing) {
		if lob, err := s.Lobbies.GetLobby(lobbyID); err == nil {
			lob.Reopen()
		}
		s.Games.RemoveGame(g.ID)
	}

	logrus.Infof("ws: lobby %s started game %s", l.ID, g.ID)
	g.Begin()
}

// submitAction decodes an engine action from the wire and runs it through
// the player's live game. Rejections go back to the actor alone.
func (s *Server) submitAction(userID uuid.UUID, m Msg) {
	g, ok := s.Games.GameForUser(userID)
	if !ok {
		s.sendError(userID, "no active game")
		return
	}

	actionType, _ := m.M["type"].(string)
	a := engine.Action{
		Type:            engine.ActionType(actionType),
		SlotIndex:       intField(m.M, "slot"),
		TargetSlotIndex: intField(m.M, "targetSlot"),
	}
	if raw, ok := m.M["targetPlayer"].(string); ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.sendError(userID, "bad target player id")
			return
		}
		a.TargetPlayerID = id
	}
	if perform, ok := m.M["perform"].(bool); ok {
		a.Perform = perform
	}

	if _, err := g.SubmitAction(userID, a); err != nil {
		s.sendError(userID, err.Error())
	}
}

// intField reads a JSON number out of the envelope payload.
func intField(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
