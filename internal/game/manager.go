package game

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/engine"
)

var ErrGameNotFound = errors.New("game not found")

// Manager is the process-wide registry of live games. Lookup and
// registration take the manager lock; everything inside a game takes that
// game's own lock.
type Manager struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*CaboGame
}

func NewManager() *Manager {
	return &Manager{games: make(map[uuid.UUID]*CaboGame)}
}

// CreateGame seats the users into a fresh game and registers it. The
// broadcast callbacks are left for the caller to wire before Begin.
func (m *Manager) CreateGame(lobbyID uuid.UUID, playerUserIDs []uuid.UUID, rules engine.Rules) (*CaboGame, error) {
	g, err := NewCaboGame(lobbyID, playerUserIDs, rules)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()
	logrus.Infof("manager: created game %s for lobby %s", g.ID, lobbyID)
	return g, nil
}

// GetGame returns the live game for the id, or ErrGameNotFound.
func (m *Manager) GetGame(id uuid.UUID) (*CaboGame, error) {
	m.mu.RLock()
	g, ok := m.games[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// GameForUser finds the live game a user is seated in, if any.
func (m *Manager) GameForUser(userID uuid.UUID) (*CaboGame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.games {
		if g.Engine.PlayerByUserID(userID) >= 0 {
			return g, true
		}
	}
	return nil, false
}

// RemoveGame drops a finished game from the registry.
func (m *Manager) RemoveGame(id uuid.UUID) {
	m.mu.Lock()
	delete(m.games, id)
	m.mu.Unlock()
}
