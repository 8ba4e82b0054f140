// Package lobby seats users before a game starts. A lobby collects 2-4
// users, tracks per-user ready flags, and hands the ordered seat list to
// game creation once everyone is ready.
package lobby

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MinPlayers = 2
	MaxPlayers = 4
)

var (
	ErrLobbyFull      = errors.New("lobby is full")
	ErrAlreadySeated  = errors.New("user already seated")
	ErrNotSeated      = errors.New("user not seated in lobby")
	ErrNotEnough      = errors.New("not enough players to start")
	ErrNotAllReady    = errors.New("not all players are ready")
	ErrAlreadyStarted = errors.New("lobby already started a game")
	ErrLobbyNotFound  = errors.New("lobby not found")
)

// Lobby is one pre-game table. Seat order is join order and becomes turn
// order.
type Lobby struct {
	ID     uuid.UUID
	HostID uuid.UUID

	mu      sync.Mutex
	seats   []uuid.UUID
	ready   map[uuid.UUID]bool
	started bool
}

func NewLobby(hostID uuid.UUID) *Lobby {
	l := &Lobby{
		ID:     uuid.New(),
		HostID: hostID,
		ready:  make(map[uuid.UUID]bool),
	}
	l.seats = append(l.seats, hostID)
	l.ready[hostID] = false
	return l
}

// Join seats a user. Seat order is join order.
func (l *Lobby) Join(userID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrAlreadyStarted
	}
	if len(l.seats) >= MaxPlayers {
		return ErrLobbyFull
	}
	for _, id := range l.seats {
		if id == userID {
			return ErrAlreadySeated
		}
	}
	l.seats = append(l.seats, userID)
	l.ready[userID] = false
	logrus.Infof("lobby %s: user %s joined (%d seated)", l.ID, userID, len(l.seats))
	return nil
}

// Leave unseats a user and clears everyone's ready flag, since the table
// changed under them.
func (l *Lobby) Leave(userID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, id := range l.seats {
		if id == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotSeated
	}
	l.seats = append(l.seats[:idx], l.seats[idx+1:]...)
	delete(l.ready, userID)
	for id := range l.ready {
		l.ready[id] = false
	}
	logrus.Infof("lobby %s: user %s left (%d seated)", l.ID, userID, len(l.seats))
	return nil
}

// SetReady flips a user's ready flag.
func (l *Lobby) SetReady(userID uuid.UUID, ready bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ready[userID]; !ok {
		return ErrNotSeated
	}
	l.ready[userID] = ready
	return nil
}

// Seats returns the current seat order.
func (l *Lobby) Seats() []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uuid.UUID, len(l.seats))
	copy(out, l.seats)
	return out
}

// Start validates the table and hands back the ordered seat list for game
// creation. The lobby is then closed to further joins.
func (l *Lobby) Start() ([]uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil, ErrAlreadyStarted
	}
	if len(l.seats) < MinPlayers {
		return nil, ErrNotEnough
	}
	for _, id := range l.seats {
		if !l.ready[id] {
			return nil, ErrNotAllReady
		}
	}
	l.started = true
	out := make([]uuid.UUID, len(l.seats))
	copy(out, l.seats)
	logrus.Infof("lobby %s: starting game with %d players", l.ID, len(out))
	return out, nil
}

// Reopen lets a lobby host a rematch after its game ended.
func (l *Lobby) Reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = false
	for id := range l.ready {
		l.ready[id] = false
	}
}

// Manager is the registry of open lobbies.
type Manager struct {
	mu      sync.RWMutex
	lobbies map[uuid.UUID]*Lobby
}

func NewManager() *Manager {
	return &Manager{lobbies: make(map[uuid.UUID]*Lobby)}
}

func (m *Manager) CreateLobby(hostID uuid.UUID) *Lobby {
	l := NewLobby(hostID)
	m.mu.Lock()
	m.lobbies[l.ID] = l
	m.mu.Unlock()
	logrus.Infof("lobby %s: created by %s", l.ID, hostID)
	return l
}

func (m *Manager) GetLobby(id uuid.UUID) (*Lobby, error) {
	m.mu.RLock()
	l, ok := m.lobbies[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return l, nil
}

func (m *Manager) RemoveLobby(id uuid.UUID) {
	m.mu.Lock()
	delete(m.lobbies, id)
	m.mu.Unlock()
}
