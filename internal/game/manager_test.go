package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gene9831/cabo/internal/engine"
)

func TestManagerCreateValidatesPlayerCount(t *testing.T) {
	m := NewManager()

	_, err := m.CreateGame(uuid.New(), []uuid.UUID{uuid.New()}, testRules())
	require.Error(t, err)
	var invalid *engine.InvalidPlayerCountError
	assert.ErrorAs(t, err, &invalid)

	five := make([]uuid.UUID, 5)
	for i := range five {
		five[i] = uuid.New()
	}
	_, err = m.CreateGame(uuid.New(), five, testRules())
	assert.Error(t, err)
}

func TestManagerLookup(t *testing.T) {
	m := NewManager()
	users := []uuid.UUID{uuid.New(), uuid.New()}

	g, err := m.CreateGame(uuid.New(), users, testRules())
	require.NoError(t, err)

	got, err := m.GetGame(g.ID)
	require.NoError(t, err)
	assert.Same(t, g, got)

	byUser, ok := m.GameForUser(users[1])
	require.True(t, ok)
	assert.Same(t, g, byUser)

	_, ok = m.GameForUser(uuid.New())
	assert.False(t, ok)

	m.RemoveGame(g.ID)
	_, err = m.GetGame(g.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
}
