package game

import (
	"github.com/google/uuid"

	"github.com/gene9831/cabo/internal/engine"
)

// GameEventType labels a game event broadcast over the socket layer.
type GameEventType string

// Public events go to every seated player; private events carry hidden
// card knowledge and go to exactly one recipient.
const (
	EventPlayerReady       GameEventType = "player_ready"
	EventGameReady         GameEventType = "game_ready"          // all peeked; countdown to first turn
	EventGamePlayerTurn    GameEventType = "game_player_turn"    // whose ACTION_CHOICE it is
	EventPlayerDrawDeck    GameEventType = "player_draw_deck"    // card ID only
	EventPlayerDrawDiscard GameEventType = "player_draw_discard" // full card, it was public
	EventGameReshuffle     GameEventType = "game_reshuffle_deck"
	EventPlayerDiscard     GameEventType = "player_discard"
	EventPlayerReplace     GameEventType = "player_replace"
	EventPlayerCabo        GameEventType = "player_cabo"
	EventSkillChoice       GameEventType = "player_skill_choice" // skill available, waiting on the actor
	EventSkillAction       GameEventType = "player_skill_action" // obfuscated skill resolution
	EventGameRoundEnd      GameEventType = "game_round_end"
	EventGameEnd           GameEventType = "game_end"
	EventGamePaused        GameEventType = "game_paused"
	EventGameResumed       GameEventType = "game_resumed"

	EventPrivateSetupPeek   GameEventType = "private_setup_peek"
	EventPrivateDrawnCard   GameEventType = "private_drawn_card"
	EventPrivateSkillReveal GameEventType = "private_skill_reveal"
	EventPrivateSyncState   GameEventType = "private_sync_state"
	EventPrivateError       GameEventType = "private_error"
)

// EventUser identifies a player within an event payload by account id.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// EventCard identifies a card within an event payload. Rank, suit, and
// value are omitted when the recipient must not learn them.
type EventCard struct {
	ID    uuid.UUID  `json:"id"`
	Rank  string     `json:"rank,omitempty"`
	Suit  string     `json:"suit,omitempty"`
	Value *int       `json:"value,omitempty"`
	Idx   *int       `json:"idx,omitempty"`
	User  *EventUser `json:"user,omitempty"` // owner, when relevant
}

// GameEvent is the wire structure for all game state broadcasts.
type GameEvent struct {
	Type    GameEventType  `json:"type"`
	User    *EventUser     `json:"user,omitempty"`
	Card    *EventCard     `json:"card,omitempty"`
	Card1   *EventCard     `json:"card1,omitempty"`
	Card2   *EventCard     `json:"card2,omitempty"`
	Skill   string         `json:"skill,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	State   *GameView      `json:"state,omitempty"`
}

// publicCard hides everything but identity.
func publicCard(c *engine.Card) *EventCard {
	if c == nil {
		return nil
	}
	return &EventCard{ID: c.ID}
}

// knownCard includes rank, suit, and value.
func knownCard(c *engine.Card) *EventCard {
	if c == nil {
		return nil
	}
	v := c.Value
	return &EventCard{ID: c.ID, Rank: c.Rank, Suit: c.Suit, Value: &v}
}

func knownCardAt(c *engine.Card, idx int) *EventCard {
	ec := knownCard(c)
	if ec != nil {
		ec.Idx = &idx
	}
	return ec
}
