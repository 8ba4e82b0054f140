package engine

import "github.com/google/uuid"

// Suit identifiers. Single letters to match the wire format.
const (
	SuitHearts   = "H"
	SuitDiamonds = "D"
	SuitClubs    = "C"
	SuitSpades   = "S"
)

var suits = []string{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

var ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K"}

var rankValues = map[string]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8,
	"9": 9, "T": 10, "J": 11, "Q": 12, "K": 13,
}

// DeckSize is the number of cards in play per round: one standard deck.
const DeckSize = 52

// Card is an immutable playing card. Identity is the ID; Value drives
// scoring and skill triggers.
type Card struct {
	ID    uuid.UUID `json:"id"`
	Rank  string    `json:"rank"`
	Suit  string    `json:"suit"`
	Value int       `json:"value"`
}

// Skill is the special action unlocked by discarding a freshly drawn card.
type Skill uint8

const (
	SkillNone Skill = iota
	SkillPeek       // 7, 8 — look at one of your own cards
	SkillSpy        // 9, T — look at one of another player's cards
	SkillSwap       // J, Q — blind swap one of yours with another player's
	SkillKing       // K — look at both cards, then decide whether to swap
)

// String returns the wire name of the skill.
func (s Skill) String() string {
	switch s {
	case SkillPeek:
		return "peek"
	case SkillSpy:
		return "spy"
	case SkillSwap:
		return "swap"
	case SkillKing:
		return "king_swap"
	default:
		return ""
	}
}

// Skill returns the skill this card unlocks when discarded straight from
// a deck draw. The value mapping is the classic Cabo convention.
func (c Card) Skill() Skill {
	switch c.Value {
	case 7, 8:
		return SkillPeek
	case 9, 10:
		return SkillSpy
	case 11, 12:
		return SkillSwap
	case 13:
		return SkillKing
	default:
		return SkillNone
	}
}

// HandCard is one slot in a player's hand. FaceUp stays false until the
// round-end reveal; owners do not know their own cards past the setup peek.
type HandCard struct {
	Card   Card `json:"card"`
	FaceUp bool `json:"faceUp"`
}

// newDeck builds the standard 52-card deck in deterministic order.
// Card IDs are freshly generated; shuffling happens separately.
func newDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{
				ID:    uuid.New(),
				Rank:  rank,
				Suit:  suit,
				Value: rankValues[rank],
			})
		}
	}
	return deck
}
