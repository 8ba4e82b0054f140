package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/gene9831/cabo/internal/engine"
)

// ViewCard is one card as a specific recipient may see it. Rank, suit,
// and value are present only when Known.
type ViewCard struct {
	ID    uuid.UUID `json:"id"`
	Known bool      `json:"known"`
	Rank  string    `json:"rank,omitempty"`
	Suit  string    `json:"suit,omitempty"`
	Value *int      `json:"value,omitempty"`
}

// ViewPlayer is one seat as seen by the recipient. Hand slots always list
// card ids; values appear only for face-up cards (round-end reveal).
type ViewPlayer struct {
	UserID        uuid.UUID  `json:"userId"`
	PlayerID      uuid.UUID  `json:"playerId"`
	Hand          []ViewCard `json:"hand"`
	CalledCabo    bool       `json:"calledCabo"`
	Connected     bool       `json:"connected"`
	IsCurrentTurn bool       `json:"isCurrentTurn"`
}

// ViewPhase is the public slice of the phase union. The held drawn card
// lives here when the recipient is allowed to see it exists; its contents
// appear only for the holder or when it came off the discard pile.
type ViewPhase struct {
	Type            engine.PhaseType `json:"type"`
	PlayerID        uuid.UUID        `json:"playerId,omitempty"`
	Drawn           *ViewCard        `json:"drawn,omitempty"`
	CanUseSkill     bool             `json:"canUseSkill,omitempty"`
	Skill           string           `json:"skill,omitempty"`
	AwaitingConfirm bool             `json:"awaitingConfirm,omitempty"`
}

// GameView is the per-recipient redacted projection of a game. No hidden
// card contents of other players or the deck ever appear in it.
type GameView struct {
	GameID       uuid.UUID     `json:"gameId"`
	Status       engine.Status `json:"status"`
	Round        int           `json:"round"`
	Phase        ViewPhase     `json:"phase"`
	DeckSize     int           `json:"deckSize"`
	DiscardSize  int           `json:"discardSize"`
	DiscardTop   *ViewCard     `json:"discardTop,omitempty"`
	Players      []ViewPlayer  `json:"players"`
	Scores       [][]int       `json:"scores"`
	Totals       []int         `json:"totals"`
	CaboCallerID uuid.UUID     `json:"caboCallerId,omitempty"`
	Version      int           `json:"version"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}

// buildView projects the canonical game state for one recipient.
// Assumes the session lock is held.
func (s *CaboGame) buildView(forUserID uuid.UUID) GameView {
	g := s.Engine
	view := GameView{
		GameID:       g.ID,
		Status:       g.Status,
		Round:        g.Round,
		DeckSize:     len(g.Deck),
		DiscardSize:  len(g.DiscardPile),
		Scores:       g.Scores,
		Totals:       g.Totals(),
		CaboCallerID: s.userIDForPlayer(g.CaboCallerID),
		Version:      s.Version,
		GeneratedAt:  time.Now(),
	}

	if top := g.DiscardTop(); top != nil {
		view.DiscardTop = revealedViewCard(top)
	}

	view.Phase = ViewPhase{
		Type:            g.Phase.Type,
		PlayerID:        g.Phase.PlayerID,
		CanUseSkill:     g.Phase.CanUseSkill,
		Skill:           g.Phase.Skill.String(),
		AwaitingConfirm: g.Phase.AwaitingConfirm,
	}
	if g.Phase.Drawn != nil {
		holderIdx := g.PlayerByUserID(forUserID)
		holder := holderIdx >= 0 && g.Players[holderIdx].ID == g.Phase.PlayerID
		if holder || g.Phase.DrawnFrom == engine.DrawFromDiscard {
			view.Phase.Drawn = revealedViewCard(g.Phase.Drawn)
		} else {
			view.Phase.Drawn = &ViewCard{ID: g.Phase.Drawn.ID}
		}
	}

	view.Players = make([]ViewPlayer, len(g.Players))
	for i := range g.Players {
		p := &g.Players[i]
		vp := ViewPlayer{
			UserID:        p.UserID,
			PlayerID:      p.ID,
			Hand:          make([]ViewCard, len(p.Hand)),
			CalledCabo:    p.CalledCabo,
			Connected:     s.connected[p.UserID],
			IsCurrentTurn: g.Status == engine.StatusPlaying && g.CurrentPlayerIndex == i,
		}
		for slot, hc := range p.Hand {
			if hc.FaceUp {
				vp.Hand[slot] = *revealedViewCard(&p.Hand[slot].Card)
			} else {
				vp.Hand[slot] = ViewCard{ID: hc.Card.ID}
			}
		}
		view.Players[i] = vp
	}
	return view
}

func revealedViewCard(c *engine.Card) *ViewCard {
	v := c.Value
	return &ViewCard{ID: c.ID, Known: true, Rank: c.Rank, Suit: c.Suit, Value: &v}
}
