// Package engine implements the Cabo card game rules: the data model for
// game state and the phase state machine governing turn order, action
// legality, and scoring.
//
// The engine is pure computation over in-memory state. It performs no I/O
// and holds no locks; serialized access per game is the caller's job.
package engine

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusPlaying   Status = "PLAYING"
	StatusPaused    Status = "PAUSED"
	StatusEnded     Status = "ENDED"
	StatusAbandoned Status = "ABANDONED"
)

// PhaseType tags the current state of the turn-action protocol.
type PhaseType string

const (
	PhaseSetup        PhaseType = "SETUP"
	PhaseReady        PhaseType = "READY"
	PhaseActionChoice PhaseType = "ACTION_CHOICE"
	PhaseDraw         PhaseType = "DRAW"
	PhaseDiscard      PhaseType = "DISCARD"
	PhasePeek         PhaseType = "PEEK"
	PhaseSpy          PhaseType = "SPY"
	PhaseSwap         PhaseType = "SWAP"
	PhaseRoundEnd     PhaseType = "ROUND_END"
)

// DrawSource records where the held card came from.
type DrawSource string

const (
	DrawFromDeck    DrawSource = "deck"
	DrawFromDiscard DrawSource = "discard"
)

// Phase is a struct-tagged union: Type selects which of the remaining
// fields carry meaning.
type Phase struct {
	Type     PhaseType `json:"type"`
	PlayerID uuid.UUID `json:"playerId,omitempty"` // whose decision is pending

	// READY
	ReadyAt time.Time `json:"readyAt,omitempty"`

	// DRAW
	Drawn     *Card      `json:"drawn,omitempty"`
	DrawnFrom DrawSource `json:"drawnFrom,omitempty"`

	// DISCARD
	CanUseSkill bool  `json:"canUseSkill,omitempty"`
	Skill       Skill `json:"skill,omitempty"`

	// SWAP with king look: targets chosen, awaiting the swap decision.
	AwaitingConfirm bool      `json:"awaitingConfirm,omitempty"`
	SwapOwnSlot     int       `json:"-"`
	SwapOtherID     uuid.UUID `json:"-"`
	SwapOtherSlot   int       `json:"-"`
}

// Player is one seat at the table.
type Player struct {
	ID            uuid.UUID  `json:"id"`     // game-local identity
	UserID        uuid.UUID  `json:"userId"` // external account reference
	Hand          []HandCard `json:"hand"`
	PeekedAtSetup bool       `json:"peekedAtSetup"`
	CalledCabo    bool       `json:"calledCabo"` // once per game
}

// Game is the aggregate game state. All mutation funnels through Apply;
// nothing else writes the deck, discard pile, phase, or hands.
type Game struct {
	ID        uuid.UUID `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	PlayerIDs          []uuid.UUID `json:"playerIds"` // turn order, fixed at creation
	Players            []Player    `json:"players"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`

	Deck        []Card `json:"deck"`        // draw pile, top = last element
	DiscardPile []Card `json:"discardPile"` // top = last element

	Round  int     `json:"round"`  // completed rounds
	Phase  Phase   `json:"phase"`
	Scores [][]int `json:"scores"` // one row per completed round, one column per seat

	// Active Cabo call for the current round; uuid.Nil when none.
	CaboCallerID   uuid.UUID `json:"caboCallerId,omitempty"`
	TurnsAfterCabo int       `json:"turnsAfterCabo"`

	// Ready acknowledgements during READY, indexed by seat.
	ReadyAcks []bool `json:"readyAcks,omitempty"`

	Rules Rules `json:"rules"`

	LastAction LastAction `json:"-"`

	// RNG is the xorshift64 state driving every shuffle in this game.
	RNG uint64 `json:"rng"`
}

// LastAction records the observable outcome of the most recent successful
// transition. The caller reads it to emit public and private events; card
// reveals recorded here are private knowledge for RevealedTo only.
type LastAction struct {
	Type       ActionType
	Actor      uuid.UUID
	Card       *Card     // card moved publicly (discard top, replace discard)
	Revealed   *Card     // card privately revealed by a peek, spy, or king look
	Revealed2  *Card     // second card of a king look
	RevealedTo uuid.UUID // sole recipient of the reveal
	SlotIndex  int
	TargetID   uuid.UUID
	TargetSlot int
	Reshuffled bool // deck was rebuilt from the discard pile during this draw
	RoundEnded bool
	GameEnded  bool

	// RevealedHands is the full-table reveal captured at round end, one
	// entry per seat, taken before the next deal replaces the hands.
	RevealedHands []RevealedHand
}

// RevealedHand is one seat's hand as shown to the whole table at round end.
type RevealedHand struct {
	PlayerID uuid.UUID
	Cards    []Card
}

// NewGame seats 2-4 players in the given turn order, shuffles a full deck,
// deals each hand, and starts the game in SETUP. The seed drives all
// shuffles for this game; a zero seed is replaced so the generator can run.
func NewGame(seed uint64, playerUserIDs []uuid.UUID, rules Rules) (*Game, error) {
	if len(playerUserIDs) < 2 || len(playerUserIDs) > 4 {
		return nil, &InvalidPlayerCountError{Count: len(playerUserIDs)}
	}

	now := time.Now()
	g := &Game{
		ID:        uuid.New(),
		Status:    StatusPlaying,
		CreatedAt: now,
		UpdatedAt: now,
		Rules:     rules,
		RNG:       seed,
	}
	if g.RNG == 0 {
		g.RNG = 1 // xorshift cannot start at 0
	}

	for _, userID := range playerUserIDs {
		p := Player{ID: uuid.New(), UserID: userID}
		g.Players = append(g.Players, p)
		g.PlayerIDs = append(g.PlayerIDs, p.ID)
	}

	g.startRound()
	return g, nil
}

// startRound builds a fresh shuffled deck, deals hands round-robin, and
// enters SETUP. Peek flags and acknowledgements reset; Cabo call state for
// the round clears.
func (g *Game) startRound() {
	deck := newDeck()
	g.shuffle(deck)

	n := len(g.Players)
	hands := make([][]HandCard, n)
	for slot := 0; slot < g.Rules.HandSize; slot++ {
		for p := 0; p < n; p++ {
			card := deck[len(deck)-1]
			deck = deck[:len(deck)-1]
			hands[p] = append(hands[p], HandCard{Card: card})
		}
	}
	for p := range g.Players {
		g.Players[p].Hand = hands[p]
		g.Players[p].PeekedAtSetup = false
	}

	g.Deck = deck
	g.DiscardPile = nil
	g.CurrentPlayerIndex = 0
	g.CaboCallerID = uuid.Nil
	g.TurnsAfterCabo = 0
	g.ReadyAcks = make([]bool, n)
	g.Phase = Phase{Type: PhaseSetup}
}

// nextRand is an inline xorshift64 step.
func (g *Game) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// shuffle permutes the cards in place with Fisher-Yates.
func (g *Game) shuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := int(g.nextRand() % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// drawFromDeckPile pops the top deck card, reshuffling the discard pile
// (minus its top card) into a new deck first if the deck ran dry. The
// reshuffle is mandatory: draws never fail while cards remain in play.
func (g *Game) drawFromDeckPile() (Card, bool, error) {
	reshuffled := false
	if len(g.Deck) == 0 {
		if len(g.DiscardPile) <= 1 {
			return Card{}, false, ErrEmptyDeckUnrecoverable
		}
		top := g.DiscardPile[len(g.DiscardPile)-1]
		g.Deck = append(g.Deck, g.DiscardPile[:len(g.DiscardPile)-1]...)
		g.DiscardPile = []Card{top}
		g.shuffle(g.Deck)
		reshuffled = true
	}
	card := g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	return card, reshuffled, nil
}

// playerByID returns the seat index for a player id, or -1.
func (g *Game) playerByID(id uuid.UUID) int {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// PlayerByUserID returns the seat index for an external user id, or -1.
func (g *Game) PlayerByUserID(userID uuid.UUID) int {
	for i := range g.Players {
		if g.Players[i].UserID == userID {
			return i
		}
	}
	return -1
}

// CurrentPlayer returns the player whose turn it is.
func (g *Game) CurrentPlayer() *Player {
	return &g.Players[g.CurrentPlayerIndex]
}

// DiscardTop returns the top of the discard pile, or nil when empty.
func (g *Game) DiscardTop() *Card {
	if len(g.DiscardPile) == 0 {
		return nil
	}
	return &g.DiscardPile[len(g.DiscardPile)-1]
}

// Clone returns a deep copy detached from the live game: the piles,
// score rows, and every hand get their own backing arrays, so the copy
// stays stable while the original keeps mutating.
func (g *Game) Clone() *Game {
	c := *g
	c.PlayerIDs = append([]uuid.UUID(nil), g.PlayerIDs...)
	c.Deck = append([]Card(nil), g.Deck...)
	c.DiscardPile = append([]Card(nil), g.DiscardPile...)
	c.ReadyAcks = append([]bool(nil), g.ReadyAcks...)
	c.Players = make([]Player, len(g.Players))
	copy(c.Players, g.Players)
	for i := range c.Players {
		c.Players[i].Hand = append([]HandCard(nil), g.Players[i].Hand...)
	}
	c.Scores = make([][]int, len(g.Scores))
	for i := range g.Scores {
		c.Scores[i] = append([]int(nil), g.Scores[i]...)
	}
	if g.Phase.Drawn != nil {
		drawn := *g.Phase.Drawn
		c.Phase.Drawn = &drawn
	}
	return &c
}

// IsTerminal reports whether the game can no longer be mutated.
func (g *Game) IsTerminal() bool {
	return g.Status == StatusEnded || g.Status == StatusAbandoned
}

// Abandon cancels the game externally. Terminal states are immutable, so
// an already ended or abandoned game is left alone.
func (g *Game) Abandon() {
	if g.IsTerminal() {
		return
	}
	g.Status = StatusAbandoned
	g.UpdatedAt = time.Now()
}

// Pause suspends the game; Resume re-enters play. Both are no-ops outside
// their expected state.
func (g *Game) Pause() {
	if g.Status == StatusPlaying {
		g.Status = StatusPaused
		g.UpdatedAt = time.Now()
	}
}

func (g *Game) Resume() {
	if g.Status == StatusPaused {
		g.Status = StatusPlaying
		g.UpdatedAt = time.Now()
	}
}
