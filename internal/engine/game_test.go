package engine

import (
	"testing"

	"github.com/google/uuid"
)

// testRules returns house rules tuned for deterministic tests: no ready
// delay so timer_elapsed passes immediately.
func testRules() Rules {
	r := DefaultRules()
	r.ReadyDelay = 0
	return r
}

// newTestGame creates a seeded game and returns it with the player user ids.
func newTestGame(t *testing.T, numPlayers int) (*Game, []uuid.UUID) {
	t.Helper()
	userIDs := make([]uuid.UUID, numPlayers)
	for i := range userIDs {
		userIDs[i] = uuid.New()
	}
	g, err := NewGame(42, userIDs, testRules())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g, userIDs
}

// advanceToPlay walks a fresh game through SETUP and READY into the first
// ACTION_CHOICE.
func advanceToPlay(t *testing.T, g *Game, userIDs []uuid.UUID) {
	t.Helper()
	for _, uid := range userIDs {
		if err := g.Apply(uid, Action{Type: ActionPlayerReady}); err != nil {
			t.Fatalf("setup ready: %v", err)
		}
	}
	if g.Phase.Type != PhaseReady {
		t.Fatalf("phase = %s after all setup readies, want READY", g.Phase.Type)
	}
	if err := g.Apply(uuid.Nil, Action{Type: ActionTimerElapsed}); err != nil {
		t.Fatalf("timer elapsed: %v", err)
	}
	if g.Phase.Type != PhaseActionChoice {
		t.Fatalf("phase = %s after timer, want ACTION_CHOICE", g.Phase.Type)
	}
}

// cardsInPlay counts every card in the deck, discard pile, hands, and the
// held drawn card.
func cardsInPlay(g *Game) int {
	n := len(g.Deck) + len(g.DiscardPile)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	if g.Phase.Drawn != nil {
		n++
	}
	return n
}

// TestNewGameDealShape verifies the 3-player creation scenario: SETUP
// phase, handSize cards per player all face-down, remainder on the deck.
func TestNewGameDealShape(t *testing.T) {
	g, _ := newTestGame(t, 3)

	if g.Status != StatusPlaying {
		t.Errorf("status = %s, want PLAYING", g.Status)
	}
	if g.Phase.Type != PhaseSetup {
		t.Errorf("phase = %s, want SETUP", g.Phase.Type)
	}
	wantDeck := DeckSize - 3*g.Rules.HandSize
	if len(g.Deck) != wantDeck {
		t.Errorf("len(deck) = %d, want %d", len(g.Deck), wantDeck)
	}
	if len(g.DiscardPile) != 0 {
		t.Errorf("len(discard) = %d, want 0", len(g.DiscardPile))
	}
	for i, p := range g.Players {
		if len(p.Hand) != g.Rules.HandSize {
			t.Errorf("player %d hand size = %d, want %d", i, len(p.Hand), g.Rules.HandSize)
		}
		for s, hc := range p.Hand {
			if hc.FaceUp {
				t.Errorf("player %d slot %d dealt face-up", i, s)
			}
		}
	}
	if cardsInPlay(g) != DeckSize {
		t.Errorf("cards in play = %d, want %d", cardsInPlay(g), DeckSize)
	}
}

// TestNewGameInvalidPlayerCount verifies game creation outside 2-4 seats
// fails with InvalidPlayerCountError.
func TestNewGameInvalidPlayerCount(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		userIDs := make([]uuid.UUID, n)
		for i := range userIDs {
			userIDs[i] = uuid.New()
		}
		_, err := NewGame(1, userIDs, testRules())
		if err == nil {
			t.Fatalf("NewGame with %d players succeeded, want error", n)
		}
		pcErr, ok := err.(*InvalidPlayerCountError)
		if !ok {
			t.Fatalf("error type = %T, want *InvalidPlayerCountError", err)
		}
		if pcErr.Count != n {
			t.Errorf("error count = %d, want %d", pcErr.Count, n)
		}
	}
}

// TestShuffleDeterministic verifies the same seed deals the same cards and
// a different seed does not.
func TestShuffleDeterministic(t *testing.T) {
	userIDs := []uuid.UUID{uuid.New(), uuid.New()}
	g1, _ := NewGame(7, userIDs, testRules())
	g2, _ := NewGame(7, userIDs, testRules())
	g3, _ := NewGame(8, userIDs, testRules())

	sig := func(g *Game) string {
		s := ""
		for _, c := range g.Deck {
			s += c.Rank + c.Suit
		}
		return s
	}
	if sig(g1) != sig(g2) {
		t.Error("same seed produced different deck orders")
	}
	if sig(g1) == sig(g3) {
		t.Error("different seeds produced identical deck orders")
	}
}

// TestConservationThroughTurns verifies the fixed card count holds across
// draws, discards, and replaces.
func TestConservationThroughTurns(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	for turn := 0; turn < 10; turn++ {
		cur := g.CurrentPlayer().UserID
		if err := g.Apply(cur, Action{Type: ActionDrawFromDeck}); err != nil {
			t.Fatalf("turn %d draw: %v", turn, err)
		}
		if cardsInPlay(g) != DeckSize {
			t.Fatalf("turn %d after draw: cards in play = %d", turn, cardsInPlay(g))
		}
		if err := g.Apply(cur, Action{Type: ActionReplace, SlotIndex: turn % g.Rules.HandSize}); err != nil {
			t.Fatalf("turn %d replace: %v", turn, err)
		}
		if cardsInPlay(g) != DeckSize {
			t.Fatalf("turn %d after replace: cards in play = %d", turn, cardsInPlay(g))
		}
	}
}

// TestAbandonIsTerminal verifies an abandoned game rejects further actions.
func TestAbandonIsTerminal(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	g.Abandon()
	if g.Status != StatusAbandoned {
		t.Fatalf("status = %s, want ABANDONED", g.Status)
	}
	err := g.Apply(userIDs[0], Action{Type: ActionPlayerReady})
	if err == nil {
		t.Fatal("action on abandoned game succeeded")
	}
}

// TestPauseBlocksActions verifies a paused game rejects actions and
// resumes cleanly.
func TestPauseBlocksActions(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	g.Pause()
	if err := g.Apply(userIDs[0], Action{Type: ActionPlayerReady}); err == nil {
		t.Fatal("action on paused game succeeded")
	}
	g.Resume()
	if err := g.Apply(userIDs[0], Action{Type: ActionPlayerReady}); err != nil {
		t.Fatalf("action after resume: %v", err)
	}
}

// TestCloneIsDetached verifies a clone keeps its own piles and hands
// while the live game keeps mutating.
func TestCloneIsDetached(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	snap := g.Clone()
	wantDeck := len(snap.Deck)
	slot0 := snap.Players[0].Hand[0].Card.ID

	if err := g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if err := g.Apply(userIDs[0], Action{Type: ActionReplace, SlotIndex: 0}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if len(snap.Deck) != wantDeck {
		t.Errorf("clone deck length changed to %d, want %d", len(snap.Deck), wantDeck)
	}
	if snap.Players[0].Hand[0].Card.ID != slot0 {
		t.Error("clone hand slot changed under a live replace")
	}
	if g.Players[0].Hand[0].Card.ID == slot0 {
		t.Error("live replace did not change the hand slot")
	}
}
