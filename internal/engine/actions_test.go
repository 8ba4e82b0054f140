package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// rigTopDeckValue moves a deck card with the given value to the top so the
// next draw is known. The deck multiset is unchanged.
func rigTopDeckValue(t *testing.T, g *Game, value int) Card {
	t.Helper()
	top := len(g.Deck) - 1
	for i := top; i >= 0; i-- {
		if g.Deck[i].Value == value {
			g.Deck[i], g.Deck[top] = g.Deck[top], g.Deck[i]
			return g.Deck[top]
		}
	}
	t.Fatalf("no card with value %d left in deck", value)
	return Card{}
}

// stateSig serializes the game for before/after comparison in atomicity
// tests. LastAction is excluded by its json tag.
func stateSig(t *testing.T, g *Game) string {
	t.Helper()
	b, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal game: %v", err)
	}
	return string(b)
}

// TestSetupReadyFlow verifies SETUP collects every player's peek before
// entering READY, and READY waits for every acknowledgement.
func TestSetupReadyFlow(t *testing.T) {
	g, userIDs := newTestGame(t, 3)

	if err := g.Apply(userIDs[0], Action{Type: ActionPlayerReady}); err != nil {
		t.Fatalf("first ready: %v", err)
	}
	if g.Phase.Type != PhaseSetup {
		t.Fatalf("phase = %s after one ready, want SETUP", g.Phase.Type)
	}
	if err := g.Apply(userIDs[0], Action{Type: ActionPlayerReady}); err == nil {
		t.Fatal("double ready during SETUP succeeded")
	}

	g.Apply(userIDs[1], Action{Type: ActionPlayerReady})
	g.Apply(userIDs[2], Action{Type: ActionPlayerReady})
	if g.Phase.Type != PhaseReady {
		t.Fatalf("phase = %s after all readies, want READY", g.Phase.Type)
	}
	if g.Phase.ReadyAt.IsZero() {
		t.Error("ReadyAt not recorded")
	}

	// All players acknowledging skips the remaining delay.
	for _, uid := range userIDs {
		if err := g.Apply(uid, Action{Type: ActionPlayerReady}); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
	if g.Phase.Type != PhaseActionChoice {
		t.Fatalf("phase = %s after all acks, want ACTION_CHOICE", g.Phase.Type)
	}
	if g.Phase.PlayerID != g.PlayerIDs[0] {
		t.Error("round did not begin with seat 0")
	}
}

// TestReadyTimerGuard verifies timer_elapsed is rejected before the ready
// delay has passed.
func TestReadyTimerGuard(t *testing.T) {
	userIDs := []uuid.UUID{uuid.New(), uuid.New()}
	rules := DefaultRules() // real 5s ready delay
	g, err := NewGame(3, userIDs, rules)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	for _, uid := range userIDs {
		g.Apply(uid, Action{Type: ActionPlayerReady})
	}
	if g.Phase.Type != PhaseReady {
		t.Fatalf("phase = %s, want READY", g.Phase.Type)
	}
	if err := g.Apply(uuid.Nil, Action{Type: ActionTimerElapsed}); err == nil {
		t.Fatal("timer_elapsed before delay succeeded")
	}

	// Rig the ready timestamp into the past; the guard should now pass.
	g.Phase.ReadyAt = g.Phase.ReadyAt.Add(-rules.ReadyDelay)
	if err := g.Apply(uuid.Nil, Action{Type: ActionTimerElapsed}); err != nil {
		t.Fatalf("timer_elapsed after delay: %v", err)
	}
	if g.Phase.Type != PhaseActionChoice {
		t.Fatalf("phase = %s, want ACTION_CHOICE", g.Phase.Type)
	}
}

// TestDrawDiscardPeekFlow runs the draw-a-7 scenario: deck draw, discard
// with skill, peek own slot 1, then the next player's turn. The discard
// top must be the discarded 7 and the peek reveal is private to the actor.
func TestDrawDiscardPeekFlow(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	seven := rigTopDeckValue(t, g, 7)
	actor := g.CurrentPlayer().ID

	if err := g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if g.Phase.Type != PhaseDraw || g.Phase.DrawnFrom != DrawFromDeck {
		t.Fatalf("phase = %+v, want DRAW from deck", g.Phase)
	}
	if g.Phase.Drawn.ID != seven.ID {
		t.Fatal("drawn card is not the rigged seven")
	}
	if g.LastAction.RevealedTo != actor {
		t.Error("deck draw not revealed privately to the actor")
	}

	if err := g.Apply(userIDs[0], Action{Type: ActionDiscard}); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if g.Phase.Type != PhaseDiscard || !g.Phase.CanUseSkill || g.Phase.Skill != SkillPeek {
		t.Fatalf("phase = %+v, want DISCARD with peek skill", g.Phase)
	}
	if top := g.DiscardTop(); top == nil || top.ID != seven.ID {
		t.Fatal("discard top is not the discarded seven")
	}

	if err := g.Apply(userIDs[0], Action{Type: ActionUseSkill}); err != nil {
		t.Fatalf("use skill: %v", err)
	}
	if g.Phase.Type != PhasePeek {
		t.Fatalf("phase = %s, want PEEK", g.Phase.Type)
	}

	want := g.Players[0].Hand[1].Card
	if err := g.Apply(userIDs[0], Action{Type: ActionChoosePeekTarget, SlotIndex: 1}); err != nil {
		t.Fatalf("peek target: %v", err)
	}
	if g.LastAction.Revealed == nil || g.LastAction.Revealed.ID != want.ID {
		t.Error("peek did not reveal the chosen slot")
	}
	if g.LastAction.RevealedTo != actor {
		t.Error("peek reveal not addressed to the actor")
	}
	if g.Players[0].Hand[1].FaceUp {
		t.Error("peeked slot flipped face-up")
	}
	if g.Phase.Type != PhaseActionChoice || g.Phase.PlayerID != g.PlayerIDs[1] {
		t.Fatalf("phase = %+v, want next player's ACTION_CHOICE", g.Phase)
	}
}

// TestDiscardWithoutSkillAdvancesImmediately verifies a non-skill discard
// skips the DISCARD decision entirely.
func TestDiscardWithoutSkillAdvancesImmediately(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	rigTopDeckValue(t, g, 2)
	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	if err := g.Apply(userIDs[0], Action{Type: ActionDiscard}); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if g.Phase.Type != PhaseActionChoice || g.Phase.PlayerID != g.PlayerIDs[1] {
		t.Fatalf("phase = %+v, want next player's ACTION_CHOICE", g.Phase)
	}
}

// TestReplaceKeepsHandSize verifies replace-in-place: drawn card enters
// the slot face-down, displaced card tops the discard pile, hand length
// is unchanged, and no skill triggers even for a skill-valued card.
func TestReplaceKeepsHandSize(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	king := rigTopDeckValue(t, g, 13)
	old := g.Players[0].Hand[2].Card

	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	if err := g.Apply(userIDs[0], Action{Type: ActionReplace, SlotIndex: 2}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(g.Players[0].Hand) != g.Rules.HandSize {
		t.Errorf("hand size = %d, want %d", len(g.Players[0].Hand), g.Rules.HandSize)
	}
	if g.Players[0].Hand[2].Card.ID != king.ID {
		t.Error("drawn card did not enter the slot")
	}
	if g.Players[0].Hand[2].FaceUp {
		t.Error("replaced slot flipped face-up")
	}
	if top := g.DiscardTop(); top == nil || top.ID != old.ID {
		t.Error("displaced card is not the discard top")
	}
	if g.Phase.Type != PhaseActionChoice || g.Phase.PlayerID != g.PlayerIDs[1] {
		t.Fatal("replace of a skill card must not open a skill decision")
	}
}

// TestDiscardDrawMustReplace verifies a card taken from the discard pile
// cannot be re-discarded.
func TestDiscardDrawMustReplace(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	// Seed the discard pile with player 0's non-skill discard.
	rigTopDeckValue(t, g, 3)
	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	g.Apply(userIDs[0], Action{Type: ActionDiscard})

	if err := g.Apply(userIDs[1], Action{Type: ActionDrawFromDiscard}); err != nil {
		t.Fatalf("draw from discard: %v", err)
	}
	if g.Phase.DrawnFrom != DrawFromDiscard {
		t.Fatalf("DrawnFrom = %s, want discard", g.Phase.DrawnFrom)
	}
	if err := g.Apply(userIDs[1], Action{Type: ActionDiscard}); err == nil {
		t.Fatal("re-discard of a discard-drawn card succeeded")
	}
	if err := g.Apply(userIDs[1], Action{Type: ActionReplace, SlotIndex: 0}); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

// TestIllegalActionLeavesStateUnchanged verifies atomicity: a rejected
// transition changes no serialized field of the game.
func TestIllegalActionLeavesStateUnchanged(t *testing.T) {
	g, userIDs := newTestGame(t, 3)
	advanceToPlay(t, g, userIDs)

	before := stateSig(t, g)
	illegal := []struct {
		actor uuid.UUID
		a     Action
	}{
		{userIDs[1], Action{Type: ActionDrawFromDeck}},                 // not their turn
		{userIDs[0], Action{Type: ActionDiscard}},                      // nothing drawn
		{userIDs[0], Action{Type: ActionDrawFromDiscard}},              // discard empty
		{userIDs[0], Action{Type: ActionUseSkill}},                     // no skill pending
		{userIDs[0], Action{Type: ActionPlayerReady}},                  // wrong phase
		{uuid.New(), Action{Type: ActionDrawFromDeck}},                 // not seated
		{userIDs[0], Action{Type: ActionChoosePeekTarget, SlotIndex: 1}}, // no peek pending
	}
	for _, tc := range illegal {
		err := g.Apply(tc.actor, tc.a)
		if err == nil {
			t.Fatalf("action %s unexpectedly legal", tc.a.Type)
		}
		var illErr *IllegalActionError
		if !errors.As(err, &illErr) {
			t.Fatalf("action %s error type = %T, want *IllegalActionError", tc.a.Type, err)
		}
		if after := stateSig(t, g); after != before {
			t.Fatalf("action %s mutated state despite error", tc.a.Type)
		}
	}
}

// TestTurnOrderWraps verifies turns pass seat by seat and wrap to seat 0.
func TestTurnOrderWraps(t *testing.T) {
	g, userIDs := newTestGame(t, 3)
	advanceToPlay(t, g, userIDs)

	for turn := 0; turn < 6; turn++ {
		wantIdx := turn % 3
		if g.CurrentPlayerIndex != wantIdx {
			t.Fatalf("turn %d: current = %d, want %d", turn, g.CurrentPlayerIndex, wantIdx)
		}
		uid := userIDs[wantIdx]
		if err := g.Apply(uid, Action{Type: ActionDrawFromDeck}); err != nil {
			t.Fatalf("turn %d draw: %v", turn, err)
		}
		if err := g.Apply(uid, Action{Type: ActionReplace, SlotIndex: 0}); err != nil {
			t.Fatalf("turn %d replace: %v", turn, err)
		}
	}
}

// TestCaboFinalLap runs the 4-player closure scenario: player 0 calls
// Cabo, players 1, 2, and 3 each take exactly one more turn, and the
// round ends on player 3's completion, not before.
func TestCaboFinalLap(t *testing.T) {
	g, userIDs := newTestGame(t, 4)
	advanceToPlay(t, g, userIDs)

	if err := g.Apply(userIDs[0], Action{Type: ActionCallCabo}); err != nil {
		t.Fatalf("call cabo: %v", err)
	}
	if g.CaboCallerID != g.Players[0].ID {
		t.Fatal("cabo caller not recorded")
	}

	for _, seat := range []int{1, 2, 3} {
		if g.Round != 0 {
			t.Fatalf("round ended before seat %d acted", seat)
		}
		if g.CurrentPlayerIndex != seat {
			t.Fatalf("current = %d, want %d", g.CurrentPlayerIndex, seat)
		}
		uid := userIDs[seat]
		if err := g.Apply(uid, Action{Type: ActionDrawFromDeck}); err != nil {
			t.Fatalf("seat %d draw: %v", seat, err)
		}
		if err := g.Apply(uid, Action{Type: ActionReplace, SlotIndex: 0}); err != nil {
			t.Fatalf("seat %d replace: %v", seat, err)
		}
	}

	if g.Round != 1 {
		t.Fatalf("round = %d after final lap, want 1", g.Round)
	}
	if len(g.Scores) != 1 {
		t.Fatalf("len(scores) = %d, want 1", len(g.Scores))
	}
	if !g.IsGameOver() && g.Phase.Type != PhaseSetup {
		t.Fatalf("phase = %s after round end, want SETUP", g.Phase.Type)
	}
}

// TestCaboOncePerGame verifies the caller cannot call again in a later
// round and nobody can call while a call is active.
func TestCaboOncePerGame(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	if err := g.Apply(userIDs[0], Action{Type: ActionCallCabo}); err != nil {
		t.Fatalf("call cabo: %v", err)
	}
	// Active call blocks the other player.
	if err := g.Apply(userIDs[1], Action{Type: ActionCallCabo}); err == nil {
		t.Fatal("second call during active call succeeded")
	}

	// Finish the lap; next round deals.
	g.Apply(userIDs[1], Action{Type: ActionDrawFromDeck})
	g.Apply(userIDs[1], Action{Type: ActionReplace, SlotIndex: 0})
	if g.IsGameOver() {
		t.Skip("game ended on threshold; caller re-call not reachable")
	}
	advanceToPlay(t, g, userIDs)

	if err := g.Apply(userIDs[0], Action{Type: ActionCallCabo}); err == nil {
		t.Fatal("caller called cabo twice in one game")
	}
	if err := g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck}); err != nil {
		t.Fatalf("caller's normal turn after rejected call: %v", err)
	}
}

// TestReshuffleOnEmptyDeck verifies an empty deck draw rebuilds the deck
// from the discard pile minus its top card, which stays behind.
func TestReshuffleOnEmptyDeck(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	// Move the whole deck onto the discard pile.
	g.DiscardPile = append(g.DiscardPile, g.Deck...)
	g.Deck = nil
	top := *g.DiscardTop()
	discardLen := len(g.DiscardPile)

	if err := g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck}); err != nil {
		t.Fatalf("draw with empty deck: %v", err)
	}
	if !g.LastAction.Reshuffled {
		t.Error("reshuffle not recorded")
	}
	if len(g.DiscardPile) != 1 || g.DiscardPile[0].ID != top.ID {
		t.Fatal("discard pile does not hold exactly its former top card")
	}
	if len(g.Deck) != discardLen-2 {
		t.Errorf("len(deck) = %d, want %d", len(g.Deck), discardLen-2)
	}
	if cardsInPlay(g) != DeckSize {
		t.Errorf("cards in play = %d, want %d", cardsInPlay(g), DeckSize)
	}
}

// TestEmptyDeckUnrecoverable verifies the fatal sentinel when both piles
// are exhausted, a state conservation makes unreachable in real play.
func TestEmptyDeckUnrecoverable(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	g.Deck = nil
	g.DiscardPile = nil
	err := g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	if !errors.Is(err, ErrEmptyDeckUnrecoverable) {
		t.Fatalf("err = %v, want ErrEmptyDeckUnrecoverable", err)
	}
}

// TestSpyTargetMustBeOther verifies the spy skill rejects self-targeting
// and out-of-game targets, then reveals the chosen card privately.
func TestSpyTargetMustBeOther(t *testing.T) {
	g, userIDs := newTestGame(t, 3)
	advanceToPlay(t, g, userIDs)

	rigTopDeckValue(t, g, 9)
	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	g.Apply(userIDs[0], Action{Type: ActionDiscard})
	if err := g.Apply(userIDs[0], Action{Type: ActionUseSkill}); err != nil {
		t.Fatalf("use skill: %v", err)
	}
	if g.Phase.Type != PhaseSpy {
		t.Fatalf("phase = %s, want SPY", g.Phase.Type)
	}

	self := g.Players[0].ID
	if err := g.Apply(userIDs[0], Action{Type: ActionChooseSpyTarget, TargetPlayerID: self, TargetSlotIndex: 0}); err == nil {
		t.Fatal("self-spy succeeded")
	}
	if err := g.Apply(userIDs[0], Action{Type: ActionChooseSpyTarget, TargetPlayerID: uuid.New(), TargetSlotIndex: 0}); err == nil {
		t.Fatal("spy on unseated player succeeded")
	}

	want := g.Players[2].Hand[3].Card
	err := g.Apply(userIDs[0], Action{Type: ActionChooseSpyTarget, TargetPlayerID: g.Players[2].ID, TargetSlotIndex: 3})
	if err != nil {
		t.Fatalf("spy: %v", err)
	}
	if g.LastAction.Revealed == nil || g.LastAction.Revealed.ID != want.ID {
		t.Error("spy did not reveal the chosen card")
	}
	if g.LastAction.RevealedTo != g.Players[0].ID {
		t.Error("spy reveal not addressed to the actor")
	}
}

// TestBlindSwapExchangesSlots verifies the J/Q swap moves both cards
// face-down without revealing either.
func TestBlindSwapExchangesSlots(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	rigTopDeckValue(t, g, 11)
	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	g.Apply(userIDs[0], Action{Type: ActionDiscard})
	g.Apply(userIDs[0], Action{Type: ActionUseSkill})
	if g.Phase.Type != PhaseSwap || g.Phase.Skill != SkillSwap {
		t.Fatalf("phase = %+v, want blind SWAP", g.Phase)
	}

	own := g.Players[0].Hand[1].Card
	other := g.Players[1].Hand[2].Card
	err := g.Apply(userIDs[0], Action{
		Type:            ActionChooseSwapTargets,
		SlotIndex:       1,
		TargetPlayerID:  g.Players[1].ID,
		TargetSlotIndex: 2,
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if g.Players[0].Hand[1].Card.ID != other.ID || g.Players[1].Hand[2].Card.ID != own.ID {
		t.Error("cards were not exchanged")
	}
	if g.LastAction.Revealed != nil {
		t.Error("blind swap revealed a card")
	}
	if g.Phase.Type != PhaseActionChoice {
		t.Fatalf("phase = %s, want ACTION_CHOICE", g.Phase.Type)
	}
}

// TestKingLookThenSwap verifies the king variant: targets chosen, both
// cards privately revealed, then the confirm decision performs or skips
// the exchange.
func TestKingLookThenSwap(t *testing.T) {
	for _, perform := range []bool{true, false} {
		g, userIDs := newTestGame(t, 2)
		advanceToPlay(t, g, userIDs)

		rigTopDeckValue(t, g, 13)
		g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
		g.Apply(userIDs[0], Action{Type: ActionDiscard})
		g.Apply(userIDs[0], Action{Type: ActionUseSkill})
		if g.Phase.Type != PhaseSwap || g.Phase.Skill != SkillKing {
			t.Fatalf("phase = %+v, want king SWAP", g.Phase)
		}

		own := g.Players[0].Hand[0].Card
		other := g.Players[1].Hand[3].Card
		err := g.Apply(userIDs[0], Action{
			Type:            ActionChooseSwapTargets,
			SlotIndex:       0,
			TargetPlayerID:  g.Players[1].ID,
			TargetSlotIndex: 3,
		})
		if err != nil {
			t.Fatalf("king look: %v", err)
		}
		if !g.Phase.AwaitingConfirm {
			t.Fatal("king look did not await confirmation")
		}
		if g.LastAction.Revealed == nil || g.LastAction.Revealed.ID != own.ID ||
			g.LastAction.Revealed2 == nil || g.LastAction.Revealed2.ID != other.ID {
			t.Fatal("king look did not reveal both cards")
		}
		if g.Players[0].Hand[0].Card.ID != own.ID {
			t.Fatal("king look moved cards before the decision")
		}

		if err := g.Apply(userIDs[0], Action{Type: ActionConfirmSwap, Perform: perform}); err != nil {
			t.Fatalf("confirm swap: %v", err)
		}
		swapped := g.Players[0].Hand[0].Card.ID == other.ID
		if swapped != perform {
			t.Errorf("perform=%v but swapped=%v", perform, swapped)
		}
		if g.Phase.Type != PhaseActionChoice {
			t.Fatalf("phase = %s, want ACTION_CHOICE", g.Phase.Type)
		}
	}
}

// TestPassSkillAdvances verifies declining the skill simply advances the
// turn, and that the system actor (nil uuid) may fire it for timeouts.
func TestPassSkillAdvances(t *testing.T) {
	g, userIDs := newTestGame(t, 2)
	advanceToPlay(t, g, userIDs)

	rigTopDeckValue(t, g, 8)
	g.Apply(userIDs[0], Action{Type: ActionDrawFromDeck})
	g.Apply(userIDs[0], Action{Type: ActionDiscard})
	if err := g.Apply(uuid.Nil, Action{Type: ActionPassSkill}); err != nil {
		t.Fatalf("pass skill as system actor: %v", err)
	}
	if g.Phase.Type != PhaseActionChoice || g.Phase.PlayerID != g.PlayerIDs[1] {
		t.Fatalf("phase = %+v, want next player's ACTION_CHOICE", g.Phase)
	}
}
