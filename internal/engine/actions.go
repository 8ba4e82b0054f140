package engine

import (
	"time"

	"github.com/google/uuid"
)

// ActionType names a player intent fed into the phase machine.
type ActionType string

const (
	ActionPlayerReady       ActionType = "player_ready"
	ActionTimerElapsed      ActionType = "timer_elapsed"
	ActionDrawFromDeck      ActionType = "draw_from_deck"
	ActionDrawFromDiscard   ActionType = "draw_from_discard"
	ActionCallCabo          ActionType = "call_cabo"
	ActionDiscard           ActionType = "discard"
	ActionReplace           ActionType = "replace"
	ActionUseSkill          ActionType = "use_skill"
	ActionPassSkill         ActionType = "pass_skill"
	ActionChoosePeekTarget  ActionType = "choose_peek_target"
	ActionChooseSpyTarget   ActionType = "choose_spy_target"
	ActionChooseSwapTargets ActionType = "choose_swap_targets"
	ActionConfirmSwap       ActionType = "confirm_swap"
)

// Action carries one intent and its targets. Unused fields are ignored by
// actions that do not need them.
type Action struct {
	Type            ActionType `json:"type"`
	SlotIndex       int        `json:"slotIndex,omitempty"`       // own-hand slot
	TargetPlayerID  uuid.UUID  `json:"targetPlayerId,omitempty"`  // spy and swap target
	TargetSlotIndex int        `json:"targetSlotIndex,omitempty"` // target-hand slot
	Perform         bool       `json:"perform,omitempty"`         // king swap decision
}

// Apply validates the action against the current phase and actor, then
// mutates the game. Guard-first discipline: every validation completes
// before the first mutation, so a returned error means the game is
// unchanged. This is the single mutation entry point.
//
// actorUserID is the external account of the acting player. Timer-driven
// actions (timer_elapsed, pass_skill fired by a timeout) may pass uuid.Nil.
func (g *Game) Apply(actorUserID uuid.UUID, a Action) error {
	if g.IsTerminal() {
		return g.illegal(a, actorUserID, "game is over")
	}
	if g.Status == StatusPaused {
		return g.illegal(a, actorUserID, "game is paused")
	}

	actorIdx := g.PlayerByUserID(actorUserID)
	systemActor := a.Type == ActionTimerElapsed || a.Type == ActionPassSkill
	if actorIdx < 0 && !(systemActor && actorUserID == uuid.Nil) {
		return g.illegal(a, actorUserID, "actor is not seated at this game")
	}

	var err error
	switch a.Type {
	case ActionPlayerReady:
		err = g.playerReady(a, actorIdx)
	case ActionTimerElapsed:
		err = g.timerElapsed(a, actorUserID)
	case ActionDrawFromDeck:
		err = g.drawDeck(a, actorIdx)
	case ActionDrawFromDiscard:
		err = g.drawDiscard(a, actorIdx)
	case ActionCallCabo:
		err = g.callCabo(a, actorIdx)
	case ActionDiscard:
		err = g.discardDrawn(a, actorIdx)
	case ActionReplace:
		err = g.replaceSlot(a, actorIdx)
	case ActionUseSkill:
		err = g.useSkill(a, actorIdx)
	case ActionPassSkill:
		err = g.passSkill(a, actorIdx)
	case ActionChoosePeekTarget:
		err = g.choosePeekTarget(a, actorIdx)
	case ActionChooseSpyTarget:
		err = g.chooseSpyTarget(a, actorIdx)
	case ActionChooseSwapTargets:
		err = g.chooseSwapTargets(a, actorIdx)
	case ActionConfirmSwap:
		err = g.confirmSwap(a, actorIdx)
	default:
		err = g.illegal(a, actorUserID, "unknown action type")
	}
	if err != nil {
		return err
	}
	g.UpdatedAt = time.Now()
	return nil
}

// requireTurn checks the actor holds the pending decision for the phase.
func (g *Game) requireTurn(a Action, actorIdx int) error {
	if actorIdx < 0 || g.Players[actorIdx].ID != g.Phase.PlayerID {
		return g.illegal(a, g.actorID(actorIdx), "not your turn")
	}
	return nil
}

func (g *Game) actorID(actorIdx int) uuid.UUID {
	if actorIdx < 0 {
		return uuid.Nil
	}
	return g.Players[actorIdx].UserID
}

// playerReady marks the setup peek complete during SETUP, and acknowledges
// the round start during READY. The last ready of each phase moves the
// machine forward.
func (g *Game) playerReady(a Action, actorIdx int) error {
	switch g.Phase.Type {
	case PhaseSetup:
		if g.Players[actorIdx].PeekedAtSetup {
			return g.illegal(a, g.actorID(actorIdx), "already ready")
		}
		g.Players[actorIdx].PeekedAtSetup = true
		g.LastAction = LastAction{Type: a.Type, Actor: g.Players[actorIdx].ID}
		if g.allPeeked() {
			g.Phase = Phase{Type: PhaseReady, ReadyAt: time.Now()}
		}
		return nil
	case PhaseReady:
		if g.ReadyAcks[actorIdx] {
			return g.illegal(a, g.actorID(actorIdx), "already acknowledged")
		}
		g.ReadyAcks[actorIdx] = true
		g.LastAction = LastAction{Type: a.Type, Actor: g.Players[actorIdx].ID}
		if g.allAcked() {
			g.beginPlay()
		}
		return nil
	default:
		return g.illegal(a, g.actorID(actorIdx), "not in setup or ready phase")
	}
}

func (g *Game) allPeeked() bool {
	for i := range g.Players {
		if !g.Players[i].PeekedAtSetup {
			return false
		}
	}
	return true
}

func (g *Game) allAcked() bool {
	for _, ok := range g.ReadyAcks {
		if !ok {
			return false
		}
	}
	return true
}

// timerElapsed starts the first turn once the ready delay has passed. A
// stale or early firing is rejected and changes nothing.
func (g *Game) timerElapsed(a Action, actor uuid.UUID) error {
	if g.Phase.Type != PhaseReady {
		return g.illegal(a, actor, "no timer pending in this phase")
	}
	if time.Since(g.Phase.ReadyAt) < g.Rules.ReadyDelay {
		return g.illegal(a, actor, "ready delay has not elapsed")
	}
	g.LastAction = LastAction{Type: a.Type}
	g.beginPlay()
	return nil
}

// beginPlay opens the round's first ACTION_CHOICE for seat 0.
func (g *Game) beginPlay() {
	g.CurrentPlayerIndex = 0
	g.Phase = Phase{Type: PhaseActionChoice, PlayerID: g.PlayerIDs[0]}
}

// drawDeck draws the top deck card face-down for the actor, reshuffling
// the discard pile under the top card back into the deck if needed.
func (g *Game) drawDeck(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseActionChoice {
		return g.illegal(a, g.actorID(actorIdx), "cannot draw in this phase")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	if len(g.Deck) == 0 && len(g.DiscardPile) <= 1 {
		return ErrEmptyDeckUnrecoverable
	}

	card, reshuffled, err := g.drawFromDeckPile()
	if err != nil {
		return err
	}
	actor := &g.Players[actorIdx]
	g.LastAction = LastAction{
		Type:       a.Type,
		Actor:      actor.ID,
		Revealed:   &card,
		RevealedTo: actor.ID,
		Reshuffled: reshuffled,
	}
	g.Phase = Phase{Type: PhaseDraw, PlayerID: actor.ID, Drawn: &card, DrawnFrom: DrawFromDeck}
	return nil
}

// drawDiscard takes the top discard card into the actor's held slot. The
// card is public knowledge and may only re-enter play via replace.
func (g *Game) drawDiscard(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseActionChoice {
		return g.illegal(a, g.actorID(actorIdx), "cannot draw in this phase")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	if len(g.DiscardPile) == 0 {
		return g.illegal(a, g.actorID(actorIdx), "discard pile is empty")
	}

	card := g.DiscardPile[len(g.DiscardPile)-1]
	g.DiscardPile = g.DiscardPile[:len(g.DiscardPile)-1]
	actor := &g.Players[actorIdx]
	g.LastAction = LastAction{Type: a.Type, Actor: actor.ID, Card: &card}
	g.Phase = Phase{Type: PhaseDraw, PlayerID: actor.ID, Drawn: &card, DrawnFrom: DrawFromDiscard}
	return nil
}

// callCabo declares the end of the round: every other player gets exactly
// one more turn. A player may call Cabo once per game.
func (g *Game) callCabo(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseActionChoice {
		return g.illegal(a, g.actorID(actorIdx), "cannot call cabo in this phase")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	if g.Players[actorIdx].CalledCabo {
		return g.illegal(a, g.actorID(actorIdx), "already called cabo this game")
	}
	if g.CaboCallerID != uuid.Nil {
		return g.illegal(a, g.actorID(actorIdx), "cabo already called this round")
	}

	actor := &g.Players[actorIdx]
	actor.CalledCabo = true
	g.CaboCallerID = actor.ID
	g.LastAction = LastAction{Type: a.Type, Actor: actor.ID}
	g.completeTurn()
	return nil
}

// discardDrawn places the held card on the discard pile. A deck-drawn card
// whose value triggers a skill opens the skill decision; anything else
// advances the turn immediately. A discard-drawn card may not be
// re-discarded.
func (g *Game) discardDrawn(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseDraw {
		return g.illegal(a, g.actorID(actorIdx), "no drawn card to discard")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	if g.Phase.DrawnFrom == DrawFromDiscard {
		return g.illegal(a, g.actorID(actorIdx), "a card taken from the discard pile must replace a hand card")
	}

	drawn := *g.Phase.Drawn
	g.DiscardPile = append(g.DiscardPile, drawn)
	actor := &g.Players[actorIdx]
	g.LastAction = LastAction{Type: a.Type, Actor: actor.ID, Card: &drawn}

	if skill := drawn.Skill(); skill != SkillNone {
		g.Phase = Phase{Type: PhaseDiscard, PlayerID: actor.ID, CanUseSkill: true, Skill: skill}
		return nil
	}
	g.completeTurn()
	return nil
}

// replaceSlot swaps the held card into the actor's hand face-down; the
// displaced card goes to the discard pile. Replacing never triggers a
// skill, and hand length never changes.
func (g *Game) replaceSlot(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseDraw {
		return g.illegal(a, g.actorID(actorIdx), "no drawn card to place")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	actor := &g.Players[actorIdx]
	if a.SlotIndex < 0 || a.SlotIndex >= len(actor.Hand) {
		return g.illegal(a, g.actorID(actorIdx), "slot index out of range")
	}

	drawn := *g.Phase.Drawn
	old := actor.Hand[a.SlotIndex].Card
	actor.Hand[a.SlotIndex] = HandCard{Card: drawn}
	g.DiscardPile = append(g.DiscardPile, old)
	g.LastAction = LastAction{Type: a.Type, Actor: actor.ID, Card: &old, SlotIndex: a.SlotIndex}
	g.completeTurn()
	return nil
}

// useSkill enters the sub-phase for the skill unlocked by the discard.
func (g *Game) useSkill(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseDiscard || !g.Phase.CanUseSkill {
		return g.illegal(a, g.actorID(actorIdx), "no skill available")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}

	actor := &g.Players[actorIdx]
	skill := g.Phase.Skill
	g.LastAction = LastAction{Type: a.Type, Actor: actor.ID}
	switch skill {
	case SkillPeek:
		g.Phase = Phase{Type: PhasePeek, PlayerID: actor.ID, Skill: skill}
	case SkillSpy:
		g.Phase = Phase{Type: PhaseSpy, PlayerID: actor.ID, Skill: skill}
	case SkillSwap, SkillKing:
		g.Phase = Phase{Type: PhaseSwap, PlayerID: actor.ID, Skill: skill}
	}
	return nil
}

// passSkill declines the skill and advances the turn. Legal both before
// committing to the skill (DISCARD with a skill available) and mid target
// selection, so a slow player forfeits instead of stalling the table. The
// session's skill timeout fires this with a nil actor.
func (g *Game) passSkill(a Action, actorIdx int) error {
	switch g.Phase.Type {
	case PhaseDiscard:
		if !g.Phase.CanUseSkill {
			return g.illegal(a, g.actorID(actorIdx), "no skill to pass")
		}
	case PhasePeek, PhaseSpy, PhaseSwap:
		// Forfeit the pending selection. A king swap awaiting confirm
		// times out as "do not swap".
	default:
		return g.illegal(a, g.actorID(actorIdx), "no skill to pass")
	}
	if actorIdx >= 0 && g.Players[actorIdx].ID != g.Phase.PlayerID {
		return g.illegal(a, g.actorID(actorIdx), "not your turn")
	}
	g.LastAction = LastAction{Type: a.Type, Actor: g.Phase.PlayerID}
	g.completeTurn()
	return nil
}

// choosePeekTarget privately reveals one of the actor's own cards. The
// reveal is recorded in LastAction for delivery to the actor only; the
// hand slot stays face-down.
func (g *Game) choosePeekTarget(a Action, actorIdx int) error {
	if g.Phase.Type != PhasePeek {
		return g.illegal(a, g.actorID(actorIdx), "no peek pending")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	actor := &g.Players[actorIdx]
	if a.SlotIndex < 0 || a.SlotIndex >= len(actor.Hand) {
		return g.illegal(a, g.actorID(actorIdx), "slot index out of range")
	}

	card := actor.Hand[a.SlotIndex].Card
	g.LastAction = LastAction{
		Type:       a.Type,
		Actor:      actor.ID,
		Revealed:   &card,
		RevealedTo: actor.ID,
		SlotIndex:  a.SlotIndex,
	}
	g.completeTurn()
	return nil
}

// chooseSpyTarget privately reveals one card of another player's hand to
// the actor.
func (g *Game) chooseSpyTarget(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseSpy {
		return g.illegal(a, g.actorID(actorIdx), "no spy pending")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	actor := &g.Players[actorIdx]
	targetIdx := g.playerByID(a.TargetPlayerID)
	if targetIdx < 0 {
		return g.illegal(a, g.actorID(actorIdx), "target player not in game")
	}
	if targetIdx == actorIdx {
		return g.illegal(a, g.actorID(actorIdx), "cannot spy on yourself")
	}
	target := &g.Players[targetIdx]
	if a.TargetSlotIndex < 0 || a.TargetSlotIndex >= len(target.Hand) {
		return g.illegal(a, g.actorID(actorIdx), "target slot index out of range")
	}

	card := target.Hand[a.TargetSlotIndex].Card
	g.LastAction = LastAction{
		Type:       a.Type,
		Actor:      actor.ID,
		Revealed:   &card,
		RevealedTo: actor.ID,
		TargetID:   target.ID,
		TargetSlot: a.TargetSlotIndex,
	}
	g.completeTurn()
	return nil
}

// chooseSwapTargets exchanges one of the actor's cards with another
// player's, face-down. With the king skill nothing moves yet: both cards
// are privately revealed to the actor and the machine waits for
// confirm_swap.
func (g *Game) chooseSwapTargets(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseSwap || g.Phase.AwaitingConfirm {
		return g.illegal(a, g.actorID(actorIdx), "no swap pending")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	actor := &g.Players[actorIdx]
	if a.SlotIndex < 0 || a.SlotIndex >= len(actor.Hand) {
		return g.illegal(a, g.actorID(actorIdx), "slot index out of range")
	}
	targetIdx := g.playerByID(a.TargetPlayerID)
	if targetIdx < 0 {
		return g.illegal(a, g.actorID(actorIdx), "target player not in game")
	}
	if targetIdx == actorIdx {
		return g.illegal(a, g.actorID(actorIdx), "cannot swap with yourself")
	}
	target := &g.Players[targetIdx]
	if a.TargetSlotIndex < 0 || a.TargetSlotIndex >= len(target.Hand) {
		return g.illegal(a, g.actorID(actorIdx), "target slot index out of range")
	}

	if g.Phase.Skill == SkillKing {
		own := actor.Hand[a.SlotIndex].Card
		other := target.Hand[a.TargetSlotIndex].Card
		g.LastAction = LastAction{
			Type:       a.Type,
			Actor:      actor.ID,
			Revealed:   &own,
			Revealed2:  &other,
			RevealedTo: actor.ID,
			SlotIndex:  a.SlotIndex,
			TargetID:   target.ID,
			TargetSlot: a.TargetSlotIndex,
		}
		g.Phase.AwaitingConfirm = true
		g.Phase.SwapOwnSlot = a.SlotIndex
		g.Phase.SwapOtherID = target.ID
		g.Phase.SwapOtherSlot = a.TargetSlotIndex
		return nil
	}

	actor.Hand[a.SlotIndex], target.Hand[a.TargetSlotIndex] =
		target.Hand[a.TargetSlotIndex], actor.Hand[a.SlotIndex]
	g.LastAction = LastAction{
		Type:       a.Type,
		Actor:      actor.ID,
		SlotIndex:  a.SlotIndex,
		TargetID:   target.ID,
		TargetSlot: a.TargetSlotIndex,
	}
	g.completeTurn()
	return nil
}

// confirmSwap resolves the king look: perform the exchange or leave both
// cards in place.
func (g *Game) confirmSwap(a Action, actorIdx int) error {
	if g.Phase.Type != PhaseSwap || !g.Phase.AwaitingConfirm {
		return g.illegal(a, g.actorID(actorIdx), "no swap decision pending")
	}
	if err := g.requireTurn(a, actorIdx); err != nil {
		return err
	}
	targetIdx := g.playerByID(g.Phase.SwapOtherID)
	if targetIdx < 0 {
		return g.illegal(a, g.actorID(actorIdx), "swap target no longer in game")
	}

	actor := &g.Players[actorIdx]
	target := &g.Players[targetIdx]
	if a.Perform {
		actor.Hand[g.Phase.SwapOwnSlot], target.Hand[g.Phase.SwapOtherSlot] =
			target.Hand[g.Phase.SwapOtherSlot], actor.Hand[g.Phase.SwapOwnSlot]
	}
	g.LastAction = LastAction{
		Type:       a.Type,
		Actor:      actor.ID,
		SlotIndex:  g.Phase.SwapOwnSlot,
		TargetID:   target.ID,
		TargetSlot: g.Phase.SwapOtherSlot,
	}
	g.completeTurn()
	return nil
}

// completeTurn closes the acting player's turn. With an active Cabo call
// each completed non-caller turn counts toward the final lap; the lap ends
// the round after every other player has acted exactly once more.
// Otherwise play advances to the next seat.
func (g *Game) completeTurn() {
	n := len(g.Players)
	if g.CaboCallerID != uuid.Nil && g.CurrentPlayer().ID != g.CaboCallerID {
		g.TurnsAfterCabo++
		if g.TurnsAfterCabo >= n-1 {
			g.finishRound()
			return
		}
	}

	next := (g.CurrentPlayerIndex + 1) % n
	for g.CaboCallerID != uuid.Nil && g.Players[next].ID == g.CaboCallerID {
		next = (next + 1) % n
	}
	g.CurrentPlayerIndex = next
	g.Phase = Phase{Type: PhaseActionChoice, PlayerID: g.PlayerIDs[next]}
}
