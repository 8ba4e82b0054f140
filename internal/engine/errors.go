package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEmptyDeckUnrecoverable means the deck and the discard pile (minus its
// top card) are both exhausted. With a fixed card count this is unreachable;
// it signals a logic bug, not a player mistake.
var ErrEmptyDeckUnrecoverable = errors.New("deck and discard pile exhausted")

// IllegalActionError reports a rejected transition: wrong actor, wrong
// phase, or an invalid target. The game is left completely unmodified.
type IllegalActionError struct {
	Phase  PhaseType
	Action ActionType
	Actor  uuid.UUID
	Reason string
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal action %s in phase %s by %s: %s", e.Action, e.Phase, e.Actor, e.Reason)
}

// InvalidPlayerCountError reports game creation outside the 2-4 seat range.
type InvalidPlayerCountError struct {
	Count int
}

func (e *InvalidPlayerCountError) Error() string {
	return fmt.Sprintf("cannot create game with %d players, need 2-4", e.Count)
}

// illegal builds an IllegalActionError for the current phase.
func (g *Game) illegal(a Action, actor uuid.UUID, reason string) error {
	return &IllegalActionError{Phase: g.Phase.Type, Action: a.Type, Actor: actor, Reason: reason}
}
