package engine

import "time"

// Rules holds the configurable house rules for a game.
type Rules struct {
	HandSize          int           // cards dealt to each player
	SetupPeekCount    int           // hand slots each player may look at during SETUP
	ReadyDelay        time.Duration // pause between READY and the first turn
	SkillTimeout      time.Duration // 0 disables the skill-decision timeout
	EndScore          int           // cumulative total that ends the game
	DoubleCaboPenalty bool          // double the caller's round score when not strictly lowest
	PauseOnDisconnect bool          // pause the game when a seated player drops
}

// DefaultRules returns the standard Cabo house rules.
func DefaultRules() Rules {
	return Rules{
		HandSize:          4,
		SetupPeekCount:    2,
		ReadyDelay:        5 * time.Second,
		SkillTimeout:      15 * time.Second,
		EndScore:          100,
		DoubleCaboPenalty: true,
		PauseOnDisconnect: true,
	}
}
