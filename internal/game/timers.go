package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/engine"
)

// armTimers (re)schedules the deadline that applies to the current phase,
// if any. Each callback captures the Version at scheduling time and
// re-checks it after re-locking, so a firing that lost the race to a
// player action is dropped. Assumes lock held.
func (s *CaboGame) armTimers() {
	s.stopTimersLocked()
	if s.Engine.Status != engine.StatusPlaying {
		return
	}

	switch s.Engine.Phase.Type {
	case engine.PhaseReady:
		delay := s.Engine.Rules.ReadyDelay - time.Since(s.Engine.Phase.ReadyAt)
		if delay < 0 {
			delay = 0
		}
		version := s.Version
		s.readyTimer = time.AfterFunc(delay, func() {
			s.fireScheduled(version, engine.Action{Type: engine.ActionTimerElapsed})
		})

	case engine.PhasePeek, engine.PhaseSpy, engine.PhaseSwap:
		s.armSkillTimeout()

	case engine.PhaseDiscard:
		if s.Engine.Phase.CanUseSkill {
			s.armSkillTimeout()
		}
	}
}

// armSkillTimeout forfeits the pending skill decision after the configured
// window. Assumes lock held.
func (s *CaboGame) armSkillTimeout() {
	timeout := s.Engine.Rules.SkillTimeout
	if timeout <= 0 {
		return
	}
	version := s.Version
	s.skillTimer = time.AfterFunc(timeout, func() {
		s.fireScheduled(version, engine.Action{Type: engine.ActionPassSkill})
	})
}

// fireScheduled runs a timer-driven action. It re-acquires the lock and
// applies only if no other transition happened since the timer was armed.
func (s *CaboGame) fireScheduled(version int, a engine.Action) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Version != version {
		return // a player action beat the deadline
	}
	if _, err := s.submitLocked(uuid.Nil, a); err != nil {
		logrus.Warnf("game %s: scheduled %s rejected: %v", s.ID, a.Type, err)
	}
}

// stopTimersLocked cancels any pending deadlines. Assumes lock held.
func (s *CaboGame) stopTimersLocked() {
	if s.readyTimer != nil {
		s.readyTimer.Stop()
		s.readyTimer = nil
	}
	if s.skillTimer != nil {
		s.skillTimer.Stop()
		s.skillTimer = nil
	}
}
