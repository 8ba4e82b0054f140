// Package game hosts live Cabo sessions: serialized per-game access to the
// engine, per-recipient redacted views, scheduled timers, and the hooks to
// the persistence and audit collaborators.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/cache"
	"github.com/gene9831/cabo/internal/database"
	"github.com/gene9831/cabo/internal/engine"
)

// OnGameEndFunc runs when a game reaches its terminal score. It receives
// the lobby id and the final standings, lowest total first.
type OnGameEndFunc func(lobbyID uuid.UUID, standings []engine.Standing)

// CaboGame wraps one engine game behind a mutex. Concurrent actions on the
// same game are strictly ordered by Mu; the lock is held only for the
// synchronous transition, never across I/O. Independent games share
// nothing.
type CaboGame struct {
	ID      uuid.UUID
	LobbyID uuid.UUID

	Engine *engine.Game

	Mu sync.Mutex

	// Version increments on every successful transition. Timer callbacks
	// capture it and re-check after re-locking so stale firings are
	// dropped instead of mutating a moved-on game.
	Version int

	connected   map[uuid.UUID]bool // by user id
	readyTimer  *time.Timer
	skillTimer  *time.Timer
	actionIndex int

	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(userID uuid.UUID, ev GameEvent)
	OnGameEnd           OnGameEndFunc
}

// NewCaboGame seats the given users (2-4, turn order as listed) and deals
// the first round. The caller wires the broadcast callbacks before Begin.
func NewCaboGame(lobbyID uuid.UUID, playerUserIDs []uuid.UUID, rules engine.Rules) (*CaboGame, error) {
	eng, err := engine.NewGame(uint64(time.Now().UnixNano()), playerUserIDs, rules)
	if err != nil {
		return nil, err
	}
	s := &CaboGame{
		ID:        eng.ID,
		LobbyID:   lobbyID,
		Engine:    eng,
		connected: make(map[uuid.UUID]bool),
	}
	for _, uid := range playerUserIDs {
		s.connected[uid] = true
	}
	return s, nil
}

// Begin announces the table and privately reveals each player's setup
// peek slots. Call once, after the broadcast callbacks are wired.
func (s *CaboGame) Begin() {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	logrus.Infof("game %s: starting with %d players", s.ID, len(s.Engine.Players))
	s.logAction(uuid.Nil, "game_start", map[string]any{"players": len(s.Engine.Players)})
	s.persistSnapshot()

	s.sendSetupPeeks()
	s.syncAll()
}

// sendSetupPeeks privately reveals the first SetupPeekCount slots of each
// hand to its owner. Assumes lock held.
func (s *CaboGame) sendSetupPeeks() {
	n := s.Engine.Rules.SetupPeekCount
	for i := range s.Engine.Players {
		p := &s.Engine.Players[i]
		ev := GameEvent{Type: EventPrivateSetupPeek}
		if n > 0 && len(p.Hand) > 0 {
			ev.Card1 = knownCardAt(&p.Hand[0].Card, 0)
		}
		if n > 1 && len(p.Hand) > 1 {
			ev.Card2 = knownCardAt(&p.Hand[1].Card, 1)
		}
		s.fireEventToPlayer(p.UserID, ev)
	}
}

// SubmitAction is the single action ingress. It validates and applies the
// action under the session lock, emits the resulting events, hands the new
// snapshot to the collaborators, and returns the actor's redacted view.
// On a rejected action the game is unchanged and the error is for the
// actor alone.
func (s *CaboGame) SubmitAction(actorUserID uuid.UUID, a engine.Action) (*GameView, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.submitLocked(actorUserID, a)
}

// submitLocked runs one transition. Assumes lock held.
func (s *CaboGame) submitLocked(actorUserID uuid.UUID, a engine.Action) (*GameView, error) {
	prevPhase := s.Engine.Phase.Type
	prevPlayer := s.Engine.Phase.PlayerID

	if err := s.Engine.Apply(actorUserID, a); err != nil {
		logrus.Debugf("game %s: rejected %s from %s: %v", s.ID, a.Type, actorUserID, err)
		return nil, err
	}
	s.Version++

	s.emitEvents(a, prevPhase, prevPlayer)
	s.armTimers()

	s.logAction(actorUserID, string(a.Type), map[string]any{
		"slot":       a.SlotIndex,
		"targetSlot": a.TargetSlotIndex,
		"phase":      string(s.Engine.Phase.Type),
	})
	s.persistSnapshot()

	if s.Engine.LastAction.GameEnded {
		s.finishGame()
	}

	view := s.buildView(actorUserID)
	return &view, nil
}

// emitEvents translates the engine's LastAction record into public and
// private events. Assumes lock held.
func (s *CaboGame) emitEvents(a engine.Action, prevPhase engine.PhaseType, prevPlayer uuid.UUID) {
	la := s.Engine.LastAction
	actor := s.userIDForPlayer(la.Actor)

	switch la.Type {
	case engine.ActionPlayerReady:
		s.fireEvent(GameEvent{Type: EventPlayerReady, User: &EventUser{ID: actor}})
		if s.Engine.Phase.Type == engine.PhaseReady && prevPhase == engine.PhaseSetup {
			s.fireEvent(GameEvent{Type: EventGameReady, Payload: map[string]any{
				"delayMs": s.Engine.Rules.ReadyDelay.Milliseconds(),
			}})
		}

	case engine.ActionDrawFromDeck:
		if la.Reshuffled {
			s.fireEvent(GameEvent{Type: EventGameReshuffle, Payload: map[string]any{
				"deckSize": len(s.Engine.Deck) + 1, // size as rebuilt, before this draw
			}})
		}
		s.fireEvent(GameEvent{Type: EventPlayerDrawDeck, User: &EventUser{ID: actor}, Card: publicCard(la.Revealed)})
		s.fireEventToPlayer(actor, GameEvent{Type: EventPrivateDrawnCard, Card: knownCard(la.Revealed)})

	case engine.ActionDrawFromDiscard:
		s.fireEvent(GameEvent{Type: EventPlayerDrawDiscard, User: &EventUser{ID: actor}, Card: knownCard(la.Card)})

	case engine.ActionCallCabo:
		s.fireEvent(GameEvent{Type: EventPlayerCabo, User: &EventUser{ID: actor}})

	case engine.ActionDiscard:
		s.fireEvent(GameEvent{Type: EventPlayerDiscard, User: &EventUser{ID: actor}, Card: knownCard(la.Card)})
		if s.Engine.Phase.Type == engine.PhaseDiscard && s.Engine.Phase.CanUseSkill {
			s.fireEvent(GameEvent{
				Type:  EventSkillChoice,
				User:  &EventUser{ID: actor},
				Skill: s.Engine.Phase.Skill.String(),
			})
		}

	case engine.ActionReplace:
		s.fireEvent(GameEvent{
			Type: EventPlayerReplace,
			User: &EventUser{ID: actor},
			Card: knownCardAt(la.Card, la.SlotIndex), // the displaced card, now public
		})

	case engine.ActionUseSkill:
		s.fireEvent(GameEvent{Type: EventSkillAction, User: &EventUser{ID: actor}, Skill: s.Engine.Phase.Skill.String()})

	case engine.ActionPassSkill:
		s.fireEvent(GameEvent{Type: EventSkillAction, User: &EventUser{ID: actor}, Skill: "pass"})

	case engine.ActionChoosePeekTarget:
		s.fireEvent(GameEvent{
			Type:  EventSkillAction,
			User:  &EventUser{ID: actor},
			Skill: engine.SkillPeek.String(),
			Card:  &EventCard{ID: la.Revealed.ID, Idx: intPtr(la.SlotIndex), User: &EventUser{ID: actor}},
		})
		s.fireEventToPlayer(actor, GameEvent{
			Type:  EventPrivateSkillReveal,
			Skill: engine.SkillPeek.String(),
			Card:  knownCardAt(la.Revealed, la.SlotIndex),
		})

	case engine.ActionChooseSpyTarget:
		targetUser := s.userIDForPlayer(la.TargetID)
		s.fireEvent(GameEvent{
			Type:  EventSkillAction,
			User:  &EventUser{ID: actor},
			Skill: engine.SkillSpy.String(),
			Card:  &EventCard{ID: la.Revealed.ID, Idx: intPtr(la.TargetSlot), User: &EventUser{ID: targetUser}},
		})
		s.fireEventToPlayer(actor, GameEvent{
			Type:  EventPrivateSkillReveal,
			Skill: engine.SkillSpy.String(),
			Card:  knownCardAt(la.Revealed, la.TargetSlot),
		})

	case engine.ActionChooseSwapTargets:
		targetUser := s.userIDForPlayer(la.TargetID)
		if la.Revealed != nil {
			// King look: both cards privately revealed, nothing moved yet.
			s.fireEventToPlayer(actor, GameEvent{
				Type:  EventPrivateSkillReveal,
				Skill: engine.SkillKing.String(),
				Card1: knownCardAt(la.Revealed, la.SlotIndex),
				Card2: knownCardAt(la.Revealed2, la.TargetSlot),
			})
			s.fireEvent(GameEvent{Type: EventSkillAction, User: &EventUser{ID: actor}, Skill: engine.SkillKing.String()})
		} else {
			s.fireEvent(GameEvent{
				Type:  EventSkillAction,
				User:  &EventUser{ID: actor},
				Skill: engine.SkillSwap.String(),
				Card1: &EventCard{Idx: intPtr(la.SlotIndex), User: &EventUser{ID: actor}},
				Card2: &EventCard{Idx: intPtr(la.TargetSlot), User: &EventUser{ID: targetUser}},
			})
		}

	case engine.ActionConfirmSwap:
		s.fireEvent(GameEvent{
			Type:    EventSkillAction,
			User:    &EventUser{ID: actor},
			Skill:   engine.SkillKing.String(),
			Payload: map[string]any{"performed": a.Perform},
		})
	}

	if la.RoundEnded {
		s.emitRoundEnd()
	}

	// Announce the next turn whenever a new ACTION_CHOICE opened.
	if s.Engine.Phase.Type == engine.PhaseActionChoice &&
		(prevPhase != engine.PhaseActionChoice || prevPlayer != s.Engine.Phase.PlayerID) {
		s.fireEvent(GameEvent{
			Type: EventGamePlayerTurn,
			User: &EventUser{ID: s.userIDForPlayer(s.Engine.Phase.PlayerID)},
		})
	}
}

// emitRoundEnd publishes the revealed hands and scores, then pushes every
// player a fresh sync (the next round's SETUP, or the final table).
// Assumes lock held.
func (s *CaboGame) emitRoundEnd() {
	hands := make([]map[string]any, 0, len(s.Engine.LastAction.RevealedHands))
	for _, rh := range s.Engine.LastAction.RevealedHands {
		cards := make([]map[string]any, len(rh.Cards))
		for i, c := range rh.Cards {
			cards[i] = map[string]any{"id": c.ID.String(), "rank": c.Rank, "suit": c.Suit, "value": c.Value}
		}
		hands = append(hands, map[string]any{
			"userId": s.userIDForPlayer(rh.PlayerID).String(),
			"cards":  cards,
		})
	}
	payload := map[string]any{
		"round":  s.Engine.Round,
		"scores": s.Engine.Scores[len(s.Engine.Scores)-1],
		"totals": s.Engine.Totals(),
		"hands":  hands,
	}
	if s.Engine.CaboCallerID != uuid.Nil {
		payload["caller"] = s.userIDForPlayer(s.Engine.CaboCallerID).String()
	}
	s.fireEvent(GameEvent{Type: EventGameRoundEnd, Payload: payload})
	s.syncAll()
	if !s.Engine.IsGameOver() {
		s.sendSetupPeeks()
	}
}

// finishGame publishes the standings, stores the final snapshot, and runs
// the end callback. Assumes lock held.
func (s *CaboGame) finishGame() {
	s.stopTimersLocked()
	standings := s.Engine.ComputeStandings()
	rows := make([]map[string]any, len(standings))
	for i, st := range standings {
		rows[i] = map[string]any{"userId": st.UserID.String(), "total": st.Total}
	}
	s.fireEvent(GameEvent{Type: EventGameEnd, Payload: map[string]any{"standings": rows}})
	logrus.Infof("game %s: ended, winner %s", s.ID, standings[0].UserID)

	if database.DB != nil {
		snapshot := s.Engine.Clone()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.StoreFinalGameState(ctx, snapshot.ID, snapshot); err != nil {
				logrus.Errorf("game %s: storing final state: %v", snapshot.ID, err)
			}
		}()
	}

	if s.OnGameEnd != nil {
		s.OnGameEnd(s.LobbyID, standings)
	}
}

// Abandon cancels the game externally (lobby closed, all players gone).
func (s *CaboGame) Abandon() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Engine.IsTerminal() {
		return
	}
	s.stopTimersLocked()
	s.Engine.Abandon()
	s.Version++
	logrus.Infof("game %s: abandoned", s.ID)
	s.logAction(uuid.Nil, "game_abandoned", nil)
	s.persistSnapshot()
	s.syncAll()
}

// HandleDisconnect marks the user disconnected and, per house rules,
// pauses the game until they return.
func (s *CaboGame) HandleDisconnect(userID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if !s.connected[userID] {
		return
	}
	s.connected[userID] = false
	logrus.Infof("game %s: player %s disconnected", s.ID, userID)
	s.logAction(userID, "player_disconnect", nil)

	if s.Engine.Rules.PauseOnDisconnect && s.Engine.Status == engine.StatusPlaying {
		s.stopTimersLocked()
		s.Engine.Pause()
		s.Version++
		s.fireEvent(GameEvent{Type: EventGamePaused, User: &EventUser{ID: userID}})
		s.persistSnapshot()
	}
	s.syncAll()
}

// HandleReconnect marks the user connected, resumes a pause once everyone
// is back, and pushes them a fresh sync view.
func (s *CaboGame) HandleReconnect(userID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if _, seated := s.connected[userID]; !seated {
		logrus.Warnf("game %s: reconnect from unseated user %s", s.ID, userID)
		return
	}
	s.connected[userID] = true
	logrus.Infof("game %s: player %s reconnected", s.ID, userID)
	s.logAction(userID, "player_reconnect", nil)

	if s.Engine.Status == engine.StatusPaused && s.allConnected() {
		s.Engine.Resume()
		s.Version++
		s.fireEvent(GameEvent{Type: EventGameResumed})
		s.armTimers()
		s.persistSnapshot()
	}
	s.sendSync(userID)
	s.syncAll()
}

func (s *CaboGame) allConnected() bool {
	for _, ok := range s.connected {
		if !ok {
			return false
		}
	}
	return true
}

// View returns the redacted projection for one recipient.
func (s *CaboGame) View(forUserID uuid.UUID) GameView {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.buildView(forUserID)
}

// sendSync pushes a private full-state sync to one player. Assumes lock
// held.
func (s *CaboGame) sendSync(userID uuid.UUID) {
	view := s.buildView(userID)
	s.fireEventToPlayer(userID, GameEvent{Type: EventPrivateSyncState, State: &view})
}

// syncAll pushes each connected player their own view. Assumes lock held.
func (s *CaboGame) syncAll() {
	for i := range s.Engine.Players {
		uid := s.Engine.Players[i].UserID
		if s.connected[uid] {
			s.sendSync(uid)
		}
	}
}

func (s *CaboGame) userIDForPlayer(playerID uuid.UUID) uuid.UUID {
	for i := range s.Engine.Players {
		if s.Engine.Players[i].ID == playerID {
			return s.Engine.Players[i].UserID
		}
	}
	return uuid.Nil
}

// fireEvent broadcasts to every seated player. Assumes lock held.
func (s *CaboGame) fireEvent(ev GameEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends a private event to one connected player.
// Assumes lock held.
func (s *CaboGame) fireEventToPlayer(userID uuid.UUID, ev GameEvent) {
	if s.BroadcastToPlayerFn != nil && s.connected[userID] {
		s.BroadcastToPlayerFn(userID, ev)
	}
}

// persistSnapshot hands the canonical state to the snapshot store, latest
// wins. The write runs off the lock path, so the snapshot is a deep copy
// taken under the lock; a shallow copy would alias the live piles and
// hands. Assumes lock held.
func (s *CaboGame) persistSnapshot() {
	if database.DB == nil {
		return
	}
	snapshot := s.Engine.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.UpsertGameSnapshot(ctx, snapshot.ID, snapshot); err != nil {
			logrus.Errorf("game %s: persisting snapshot: %v", snapshot.ID, err)
		}
	}()
}

// logAction appends one record to the action historian, incrementing the
// per-game index for ordering. Nil-safe and asynchronous. Assumes lock
// held.
func (s *CaboGame) logAction(actorUserID uuid.UUID, actionType string, payload map[string]any) {
	s.actionIndex++
	if payload == nil {
		payload = map[string]any{}
	}
	record := cache.GameActionRecord{
		GameID:        s.ID,
		ActionIndex:   s.actionIndex,
		ActorUserID:   actorUserID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			logrus.Errorf("game %s: publishing action %d (%s): %v", rec.GameID, rec.ActionIndex, rec.ActionType, err)
		}
	}(record)
}

func intPtr(i int) *int { return &i }
