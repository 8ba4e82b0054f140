package engine

import "github.com/google/uuid"

// Standing is one row of the leaderboard.
type Standing struct {
	PlayerID uuid.UUID `json:"playerId"`
	UserID   uuid.UUID `json:"userId"`
	Total    int       `json:"total"`
}

// finishRound reveals every hand, scores the round, and either ends the
// game or deals the next round. Round score is the sum of hand values;
// lower is better. The Cabo caller's score is doubled when it is not
// strictly the lowest at the table (house rule).
func (g *Game) finishRound() {
	reveal := make([]RevealedHand, len(g.Players))
	for p := range g.Players {
		cards := make([]Card, len(g.Players[p].Hand))
		for s := range g.Players[p].Hand {
			g.Players[p].Hand[s].FaceUp = true
			cards[s] = g.Players[p].Hand[s].Card
		}
		reveal[p] = RevealedHand{PlayerID: g.Players[p].ID, Cards: cards}
	}

	n := len(g.Players)
	roundScores := make([]int, n)
	for p := range g.Players {
		for _, hc := range g.Players[p].Hand {
			roundScores[p] += hc.Card.Value
		}
	}

	if g.Rules.DoubleCaboPenalty && g.CaboCallerID != uuid.Nil {
		callerIdx := g.playerByID(g.CaboCallerID)
		strictlyLowest := true
		for p := range roundScores {
			if p != callerIdx && roundScores[p] <= roundScores[callerIdx] {
				strictlyLowest = false
				break
			}
		}
		if !strictlyLowest {
			roundScores[callerIdx] *= 2
		}
	}

	g.Scores = append(g.Scores, roundScores)
	g.Round++
	g.LastAction.RoundEnded = true
	g.LastAction.RevealedHands = reveal

	for _, total := range g.Totals() {
		if total >= g.Rules.EndScore {
			g.Status = StatusEnded
			g.Phase = Phase{Type: PhaseRoundEnd}
			g.LastAction.GameEnded = true
			return
		}
	}

	g.startRound()
}

// Totals returns each seat's cumulative score across completed rounds.
func (g *Game) Totals() []int {
	totals := make([]int, len(g.Players))
	for _, row := range g.Scores {
		for p, s := range row {
			totals[p] += s
		}
	}
	return totals
}

// IsGameOver reports whether a terminal score condition has been reached.
func (g *Game) IsGameOver() bool {
	return g.Status == StatusEnded
}

// ComputeStandings returns the seats ordered by cumulative total, lowest
// first. Ties keep seat order (stable insertion sort over 2-4 entries).
func (g *Game) ComputeStandings() []Standing {
	totals := g.Totals()
	standings := make([]Standing, 0, len(g.Players))
	for p := range g.Players {
		s := Standing{PlayerID: g.Players[p].ID, UserID: g.Players[p].UserID, Total: totals[p]}
		pos := len(standings)
		for pos > 0 && standings[pos-1].Total > s.Total {
			pos--
		}
		standings = append(standings, Standing{})
		copy(standings[pos+1:], standings[pos:])
		standings[pos] = s
	}
	return standings
}
