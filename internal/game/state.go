package game

import (
	"fmt"
	"math"
)

// Status represents the current phase of a match
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Scores holds the live-ball count of each faction.
type Scores struct {
	A int `json:"A"`
	B int `json:"B"`
}

func (s Scores) Of(f Faction) int {
	if f == FactionA {
		return s.A
	}
	return s.B
}

// GameState is the aggregate that flows through time, one value per tick.
type GameState struct {
	Arena     Bounds   `json:"arena"`
	Walls     []Wall   `json:"walls"`
	Balls     []Ball   `json:"balls"`
	TurnOwner Faction  `json:"turn_owner"`
	Scores    Scores   `json:"scores"`
	Status    Status   `json:"status"`
	Winner    *Faction `json:"winner,omitempty"`
	Tick      int      `json:"tick"`
}

// Clone returns a copy that shares nothing mutable with s. Walls are
// immutable once built, so they are shared.
func (s GameState) Clone() GameState {
	out := s
	out.Balls = make([]Ball, len(s.Balls))
	copy(out.Balls, s.Balls)
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return out
}

// Ball returns a pointer into s.Balls for id, or nil.
func (s *GameState) Ball(id int) *Ball {
	for i := range s.Balls {
		if s.Balls[i].ID == id {
			return &s.Balls[i]
		}
	}
	return nil
}

// CountAlive returns the number of live balls of faction f.
func (s *GameState) CountAlive(f Faction) int {
	n := 0
	for i := range s.Balls {
		if s.Balls[i].Faction == f && !s.Balls[i].IsDead {
			n++
		}
	}
	return n
}

// InMotion is the run-loop continuation predicate: some live ball is moving
// or some dead ball is still shrinking.
func (s *GameState) InMotion() bool {
	for i := range s.Balls {
		if s.Balls[i].IsMoving() || s.Balls[i].IsShrinking() {
			return true
		}
	}
	return false
}

// recountScores derives scores from the ball list and settles a playing
// match when a faction has nothing left. It returns the winner when the match
// finished on this call.
func (s *GameState) recountScores() (Faction, bool) {
	s.Scores = Scores{A: s.CountAlive(FactionA), B: s.CountAlive(FactionB)}

	if s.Status != StatusPlaying {
		return "", false
	}

	var winner Faction
	switch {
	case s.Scores.A == 0 && s.Scores.B == 0:
		// Both wiped out on the same tick: the shooter took their own last
		// ball with them, so the other side takes it.
		winner = s.TurnOwner.Opponent()
	case s.Scores.A == 0:
		winner = FactionB
	case s.Scores.B == 0:
		winner = FactionA
	default:
		return "", false
	}

	s.Status = StatusFinished
	s.Winner = &winner
	return winner, true
}

// Validate checks the invariants every reachable state must hold. A failure
// is a programming error, never a recoverable condition.
func (s *GameState) Validate() error {
	seen := make(map[int]bool, len(s.Balls))
	for i := range s.Balls {
		b := &s.Balls[i]
		if seen[b.ID] {
			return fmt.Errorf("ball %d: duplicate id", b.ID)
		}
		seen[b.ID] = true
		if !b.Pos.IsFinite() {
			return fmt.Errorf("ball %d: non-finite position %+v", b.ID, b.Pos)
		}
		if !b.Vel.IsFinite() {
			return fmt.Errorf("ball %d: non-finite velocity %+v", b.ID, b.Vel)
		}
		if b.Radius <= 0 || math.IsNaN(b.Radius) {
			return fmt.Errorf("ball %d: invalid radius %v", b.ID, b.Radius)
		}
		if !b.Faction.Valid() {
			return fmt.Errorf("ball %d: unknown faction %q", b.ID, b.Faction)
		}
		// A shrinking ball may overshoot zero by at most one decay step.
		if !(b.Scale >= -ScaleDecay && b.Scale <= 1) {
			return fmt.Errorf("ball %d: scale %v out of range", b.ID, b.Scale)
		}
	}
	if a := s.CountAlive(FactionA); a != s.Scores.A {
		return fmt.Errorf("score drift: faction A has %d live balls, score %d", a, s.Scores.A)
	}
	if b := s.CountAlive(FactionB); b != s.Scores.B {
		return fmt.Errorf("score drift: faction B has %d live balls, score %d", b, s.Scores.B)
	}
	if s.Status == StatusFinished && s.Winner == nil {
		return fmt.Errorf("finished state without a winner")
	}
	return nil
}
