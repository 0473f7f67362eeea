package game

import (
	"math"
	"sync"
)

// Engine holds the arena geometry for the current display size. Resize
// regenerates bounds and walls; every match initialized afterwards uses them.
type Engine struct {
	mu     sync.RWMutex
	bounds Bounds
	walls  []Wall
}

// NewEngine creates an engine sized for the given display.
func NewEngine(displayWidth, displayHeight float64) *Engine {
	e := &Engine{}
	e.Resize(displayWidth, displayHeight)
	return e
}

// Resize recomputes the arena bounds and wall layout in place.
func (e *Engine) Resize(displayWidth, displayHeight float64) {
	b := NewBounds(displayWidth, displayHeight)
	walls := b.Walls()

	e.mu.Lock()
	e.bounds = b
	e.walls = walls
	e.mu.Unlock()
}

func (e *Engine) Bounds() Bounds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bounds
}

// Walls returns a copy of the current wall layout.
func (e *Engine) Walls() []Wall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Wall, len(e.walls))
	copy(out, e.walls)
	return out
}

// InitializeMatch builds a fresh match: faction A to move, status playing.
func (e *Engine) InitializeMatch() GameState {
	e.mu.RLock()
	b := e.bounds
	walls := make([]Wall, len(e.walls))
	copy(walls, e.walls)
	e.mu.RUnlock()

	s := GameState{
		Arena:     b,
		Walls:     walls,
		Balls:     Formation(b),
		TurnOwner: FactionA,
		Status:    StatusPlaying,
	}
	s.Scores = Scores{A: s.CountAlive(FactionA), B: s.CountAlive(FactionB)}
	return s
}

// Formation places RingBalls balls evenly around a ring at RingRadiusRatio of
// the half-height, alternating faction by index, then a center pair: A to
// the left, B to the right.
func Formation(b Bounds) []Ball {
	r := b.BallRadius()
	ring := b.RY * RingRadiusRatio
	center := b.Center()

	balls := make([]Ball, 0, NumBalls)
	for i := 0; i < RingBalls; i++ {
		angle := float64(i) * 2 * math.Pi / RingBalls
		faction := FactionA
		if i%2 == 1 {
			faction = FactionB
		}
		balls = append(balls, newBall(i, faction, center.Plus(Vec2{
			X: math.Cos(angle) * ring,
			Y: math.Sin(angle) * ring,
		}), r))
	}

	balls = append(balls,
		newBall(RingBalls, FactionA, center.Minus(Vec2{X: CenterOffset * r}), r),
		newBall(RingBalls+1, FactionB, center.Plus(Vec2{X: CenterOffset * r}), r),
	)
	return balls
}

func newBall(id int, f Faction, pos Vec2, radius float64) Ball {
	return Ball{
		ID:      id,
		Faction: f,
		Pos:     pos,
		Radius:  radius,
		Scale:   1,
		// Deterministic idle-bob phase so peers render the same frame.
		AnimOffset: float64(id) * math.Pi / RingBalls,
	}
}
