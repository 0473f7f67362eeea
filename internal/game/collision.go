package game

import "math"

// resolveWallCollision pushes b out of w and bounces it. It reports true
// when the velocity response fired, which is what counts as a wall hit.
func resolveWallCollision(b *Ball, w Wall) bool {
	left, top, right, bottom := w.Extents()
	closest := Vec2{
		X: clamp(b.Pos.X, left, right),
		Y: clamp(b.Pos.Y, top, bottom),
	}

	diff := b.Pos.Minus(closest)
	dist := diff.Magnitude()
	if dist > b.Radius {
		return false
	}

	// Center inside the rectangle: no direction to read, push along +X.
	push := Vec2{X: 1}
	if dist > 0 {
		push = diff.Times(1 / dist)
	}
	b.Pos = b.Pos.Plus(push.Times(b.Radius - dist))

	// Axis-aligned normal from the dominant penetration axis keeps bounces
	// off rectangle corners clean.
	var normal Vec2
	if math.Abs(diff.X) > math.Abs(diff.Y) {
		normal = Vec2{X: sign(diff.X)}
	} else {
		normal = Vec2{Y: sign(diff.Y)}
	}

	vn := b.Vel.Dot(normal)
	if vn >= 0 {
		return false
	}
	reflected := b.Vel.Minus(normal.Times(2 * vn))
	b.Vel = reflected.Times(WallRestitution)
	return true
}

// resolveBallCollisions separates overlapping live balls and exchanges
// impulses between approaching ones. Pairs are visited in index order so a
// replay with the same ball order produces the same result.
func resolveBallCollisions(balls []Ball, tick int) []Event {
	for pass := 0; pass < PenetrationPasses; pass++ {
		for i := 0; i < len(balls); i++ {
			for j := i + 1; j < len(balls); j++ {
				separatePair(&balls[i], &balls[j])
			}
		}
	}

	var events []Event
	for i := 0; i < len(balls); i++ {
		for j := i + 1; j < len(balls); j++ {
			a, b := &balls[i], &balls[j]
			impulse, ok := exchangeImpulse(a, b)
			if ok && impulse >= HitImpulseThreshold {
				events = append(events, Event{
					Kind:     EventHit,
					Tick:     tick,
					BallID:   a.ID,
					TargetID: b.ID,
					Speed:    impulse,
				})
			}
		}
	}
	return events
}

// separatePair moves two overlapping balls apart along their center line,
// each by PenetrationShare of the overlap.
func separatePair(a, b *Ball) {
	if a.IsDead || b.IsDead {
		return
	}
	delta := b.Pos.Minus(a.Pos)
	dist := delta.Magnitude()
	minDist := a.Radius + b.Radius
	if dist >= minDist {
		return
	}

	normal := contactNormal(delta, dist)
	correction := normal.Times((minDist - dist) * PenetrationShare)
	a.Pos = a.Pos.Minus(correction)
	b.Pos = b.Pos.Plus(correction)
}

// exchangeImpulse applies an equal-and-opposite impulse to a pair in contact
// that is not already separating. It returns the impulse magnitude given to
// each ball.
func exchangeImpulse(a, b *Ball) (float64, bool) {
	if a.IsDead || b.IsDead {
		return 0, false
	}
	delta := b.Pos.Minus(a.Pos)
	dist := delta.Magnitude()
	if dist >= a.Radius+b.Radius+ContactSlop {
		return 0, false
	}

	normal := contactNormal(delta, dist)
	speed := b.Vel.Minus(a.Vel).Dot(normal)
	if speed > 0 {
		return 0, false
	}

	j := speed * (1 + BallRestitution) / 2
	a.Vel = a.Vel.Plus(normal.Times(j))
	b.Vel = b.Vel.Minus(normal.Times(j))
	return -j, true
}

// contactNormal is the unit vector from a to b, or +X for coincident centers.
func contactNormal(delta Vec2, dist float64) Vec2 {
	if dist == 0 {
		return Vec2{X: 1}
	}
	return delta.Times(1 / dist)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
