package game

// Step advances the simulation by one tick. The input is left untouched; the
// returned state is the new authoritative value, together with everything
// that happened during the tick in order.
func Step(s GameState) (GameState, []Event) {
	next := s.Clone()
	next.Tick++

	var events []Event
	for i := range next.Balls {
		b := &next.Balls[i]

		if b.IsDead {
			if b.Scale > 0 {
				b.Scale -= ScaleDecay
			}
			continue
		}

		b.Pos = b.Pos.Plus(b.Vel)
		b.Vel = b.Vel.Times(Friction)
		b.Rotation += b.Vel.X * RotationPerVelocity
		if b.Vel.Magnitude() < VelocityFloor {
			b.Vel = Vec2{}
		}

		for _, w := range next.Walls {
			if resolveWallCollision(b, w) {
				events = append(events, Event{
					Kind:   EventWall,
					Tick:   next.Tick,
					BallID: b.ID,
					Speed:  b.Vel.Magnitude(),
				})
			}
		}

		events = eliminateIfOutside(&next, b, events)
	}

	events = append(events, resolveBallCollisions(next.Balls, next.Tick)...)

	// Separation can shove a ball over the edge after the per-ball check.
	for i := range next.Balls {
		if !next.Balls[i].IsDead {
			events = eliminateIfOutside(&next, &next.Balls[i], events)
		}
	}

	if winner, ended := next.recountScores(); ended {
		events = append(events, Event{
			Kind:    EventWin,
			Tick:    next.Tick,
			BallID:  -1,
			Faction: winner,
		})
	}

	return next, events
}

// eliminateIfOutside kills b when its center has left the arena. Only the
// center counts, so a ball can never linger half outside.
func eliminateIfOutside(s *GameState, b *Ball, events []Event) []Event {
	if s.Arena.Contains(b.Pos) {
		return events
	}
	b.kill()
	return append(events, Event{
		Kind:    EventSplash,
		Tick:    s.Tick,
		BallID:  b.ID,
		Faction: b.Faction,
	})
}
