package game

// EventKind classifies what happened during a tick.
type EventKind string

const (
	EventHit    EventKind = "hit"    // ball-ball impact above HitImpulseThreshold
	EventWall   EventKind = "wall"   // wall bounce
	EventSplash EventKind = "splash" // ball eliminated
	EventWin    EventKind = "win"    // match just ended
)

// Event records something notable for sound, rendering or broadcast.
// Faction is set for splash (eliminated ball's faction) and win (winner).
type Event struct {
	Kind     EventKind `json:"kind"`
	Tick     int       `json:"tick"`
	BallID   int       `json:"ball_id"`
	TargetID int       `json:"target_id,omitempty"`
	Faction  Faction   `json:"faction,omitempty"`
	Speed    float64   `json:"speed,omitempty"`
}

// CountEvents returns how many events of kind are in events.
func CountEvents(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
