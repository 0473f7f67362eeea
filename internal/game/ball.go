package game

// Faction is one of the two competing sides.
type Faction string

const (
	FactionA Faction = "A"
	FactionB Faction = "B"
)

// Opponent returns the other faction.
func (f Faction) Opponent() Faction {
	if f == FactionA {
		return FactionB
	}
	return FactionA
}

func (f Faction) Valid() bool {
	return f == FactionA || f == FactionB
}

// Ball is a single simulated body. Scale, Rotation and AnimOffset are
// cosmetic and never feed back into the physics.
type Ball struct {
	ID         int     `json:"id"`
	Faction    Faction `json:"faction"`
	Pos        Vec2    `json:"pos"`
	Vel        Vec2    `json:"vel"`
	Radius     float64 `json:"radius"`
	IsDead     bool    `json:"is_dead"`
	Scale      float64 `json:"scale"`
	Rotation   float64 `json:"rotation"`
	AnimOffset float64 `json:"anim_offset"`
}

// IsMoving reports whether a live ball still has velocity on either axis.
func (b *Ball) IsMoving() bool {
	return !b.IsDead && (b.Vel.X != 0 || b.Vel.Y != 0)
}

// IsShrinking reports whether a dead ball is still visible.
func (b *Ball) IsShrinking() bool {
	return b.IsDead && b.Scale > 0
}

// kill marks the ball dead. Death is permanent.
func (b *Ball) kill() {
	b.IsDead = true
	b.Vel = Vec2{}
}
