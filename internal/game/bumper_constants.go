package game

// Physics and arena constants for bumper ball.
// All physics values are per-tick multipliers, not per-second rates, so a
// replay on another peer only has to run the same number of ticks.

const (
	// Motion
	Friction            = 0.985 // velocity multiplier applied every tick
	VelocityFloor       = 0.05  // below this speed a ball snaps to rest
	RotationPerVelocity = 0.05  // cosmetic spin per unit of vel.X

	// Restitution
	WallRestitution = 0.7
	BallRestitution = 0.85

	// Ball-ball resolution
	PenetrationPasses   = 2
	PenetrationShare    = 0.51 // each ball moves this fraction of the overlap
	ContactSlop         = 1.0
	HitImpulseThreshold = 0.5 // impulse magnitude that counts as an audible hit

	// Elimination
	ScaleDecay = 0.1

	// Arena layout
	ArenaPadding     = 40.0
	MaxArenaWidth    = 800.0
	ArenaAspect      = 0.7   // height = ArenaAspect * width
	GapFraction      = 0.12  // corner and middle gap, fraction of arena width
	BallRadiusFactor = 0.035 // ball radius, fraction of arena width
	WallThickness    = 10.0

	// Formation
	RingBalls       = 12
	RingRadiusRatio = 0.55 // of the arena half-height
	CenterOffset    = 1.5  // center pair offset, in ball radii
	NumBalls        = RingBalls + 2

	// Shots
	MaxShotPower = 30.0

	// Hard ceiling on ticks for one shot. Friction alone brings the fastest
	// legal shot to rest in well under this.
	MaxSimulationTicks = 20000
)
