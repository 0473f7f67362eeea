package game

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidPower = errors.New("invalid power")
	ErrInvalidShot  = errors.New("invalid shot vector")
)

// ShotDescriptor is everything a remote peer needs to replay a shot: the
// ball and the exact velocity applied to it. Power and Timestamp are
// informational.
type ShotDescriptor struct {
	BallID         int     `json:"ball_id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Power          float64 `json:"power"`
	Timestamp      int64   `json:"timestamp"`
	ShooterFaction Faction `json:"shooter_faction"`
}

// NewShot builds a descriptor aiming ballID along dir with the given power,
// capped at MaxShotPower.
func NewShot(ballID int, dir Vec2, power float64, shooter Faction) ShotDescriptor {
	power = math.Max(0, math.Min(power, MaxShotPower))
	vel := dir.Normalize().Times(power)
	return ShotDescriptor{
		BallID:         ballID,
		X:              vel.X,
		Y:              vel.Y,
		Power:          power,
		Timestamp:      time.Now().UnixMilli(),
		ShooterFaction: shooter,
	}
}

// Velocity is the initial velocity the shot imparts.
func (s ShotDescriptor) Velocity() Vec2 {
	return Vec2{X: s.X, Y: s.Y}
}

// Validate rejects vectors that are non-finite or faster than MaxShotPower.
func (s ShotDescriptor) Validate() error {
	v := s.Velocity()
	if !v.IsFinite() {
		return ErrInvalidShot
	}
	// Small tolerance for float noise from Normalize().Times(power).
	if v.Magnitude() > MaxShotPower*(1+1e-9) {
		return ErrInvalidPower
	}
	return nil
}
