package game

import (
	"errors"
	"fmt"
)

// ErrShotRejected means the driver refused the shot: unknown or dead ball.
var ErrShotRejected = errors.New("shot rejected")

// ReplayResult is the outcome of running one shot to rest.
type ReplayResult struct {
	State  GameState `json:"state"`
	Events []Event   `json:"events"`
	Ticks  int       `json:"ticks"`
}

// Replay runs shot against a copy of s synchronously and returns the final
// state with every event in tick order. Two peers calling Replay with the
// same state and descriptor get the same result.
func Replay(s GameState, shot ShotDescriptor) (ReplayResult, error) {
	if err := shot.Validate(); err != nil {
		return ReplayResult{}, err
	}

	var res ReplayResult
	d := NewDriver(s, WithEventSink(func(events []Event) {
		res.Events = append(res.Events, events...)
	}))

	ok := d.RequestShot(shot.BallID, shot.Velocity(), func(final GameState) {
		res.State = final
	})
	if !ok {
		return ReplayResult{}, fmt.Errorf("ball %d: %w", shot.BallID, ErrShotRejected)
	}
	res.Ticks = d.Ticks()
	return res, nil
}
