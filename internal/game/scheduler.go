package game

import "time"

// Scheduler calls tick repeatedly, one simulation frame per call, until tick
// returns false. The next call never starts before the previous one returned.
type Scheduler interface {
	Run(tick func() bool)
}

// SyncScheduler runs every tick back to back in the caller's goroutine.
// The authoritative server uses it: a shot is settled before Run returns.
type SyncScheduler struct{}

func (SyncScheduler) Run(tick func() bool) {
	for tick() {
	}
}

// FrameScheduler paces ticks at a fixed frame interval on its own goroutine,
// standing in for a display's animation-frame callback. There is no way to
// stop it early; it exits when the simulation comes to rest.
type FrameScheduler struct {
	Interval time.Duration
}

// DefaultFrameInterval is one frame at 60 Hz.
const DefaultFrameInterval = time.Second / 60

func (f FrameScheduler) Run(tick func() bool) {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if !tick() {
				return
			}
		}
	}()
}
