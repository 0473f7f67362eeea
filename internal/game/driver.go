package game

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrSimulating is returned when the driver state cannot be replaced because
// a shot is still in flight.
var ErrSimulating = errors.New("a simulation is already running")

// Driver owns the current GameState and runs one shot at a time from impulse
// to rest. It is either idle or simulating; shot requests while simulating
// are dropped, not queued.
type Driver struct {
	mu         sync.Mutex
	state      GameState
	simulating bool
	ticks      int

	scheduler Scheduler
	onEvents  func([]Event)
	strict    bool
	logger    *zap.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithScheduler sets how ticks are paced. Defaults to SyncScheduler.
func WithScheduler(s Scheduler) DriverOption {
	return func(d *Driver) { d.scheduler = s }
}

// WithEventSink receives each tick's events, in order, as soon as the tick
// completes.
func WithEventSink(fn func([]Event)) DriverOption {
	return func(d *Driver) { d.onEvents = fn }
}

// WithStrictInvariants makes an invariant violation panic instead of being
// logged. Meant for development and tests.
func WithStrictInvariants(strict bool) DriverOption {
	return func(d *Driver) { d.strict = strict }
}

func WithLogger(l *zap.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates an idle driver holding initial.
func NewDriver(initial GameState, opts ...DriverOption) *Driver {
	d := &Driver{
		state:     initial.Clone(),
		scheduler: SyncScheduler{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("driver")
	return d
}

// RequestShot sets the velocity of ballID and starts the tick loop. It
// reports false, doing nothing, when a simulation is already running or the
// ball is missing or dead. onComplete is called exactly once with the final
// state when everything has come to rest.
func (d *Driver) RequestShot(ballID int, vel Vec2, onComplete func(GameState)) bool {
	d.mu.Lock()
	if d.simulating {
		d.mu.Unlock()
		d.logger.Debug("shot rejected, simulation in flight", zap.Int("ball_id", ballID))
		return false
	}
	b := d.state.Ball(ballID)
	if b == nil || b.IsDead {
		d.mu.Unlock()
		d.logger.Debug("shot rejected, ball unavailable", zap.Int("ball_id", ballID))
		return false
	}
	b.Vel = vel
	d.simulating = true
	d.ticks = 0
	d.mu.Unlock()

	d.logger.Debug("shot started",
		zap.Int("ball_id", ballID),
		zap.Float64("vx", vel.X),
		zap.Float64("vy", vel.Y))

	d.scheduler.Run(func() bool { return d.tick(onComplete) })
	return true
}

func (d *Driver) tick(onComplete func(GameState)) bool {
	d.mu.Lock()
	next, events := Step(d.state)
	d.state = next
	d.ticks++
	d.checkInvariants()

	more := d.state.InMotion()
	if more && d.ticks >= MaxSimulationTicks {
		d.logger.Error("simulation did not settle, forcing rest", zap.Int("ticks", d.ticks))
		settle(&d.state)
		more = false
	}
	var final GameState
	if !more {
		d.simulating = false
		final = d.state.Clone()
	}
	ticks := d.ticks
	d.mu.Unlock()

	if len(events) > 0 && d.onEvents != nil {
		d.onEvents(events)
	}
	if !more {
		d.logger.Debug("simulation at rest",
			zap.Int("ticks", ticks),
			zap.Int("score_a", final.Scores.A),
			zap.Int("score_b", final.Scores.B))
		if onComplete != nil {
			onComplete(final)
		}
	}
	return more
}

// checkInvariants must be called with d.mu held.
func (d *Driver) checkInvariants() {
	err := d.state.Validate()
	if err == nil {
		return
	}
	if d.strict {
		panic(fmt.Sprintf("game state invariant violated at tick %d: %v", d.state.Tick, err))
	}
	d.logger.Error("game state invariant violated", zap.Int("tick", d.state.Tick), zap.Error(err))
}

// settle stops all motion and hides every dead ball.
func settle(s *GameState) {
	for i := range s.Balls {
		s.Balls[i].Vel = Vec2{}
		if s.Balls[i].IsDead && s.Balls[i].Scale > 0 {
			s.Balls[i].Scale = 0
		}
	}
}

// Snapshot returns a copy of the current state that is safe to read while
// the driver keeps ticking.
func (d *Driver) Snapshot() GameState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

func (d *Driver) IsSimulating() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.simulating
}

// Ticks returns how many ticks the current or last shot has run.
func (d *Driver) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// Load replaces the driver state, e.g. to hand the turn over between shots.
func (d *Driver) Load(s GameState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.simulating {
		return ErrSimulating
	}
	d.state = s.Clone()
	return nil
}
