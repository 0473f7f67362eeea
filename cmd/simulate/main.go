// Command simulate fires one shot on a fresh match and prints what happened.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/playmatatu/bumper/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

type options struct {
	width    float64
	height   float64
	ball     int
	vx       float64
	vy       float64
	realtime bool
	frameMs  int
	strict   bool
	asJSON   bool
}

type summary struct {
	Ticks  int            `json:"ticks"`
	Events []game.Event   `json:"events"`
	Final  game.GameState `json:"final"`
}

// newRootCmd builds the command. Flag defaults come from the same
// environment the server reads.
func newRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := options{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one bumper shot headlessly",
		Long: `simulate builds the opening formation for the given display size,
applies (vx, vy) to the chosen ball and runs the physics until every ball is
at rest. With --realtime the ticks are paced at the frame interval and events
are printed as they happen.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			observability.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.width, "width", cfg.DisplayWidth, "display width")
	f.Float64Var(&opts.height, "height", cfg.DisplayHeight, "display height")
	f.IntVar(&opts.ball, "ball", 12, "id of the ball to shoot")
	f.Float64Var(&opts.vx, "vx", 20, "initial x velocity")
	f.Float64Var(&opts.vy, "vy", 0, "initial y velocity")
	f.BoolVar(&opts.realtime, "realtime", false, "pace ticks like a display would")
	f.IntVar(&opts.frameMs, "frame-ms", cfg.FrameIntervalMs, "frame interval in milliseconds with --realtime")
	f.BoolVar(&opts.strict, "strict", cfg.StrictInvariants, "panic on an invariant violation")
	f.BoolVar(&opts.asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	if opts.width <= 0 || opts.height <= 0 {
		return fmt.Errorf("display size must be positive, got %vx%v", opts.width, opts.height)
	}
	shot := game.ShotDescriptor{BallID: opts.ball, X: opts.vx, Y: opts.vy}
	if err := shot.Validate(); err != nil {
		return err
	}

	initial := game.NewEngine(opts.width, opts.height).InitializeMatch()
	initial.Status = game.StatusPlaying

	var res summary
	sink := func(events []game.Event) {
		res.Events = append(res.Events, events...)
		if opts.realtime && !opts.asJSON {
			for _, e := range events {
				printEvent(out, e)
			}
		}
	}

	driverOpts := []game.DriverOption{
		game.WithEventSink(sink),
		game.WithStrictInvariants(opts.strict),
		game.WithLogger(observability.GetLogger()),
	}
	if opts.realtime {
		interval := time.Duration(opts.frameMs) * time.Millisecond
		driverOpts = append(driverOpts, game.WithScheduler(game.FrameScheduler{Interval: interval}))
	}
	d := game.NewDriver(initial, driverOpts...)

	done := make(chan game.GameState, 1)
	if !d.RequestShot(shot.BallID, shot.Velocity(), func(final game.GameState) { done <- final }) {
		return fmt.Errorf("ball %d: %w", shot.BallID, game.ErrShotRejected)
	}

	select {
	case res.Final = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	res.Ticks = d.Ticks()

	if opts.asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !opts.realtime {
		for _, e := range res.Events {
			printEvent(out, e)
		}
	}
	printSummary(out, res)
	return nil
}

func printEvent(out io.Writer, e game.Event) {
	switch e.Kind {
	case game.EventHit:
		fmt.Fprintf(out, "tick %5d  hit     ball %d -> %d  speed %.2f\n", e.Tick, e.BallID, e.TargetID, e.Speed)
	case game.EventWall:
		fmt.Fprintf(out, "tick %5d  wall    ball %d\n", e.Tick, e.BallID)
	case game.EventSplash:
		fmt.Fprintf(out, "tick %5d  splash  ball %d (%s)\n", e.Tick, e.BallID, e.Faction)
	case game.EventWin:
		fmt.Fprintf(out, "tick %5d  win     faction %s\n", e.Tick, e.Faction)
	}
}

func printSummary(out io.Writer, res summary) {
	fmt.Fprintf(out, "ticks: %d  hits: %d  walls: %d  splashes: %d\n",
		res.Ticks,
		game.CountEvents(res.Events, game.EventHit),
		game.CountEvents(res.Events, game.EventWall),
		game.CountEvents(res.Events, game.EventSplash))
	fmt.Fprintf(out, "score A %d  B %d  status %s", res.Final.Scores.A, res.Final.Scores.B, res.Final.Status)
	if res.Final.Winner != nil {
		fmt.Fprintf(out, "  winner %s", *res.Final.Winner)
	}
	fmt.Fprintln(out)
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
