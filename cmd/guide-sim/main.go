// guide-sim drives the pedestrian and robot loops against simulated fixes
// and prints what each would say or send.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"

	"github.com/teslashibe/go-guide/internal/log"
	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/narration"
	"github.com/teslashibe/go-guide/pkg/route"
	"github.com/teslashibe/go-guide/pkg/sim"
	"github.com/teslashibe/go-guide/pkg/speech"
)

var start = direction.Point{Lat: 7.2936, Lng: 80.6428}

func main() {
	mode := flag.String("mode", "both", "pedestrian, robot or both")
	period := flag.Duration("period", 200*time.Millisecond, "tick period for both loops")
	distance := flag.Float64("distance", 300, "meters to the destination")
	bearing := flag.Float64("bearing", 45, "bearing to the destination in degrees")
	steps := flag.Int("steps", 4, "route instructions for the pedestrian")
	pace := flag.Float64("pace", 12, "meters walked per pedestrian tick")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	dest := direction.Offset(start, *distance, *bearing)
	fmt.Printf("start %s, destination %s (%.0f m)\n\n", start, dest, *distance)

	var err error
	if *mode == "pedestrian" || *mode == "both" {
		err = runPedestrian(ctx, dest, *period, *steps, *pace)
	}
	if err == nil && (*mode == "robot" || *mode == "both") {
		err = runRobot(ctx, dest, *period)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "guide-sim: %v\n", err)
		os.Exit(1)
	}
}

// scaled shrinks the announcement intervals by the same factor as the tick
// period so a simulated walk hears a realistic mix of messages.
func scaled(period time.Duration) guidance.Config {
	cfg := guidance.DefaultConfig()
	f := float64(period) / float64(control.DefaultPedestrianConfig().Period)
	scale := func(d time.Duration) time.Duration { return time.Duration(float64(d) * f) }
	cfg.NearInterval = scale(cfg.NearInterval)
	cfg.MidInterval = scale(cfg.MidInterval)
	cfg.FarInterval = scale(cfg.FarInterval)
	cfg.OffRouteRepeat = scale(cfg.OffRouteRepeat)
	return cfg
}

func runPedestrian(ctx context.Context, dest direction.Point, period time.Duration, steps int, pace float64) error {
	fmt.Println("== pedestrian ==")

	synth := speech.NewSimulated(time.Millisecond, log.Component("sim"))
	narr := narration.New(synth, narration.WithGap(0), narration.WithLogger(log.L()))
	narr.OnSpoken = func(u narration.Utterance, err error) {
		fmt.Printf("  says: %s\n", u.Text)
	}
	nctx, stopNarration := context.WithCancel(ctx)
	defer stopNarration()
	go narr.Run(nctx)

	r, err := route.FromInstructions(&start, dest, route.SampleInstructions(steps))
	if err != nil {
		return err
	}
	engine, err := guidance.New(scaled(period), guidance.WithClearer(narr), guidance.WithLogger(log.L()))
	if err != nil {
		return err
	}
	opening, err := engine.Start(ctx, r, &start, time.Now())
	if err != nil {
		return err
	}
	if err := narr.Enqueue(opening.Text); err != nil {
		log.L().Warn("opening announcement not queued", "error", err)
	}

	targets := make([]direction.Point, 0, r.Len())
	for _, wp := range r.Waypoints() {
		targets = append(targets, wp.Position)
	}
	walker := sim.NewWalker(start, pace, targets...)

	cfg := control.DefaultPedestrianConfig()
	cfg.Period = period
	loop, err := control.NewPedestrianLoop(walker, engine, narr, cfg, log.L())
	if err != nil {
		return err
	}
	loop.Run(ctx)

	// let the last utterances drain
	deadline := time.Now().Add(5 * time.Second)
	for (narr.Pending() > 0 || narr.Speaking()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("\nfinal state after %d fixes:\n", walker.Fixes())
	pretty.Println(engine.Snapshot())
	pretty.Println(loop.Stats())
	fmt.Println()
	return ctx.Err()
}

func runRobot(ctx context.Context, dest direction.Point, period time.Duration) error {
	fmt.Println("== robot ==")

	robot := sim.NewRobot(start, 180, 2, 15)
	cfg := control.DefaultRobotConfig()
	cfg.Period = period
	loop, err := control.NewRobotLoop(dest, robot, robot, robot, cfg, log.L())
	if err != nil {
		return err
	}

	var last direction.Command
	loop.OnCommand = func(cmd direction.Command, err error) {
		if cmd != last {
			st := loop.Status()
			fmt.Printf("  %-8s %6.1f m  heading %v\n", cmd, st.Distance, deref(st.Heading))
			last = cmd
		}
	}
	loop.Run(ctx)

	fmt.Printf("\nfinal state after %d commands:\n", len(robot.Commands()))
	pretty.Println(loop.Status())
	return ctx.Err()
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
