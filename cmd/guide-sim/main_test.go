package main

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
)

func TestRunPedestrian_Arrives(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dest := direction.Offset(start, 60, 45)
	if err := runPedestrian(ctx, dest, 20*time.Millisecond, 2, 12); err != nil {
		t.Fatalf("runPedestrian: %v", err)
	}
}

func TestRunRobot_Arrives(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dest := direction.Offset(start, 40, 45)
	if err := runRobot(ctx, dest, 10*time.Millisecond); err != nil {
		t.Fatalf("runRobot: %v", err)
	}
}

func TestScaled(t *testing.T) {
	cfg := scaled(20 * time.Millisecond)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("scaled config invalid: %v", err)
	}
	if cfg.NearInterval >= time.Second {
		t.Errorf("near interval not scaled: %v", cfg.NearInterval)
	}
}
