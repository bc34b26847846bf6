package treadmill

import (
	"context"
	"fmt"
	"time"
)

// RunState is the treadmill's belt state as reported by the machine.
type RunState int

const (
	RunStateUnknown RunState = iota
	RunStateStopped
	RunStateStarting // belt spinning up to target
	RunStateRunning
	RunStatePaused
)

func (s RunState) String() string {
	switch s {
	case RunStateStopped:
		return "stopped"
	case RunStateStarting:
		return "starting"
	case RunStateRunning:
		return "running"
	case RunStatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Controller is the write side of a treadmill: target commands and belt
// state. Implemented by the FTMS bluetooth transport and the simulator.
type Controller interface {
	// Start spins the belt up. Safe to call when already running.
	Start() error
	// Stop halts the belt.
	Stop() error
	// SetTargetSpeed commands the belt speed in kph.
	SetTargetSpeed(kph float64) error
	// SetTargetIncline commands the deck incline in percent.
	SetTargetIncline(pct float64) error
	// RunState reports the last known belt state.
	RunState() RunState
}

const (
	beltPollPeriod  = 100 * time.Millisecond
	beltWaitTimeout = 5 * time.Second
)

// WaitForBeltRunning polls the controller until the belt reports running, the
// context is cancelled, or the timeout expires. Used after Start before
// handing control to the workout engine so the first telemetry samples come
// from a moving belt.
func WaitForBeltRunning(ctx context.Context, c Controller) error {
	deadline := time.NewTimer(beltWaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(beltPollPeriod)
	defer ticker.Stop()

	for {
		if c.RunState() == RunStateRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("treadmill belt did not start within %s (state: %s)", beltWaitTimeout, c.RunState())
		case <-ticker.C:
		}
	}
}
