package treadmill

import (
	"log"
	"sync"
	"time"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/go_func_utils"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// Telemetry sink for the simulator; satisfied by *workout.Engine.
type telemetrySink interface {
	UpdateSpeed(kph float64)
	UpdateIncline(pct float64)
	UpdateDistance(km float64)
	UpdateElapsedTime(seconds float64)
	UpdateHeartRate(bpm int)
}

var _ telemetrySink = (*workout.Engine)(nil)

// Simulated implements Controller without hardware: belt speed and incline
// ramp toward their targets and a synthetic heart rate follows the effort.
// One notification tick per second feeds the engine, mirroring how a real
// machine reports over FTMS.
type Simulated struct {
	logger *log.Logger
	sink   telemetrySink

	mu            sync.Mutex
	state         RunState
	targetSpeed   float64
	targetIncline float64
	speedKph      float64
	inclinePct    float64
	distanceKm    float64
	elapsedSec    float64
	heartRate     float64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

const (
	simTickPeriod   = 1 * time.Second
	simSpeedRampKph = 1.0 // max belt change per tick
	simInclineRamp  = 0.5
	simRestingHR    = 72.0
)

// NewSimulated creates a Simulated treadmill feeding the given sink.
func NewSimulated(sink telemetrySink, logger *log.Logger) *Simulated {
	if sink == nil {
		panic("Simulated: sink cannot be nil")
	}
	if logger == nil {
		panic("Simulated: logger cannot be nil")
	}
	return &Simulated{
		logger:    logger,
		sink:      sink,
		state:     RunStateStopped,
		heartRate: simRestingHR,
	}
}

// Start spins up the belt and the notification ticker.
func (t *Simulated) Start() error {
	t.mu.Lock()
	if t.state == RunStateRunning || t.state == RunStateStarting {
		t.mu.Unlock()
		return nil
	}
	t.state = RunStateStarting
	t.stopChan = make(chan struct{})
	stop := t.stopChan
	t.mu.Unlock()

	t.logger.Printf("Simulated: belt starting")
	t.wg.Add(1)
	go_func_utils.SafeGo(t.logger, func() {
		defer t.wg.Done()
		ticker := time.NewTicker(simTickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.tick()
			}
		}
	})
	return nil
}

// Stop halts the belt and the ticker.
func (t *Simulated) Stop() error {
	t.mu.Lock()
	if t.state == RunStateStopped {
		t.mu.Unlock()
		return nil
	}
	t.state = RunStateStopped
	t.speedKph = 0
	stop := t.stopChan
	t.stopChan = nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	t.wg.Wait()
	t.logger.Printf("Simulated: belt stopped")
	return nil
}

// SetTargetSpeed commands the belt speed in kph.
func (t *Simulated) SetTargetSpeed(kph float64) error {
	t.mu.Lock()
	t.targetSpeed = kph
	t.mu.Unlock()
	t.logger.Printf("Simulated: target speed %.1f kph", kph)
	return nil
}

// SetTargetIncline commands the deck incline in percent.
func (t *Simulated) SetTargetIncline(pct float64) error {
	t.mu.Lock()
	t.targetIncline = pct
	t.mu.Unlock()
	t.logger.Printf("Simulated: target incline %.1f%%", pct)
	return nil
}

// RunState reports the belt state.
func (t *Simulated) RunState() RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// tick advances the simulation by one period and pushes telemetry.
func (t *Simulated) tick() {
	t.mu.Lock()
	t.speedKph = rampToward(t.speedKph, t.targetSpeed, simSpeedRampKph)
	t.inclinePct = rampToward(t.inclinePct, t.targetIncline, simInclineRamp)
	if t.state == RunStateStarting && t.speedKph > 0 {
		t.state = RunStateRunning
	}
	t.elapsedSec += simTickPeriod.Seconds()
	t.distanceKm += t.speedKph / 3600.0 * simTickPeriod.Seconds()

	// HR drifts toward an effort-dependent steady state. Crude, but it
	// exercises the trend logic the same way a real strap would.
	effortHR := simRestingHR + t.speedKph*7.0 + t.inclinePct*3.0
	t.heartRate = rampToward(t.heartRate, effortHR, 2.0)

	speed := t.speedKph
	incline := t.inclinePct
	distance := t.distanceKm
	elapsed := t.elapsedSec
	hr := int(t.heartRate)
	t.mu.Unlock()

	t.sink.UpdateSpeed(speed)
	t.sink.UpdateIncline(incline)
	t.sink.UpdateDistance(distance)
	t.sink.UpdateElapsedTime(elapsed)
	t.sink.UpdateHeartRate(hr)
}

func rampToward(current, target, maxStep float64) float64 {
	diff := target - current
	if diff > maxStep {
		return current + maxStep
	}
	if diff < -maxStep {
		return current - maxStep
	}
	return target
}
