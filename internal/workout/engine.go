package workout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/events"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/telemetry"
)

// Repository is the engine's view of workout storage.
type Repository interface {
	// GetWorkout returns the plan with its steps, or ErrWorkoutNotFound.
	GetWorkout(ctx context.Context, id int64) (*WorkoutPlan, error)
	// SystemWorkoutByType returns the template tagged with the given system
	// type, creating it if absent.
	SystemWorkoutByType(ctx context.Context, systemType string) (*WorkoutPlan, error)
}

// ErrWorkoutNotFound is returned when the requested workout does not exist.
var ErrWorkoutNotFound = errors.New("workout not found")

// ErrWorkoutHasNoSteps is returned when a workout exists but has no steps.
var ErrWorkoutHasNoSteps = errors.New("workout has no steps")

// EngineConfig carries the user profile and controller tuning.
type EngineConfig struct {
	LTHR       int // lactate threshold heart rate, bpm
	FTP        int // functional threshold power, watts
	Controller ControllerConfig
}

// DefaultEngineConfig returns a usable profile for when config is absent.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LTHR:       165,
		FTP:        250,
		Controller: DefaultControllerConfig(),
	}
}

type engineStatus int

const (
	statusIdle engineStatus = iota
	statusRunning
	statusPaused
	statusCompleted
)

// Engine owns the workout execution state machine. All transitions and
// telemetry ingestion are serialized under one mutex; external I/O (the
// repository) is awaited before state is mutated, and listeners are notified
// outside the lock.
//
// The engine is driven entirely by its callers: telemetry updates advance
// steps and feed the adjustment controller, and every resulting target change
// is surfaced as an event - nothing is applied to the treadmill from here.
type Engine struct {
	mu     sync.Mutex
	logger *log.Logger
	repo   Repository
	cfg    EngineConfig

	controller *AdjustmentController

	status engineStatus
	loaded bool

	plan      *WorkoutPlan
	execSteps []ExecutionStep
	phases    PhaseCounts

	currentIdx       int
	stepElapsedMs    int64
	workoutElapsedMs int64
	stepDistanceM    float64
	workoutDistanceM float64
	stepsCompleted   int
	planFinished     bool

	// Live telemetry (Running only)
	currentSpeedKph    float64
	currentInclinePct  float64
	lastDeviceElapsed  int64   // device elapsed ms, -1 until first sample
	lastDeviceDistance float64 // device total meters, -1 until first sample

	// Adjustment coefficients, owned here, not by the controller.
	// Global pair for ScopeAllSteps; per-identity maps for ScopeOneStep.
	speedCoeff       float64
	inclineCoeff     float64
	stepSpeedCoeff   map[string]float64
	stepInclineCoeff map[string]float64

	hrHistory    *telemetry.History
	powerHistory *telemetry.History
	lastHR       int
	hrInRange    bool
	hrRangeKnown bool

	stateEvent   *events.Broadcaster[ExecutionState]
	workoutEvent *events.Broadcaster[Event]
}

// NewEngine creates an Engine
func NewEngine(repo Repository, cfg EngineConfig, logger *log.Logger) *Engine {
	if repo == nil {
		panic("Engine: repo cannot be nil")
	}
	if logger == nil {
		panic("Engine: logger cannot be nil")
	}
	e := &Engine{
		logger:       logger,
		repo:         repo,
		cfg:          cfg,
		controller:   NewAdjustmentController(cfg.Controller, logger),
		stateEvent:   events.NewBroadcaster[ExecutionState](true),
		workoutEvent: events.NewBroadcaster[Event](false),
	}
	e.resetLocked()
	e.stateEvent.Publish(Idle{})
	return e
}

// SubscribeState registers a channel for state snapshots. The latest state is
// replayed to new subscribers immediately.
func (e *Engine) SubscribeState(ch chan<- ExecutionState) func() {
	return e.stateEvent.Subscribe(ch)
}

// SubscribeEvents registers a channel for workout events. Events are not
// replayed; only live ones are delivered.
func (e *Engine) SubscribeEvents(ch chan<- Event) func() {
	return e.workoutEvent.Subscribe(ch)
}

// SubscribeEventsFunc registers a callback for workout events.
func (e *Engine) SubscribeEventsFunc(fn func(Event)) func() {
	return e.workoutEvent.SubscribeFunc(fn)
}

// publish notifies listeners outside the lock. state may be nil.
func (e *Engine) publish(state ExecutionState, evs []Event) {
	for _, ev := range evs {
		e.workoutEvent.Publish(ev)
	}
	if state != nil {
		e.stateEvent.Publish(state)
	}
}

// resetLocked returns the engine to the unloaded idle state.
// Must be called with mu held (or before the engine is shared).
func (e *Engine) resetLocked() {
	e.status = statusIdle
	e.loaded = false
	e.plan = nil
	e.execSteps = nil
	e.phases = PhaseCounts{}
	e.currentIdx = 0
	e.stepElapsedMs = 0
	e.workoutElapsedMs = 0
	e.stepDistanceM = 0
	e.workoutDistanceM = 0
	e.stepsCompleted = 0
	e.planFinished = false
	e.currentSpeedKph = 0
	e.currentInclinePct = 0
	e.lastDeviceElapsed = -1
	e.lastDeviceDistance = -1
	e.speedCoeff = 1.0
	e.inclineCoeff = 1.0
	e.stepSpeedCoeff = make(map[string]float64)
	e.stepInclineCoeff = make(map[string]float64)
	e.hrHistory = telemetry.NewHistory(0)
	e.powerHistory = telemetry.NewHistory(0)
	e.lastHR = 0
	e.hrInRange = false
	e.hrRangeKnown = false
}

// LoadWorkout fetches the plan, stitches default warmup/cooldown templates
// when the plan asks for them, and builds the flat execution sequence.
// On failure the existing engine state is left untouched.
// A load requested while Completed implicitly resets first.
func (e *Engine) LoadWorkout(ctx context.Context, workoutID int64) error {
	plan, err := e.repo.GetWorkout(ctx, workoutID)
	if err != nil {
		e.logger.Printf("Engine: load workout %d failed: %v", workoutID, err)
		return fmt.Errorf("loading workout %d: %w", workoutID, err)
	}
	if len(plan.Steps) == 0 {
		e.logger.Printf("Engine: workout %d has no steps", workoutID)
		return fmt.Errorf("loading workout %d: %w", workoutID, ErrWorkoutHasNoSteps)
	}

	main := FlattenSteps(plan.Steps)
	if len(main) == 0 {
		return fmt.Errorf("loading workout %d: %w", workoutID, ErrWorkoutHasNoSteps)
	}

	var warmup, cooldown []ExecutionStep
	var warnings []Event
	if plan.UseDefaultWarmup {
		warmup, err = e.loadTemplate(ctx, SystemTypeWarmup)
		if err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("warmup template unavailable: %v", err)})
		}
	}
	if plan.UseDefaultCooldown {
		cooldown, err = e.loadTemplate(ctx, SystemTypeCooldown)
		if err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("cooldown template unavailable: %v", err)})
		}
	}

	flat, phases := Stitch(warmup, main, cooldown)

	e.mu.Lock()
	if e.status == statusCompleted {
		e.resetLocked()
	}
	if e.status != statusIdle {
		e.mu.Unlock()
		return fmt.Errorf("loading workout %d: engine is not idle", workoutID)
	}
	e.resetLocked()
	e.plan = plan
	e.execSteps = flat
	e.phases = phases
	e.loaded = true
	state := Idle{Loaded: true, WorkoutID: plan.ID, WorkoutName: plan.Name}
	e.mu.Unlock()

	e.logger.Printf("Engine: workout '%s' loaded (%d steps: %d warmup, %d main, %d cooldown)",
		plan.Name, phases.Total(), phases.Warmup, phases.Main, phases.Cooldown)
	e.publish(state, warnings)
	return nil
}

// loadTemplate fetches a system template and flattens its steps.
func (e *Engine) loadTemplate(ctx context.Context, systemType string) ([]ExecutionStep, error) {
	tmpl, err := e.repo.SystemWorkoutByType(ctx, systemType)
	if err != nil {
		return nil, err
	}
	return FlattenSteps(tmpl.Steps), nil
}

// Start begins execution at step 0 with zeroed timers.
func (e *Engine) Start() error {
	e.mu.Lock()
	if !e.loaded || e.status != statusIdle {
		e.mu.Unlock()
		e.logger.Printf("Engine: cannot start - no workout loaded or not idle")
		return errors.New("engine: no workout loaded")
	}
	e.status = statusRunning
	e.currentIdx = 0
	e.stepElapsedMs = 0
	e.workoutElapsedMs = 0
	e.stepDistanceM = 0
	e.workoutDistanceM = 0
	e.stepsCompleted = 0
	e.planFinished = false
	e.lastDeviceElapsed = -1
	e.lastDeviceDistance = -1
	e.controller.OnStepStarted(0)
	e.hrRangeKnown = false

	step := e.execSteps[0]
	pace, incline := e.effectiveTargetsLocked(step)
	evs := []Event{StepStarted{Index: 0, Step: step, PaceKph: pace, InclinePct: incline}}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: workout started at step 0 (%s)", step.DisplayName)
	e.publish(state, evs)
	return nil
}

// Pause freezes the timers and coefficient evaluation.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.status != statusRunning {
		e.mu.Unlock()
		e.logger.Printf("Engine: cannot pause - not running")
		return
	}
	e.status = statusPaused
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: workout paused")
	e.publish(state, nil)
}

// Resume re-enters Running, resets the controller's settling timer so HR
// that decayed during the pause does not trigger an immediate adjustment,
// and re-announces the effective targets.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.status != statusPaused {
		e.mu.Unlock()
		e.logger.Printf("Engine: cannot resume - not paused")
		return
	}
	e.status = statusRunning
	e.lastDeviceElapsed = -1
	e.lastDeviceDistance = -1
	e.controller.OnWorkoutResumed(e.workoutElapsedMs)
	idx := e.currentIdx
	pace, incline := e.effectiveTargetsLocked(e.execSteps[idx])
	evs := []Event{WorkoutResumed{PaceKph: pace, InclinePct: incline}}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: workout resumed at step %d", idx)
	e.publish(state, evs)
}

// Stop completes the workout and emits the summary.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.status != statusRunning && e.status != statusPaused {
		e.mu.Unlock()
		e.logger.Printf("Engine: cannot stop - no workout in progress")
		return
	}
	summary := WorkoutSummary{
		WorkoutID:      e.plan.ID,
		Name:           e.plan.Name,
		StepsCompleted: e.stepsCompleted,
		TotalSteps:     len(e.execSteps),
		ElapsedMs:      e.workoutElapsedMs,
		DistanceM:      e.workoutDistanceM,
	}
	e.status = statusCompleted
	evs := []Event{WorkoutCompleted{Summary: summary}}
	state := Completed{Summary: summary}
	e.mu.Unlock()

	e.logger.Printf("Engine: workout completed (%d/%d steps)", summary.StepsCompleted, summary.TotalSteps)
	e.publish(state, evs)
}

// Reset discards the loaded plan and returns to the unloaded idle state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: reset")
	e.publish(Idle{}, nil)
}

// SkipForward moves to the next step without leaving Running/Paused.
// Skipping past the last step is a no-op.
func (e *Engine) SkipForward() {
	e.skipTo(func(idx int) int { return idx + 1 })
}

// SkipBack moves to the previous step without leaving Running/Paused.
// Skipping before the first step is a no-op.
func (e *Engine) SkipBack() {
	e.skipTo(func(idx int) int { return idx - 1 })
}

func (e *Engine) skipTo(next func(int) int) {
	e.mu.Lock()
	if e.status != statusRunning && e.status != statusPaused {
		e.mu.Unlock()
		return
	}
	newIdx := next(e.currentIdx)
	if newIdx < 0 || newIdx >= len(e.execSteps) {
		e.mu.Unlock()
		return
	}
	e.currentIdx = newIdx
	e.stepElapsedMs = 0
	e.stepDistanceM = 0
	e.planFinished = false
	e.hrRangeKnown = false
	e.controller.OnStepStarted(e.workoutElapsedMs)

	step := e.execSteps[newIdx]
	pace, incline := e.effectiveTargetsLocked(step)
	evs := []Event{StepStarted{Index: newIdx, Step: step, PaceKph: pace, InclinePct: incline}}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: skipped to step %d (%s)", newIdx, step.DisplayName)
	e.publish(state, evs)
}

// AdjustEffort scales the speed coefficient by deltaPct percent (manual
// user nudge) and announces the resulting effective targets.
func (e *Engine) AdjustEffort(deltaPct float64) {
	e.mu.Lock()
	if e.status != statusRunning && e.status != statusPaused {
		e.mu.Unlock()
		return
	}
	step := e.execSteps[e.currentIdx]
	factor := 1.0 + deltaPct/100.0
	if factor <= 0 {
		e.mu.Unlock()
		return
	}
	e.setSpeedCoeffLocked(step, e.speedCoeffLocked(step)*factor)
	pace, incline := e.effectiveTargetsLocked(step)
	evs := []Event{EffortAdjusted{PaceKph: pace, InclinePct: incline}}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: effort adjusted %+.0f%% -> %.1f kph", deltaPct, pace)
	e.publish(state, evs)
}

// --- Queries ---

// IsWorkoutLoaded reports whether a plan is loaded.
func (e *Engine) IsWorkoutLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// GetCurrentWorkout returns the loaded plan, or nil.
func (e *Engine) GetCurrentWorkout() *WorkoutPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan
}

// GetExecutionSteps returns a copy of the flat execution sequence.
func (e *Engine) GetExecutionSteps() []ExecutionStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]ExecutionStep, len(e.execSteps))
	copy(result, e.execSteps)
	return result
}

// GetPhaseCounts returns the stitched phase boundary counts.
func (e *Engine) GetPhaseCounts() PhaseCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phases
}

// GetOriginalSteps returns the loaded plan's hierarchical steps (for export).
func (e *Engine) GetOriginalSteps() []Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plan == nil {
		return nil
	}
	result := make([]Step, len(e.plan.Steps))
	copy(result, e.plan.Steps)
	return result
}

// GetSpeedAdjustmentCoefficient returns the current step's speed coefficient,
// 1.0 when nothing is executing.
func (e *Engine) GetSpeedAdjustmentCoefficient() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != statusRunning && e.status != statusPaused {
		return 1.0
	}
	return e.speedCoeffLocked(e.execSteps[e.currentIdx])
}

// GetInclineAdjustmentCoefficient returns the current step's incline
// coefficient, 1.0 when nothing is executing.
func (e *Engine) GetInclineAdjustmentCoefficient() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != statusRunning && e.status != statusPaused {
		return 1.0
	}
	return e.inclineCoeffLocked(e.execSteps[e.currentIdx])
}

// --- Coefficients ---

func (e *Engine) scopeLocked() AdjustmentScope {
	if e.plan == nil {
		return ScopeAllSteps
	}
	return e.plan.AdjustScope
}

func (e *Engine) speedCoeffLocked(step ExecutionStep) float64 {
	if e.scopeLocked() == ScopeOneStep {
		if c, ok := e.stepSpeedCoeff[step.IdentityKey]; ok {
			return c
		}
		return 1.0
	}
	return e.speedCoeff
}

func (e *Engine) inclineCoeffLocked(step ExecutionStep) float64 {
	if e.scopeLocked() == ScopeOneStep {
		if c, ok := e.stepInclineCoeff[step.IdentityKey]; ok {
			return c
		}
		return 1.0
	}
	return e.inclineCoeff
}

func (e *Engine) setSpeedCoeffLocked(step ExecutionStep, coeff float64) {
	if e.scopeLocked() == ScopeOneStep {
		e.stepSpeedCoeff[step.IdentityKey] = coeff
		return
	}
	e.speedCoeff = coeff
}

func (e *Engine) setInclineCoeffLocked(step ExecutionStep, coeff float64) {
	if e.scopeLocked() == ScopeOneStep {
		e.stepInclineCoeff[step.IdentityKey] = coeff
		return
	}
	e.inclineCoeff = coeff
}

// effectiveTargetsLocked applies the scoped coefficients to the step's base
// targets, clamped to the configured global bounds.
func (e *Engine) effectiveTargetsLocked(step ExecutionStep) (paceKph, inclinePct float64) {
	cfg := e.cfg.Controller
	paceKph = step.Step.PaceKph * e.speedCoeffLocked(step)
	if paceKph > 0 {
		paceKph = minF(maxF(paceKph, cfg.MinSpeedKph), cfg.MaxSpeedKph)
	}
	inclinePct = step.Step.InclinePct * e.inclineCoeffLocked(step)
	inclinePct = minF(maxF(inclinePct, cfg.MinInclinePct), cfg.MaxInclinePct)
	return paceKph, inclinePct
}

// --- State building ---

// buildStateLocked snapshots the current state. Must be called with mu held.
func (e *Engine) buildStateLocked() ExecutionState {
	switch e.status {
	case statusRunning:
		step := e.execSteps[e.currentIdx]
		pace, incline := e.effectiveTargetsLocked(step)
		return Running{
			WorkoutID:        e.plan.ID,
			StepIndex:        e.currentIdx,
			Step:             step,
			Phase:            e.phases.PhaseAt(e.currentIdx),
			StepElapsedMs:    e.stepElapsedMs,
			WorkoutElapsedMs: e.workoutElapsedMs,
			StepDistanceM:    e.stepDistanceM,
			WorkoutDistanceM: e.workoutDistanceM,
			PaceKph:          pace,
			InclinePct:       incline,
			HrAdjustActive:   step.Step.AdjustMode == AdjustModeHR && step.Step.HasAutoAdjustTarget(),
			CountdownSec:     e.countdownLocked(step),
			PlanFinished:     e.planFinished,
		}
	case statusPaused:
		step := e.execSteps[e.currentIdx]
		return Paused{
			WorkoutID:        e.plan.ID,
			StepIndex:        e.currentIdx,
			Step:             step,
			Phase:            e.phases.PhaseAt(e.currentIdx),
			StepElapsedMs:    e.stepElapsedMs,
			WorkoutElapsedMs: e.workoutElapsedMs,
			StepDistanceM:    e.stepDistanceM,
			WorkoutDistanceM: e.workoutDistanceM,
		}
	case statusCompleted:
		return Completed{Summary: WorkoutSummary{
			WorkoutID:      e.plan.ID,
			Name:           e.plan.Name,
			StepsCompleted: e.stepsCompleted,
			TotalSteps:     len(e.execSteps),
			ElapsedMs:      e.workoutElapsedMs,
			DistanceM:      e.workoutDistanceM,
		}}
	default:
		state := Idle{Loaded: e.loaded}
		if e.plan != nil {
			state.WorkoutID = e.plan.ID
			state.WorkoutName = e.plan.Name
		}
		return state
	}
}

// countdownLocked estimates seconds until the current step completes.
// Distance steps need a positive belt speed for the conversion; -1 when
// unknown.
func (e *Engine) countdownLocked(step ExecutionStep) int {
	if e.planFinished {
		return -1
	}
	if step.IsTimed() {
		remaining := int64(step.Step.DurationSeconds)*1000 - e.stepElapsedMs
		if remaining < 0 {
			remaining = 0
		}
		return int(remaining / 1000)
	}
	remainingM := step.Step.DurationMeters - e.stepDistanceM
	if remainingM <= 0 {
		return 0
	}
	if e.currentSpeedKph <= 0 {
		return -1
	}
	return int(remainingM / (e.currentSpeedKph / 3.6))
}

// resolveRangeLocked converts a step's percent-of-threshold target range to
// absolute units for the configured metric.
func (e *Engine) resolveRangeLocked(step ExecutionStep) (min, max float64, ok bool) {
	s := step.Step
	if s.TargetMaxPct <= 0 {
		return 0, 0, false
	}
	switch s.AdjustMode {
	case AdjustModeHR:
		return s.TargetMinPct / 100.0 * float64(e.cfg.LTHR), s.TargetMaxPct / 100.0 * float64(e.cfg.LTHR), true
	case AdjustModePower:
		return s.TargetMinPct / 100.0 * float64(e.cfg.FTP), s.TargetMaxPct / 100.0 * float64(e.cfg.FTP), true
	default:
		// HR range may still gate an early end without auto-adjustment
		if s.EarlyEnd == EarlyEndHRRange {
			return s.TargetMinPct / 100.0 * float64(e.cfg.LTHR), s.TargetMaxPct / 100.0 * float64(e.cfg.LTHR), true
		}
		return 0, 0, false
	}
}
