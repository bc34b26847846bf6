package workout

import (
	"context"
	"time"
)

// PersistedState is the crash-recovery snapshot of an in-progress workout.
// Serialized by the caller (JSON/DB); everything here is plain data.
type PersistedState struct {
	WorkoutID        int64            `json:"workout_id"`
	StepIndex        int              `json:"step_index"`
	StepElapsedMs    int64            `json:"step_elapsed_ms"`
	WorkoutElapsedMs int64            `json:"workout_elapsed_ms"`
	StepDistanceM    float64          `json:"step_distance_m"`
	WorkoutDistanceM float64          `json:"workout_distance_m"`
	StepsCompleted   int              `json:"steps_completed"`
	PlanFinished     bool             `json:"plan_finished"`
	IsPaused         bool             `json:"is_paused"`
	SpeedCoeff       float64          `json:"speed_coeff"`
	InclineCoeff     float64          `json:"incline_coeff"`
	SavedAtUnixMs    int64            `json:"saved_at_unix_ms"`
	Controller       ControllerTiming `json:"controller"`
}

// ExportPersistenceState returns a snapshot of the in-progress execution, or
// nil when there is nothing worth persisting (Idle, Completed). Absence is
// not an error.
func (e *Engine) ExportPersistenceState() *PersistedState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != statusRunning && e.status != statusPaused {
		return nil
	}
	return &PersistedState{
		WorkoutID:        e.plan.ID,
		StepIndex:        e.currentIdx,
		StepElapsedMs:    e.stepElapsedMs,
		WorkoutElapsedMs: e.workoutElapsedMs,
		StepDistanceM:    e.stepDistanceM,
		WorkoutDistanceM: e.workoutDistanceM,
		StepsCompleted:   e.stepsCompleted,
		PlanFinished:     e.planFinished,
		IsPaused:         e.status == statusPaused,
		SpeedCoeff:       e.speedCoeff,
		InclineCoeff:     e.inclineCoeff,
		SavedAtUnixMs:    time.Now().UnixMilli(),
		Controller:       e.controller.TimingSnapshot(),
	}
}

// RestoreFromPersistedState re-loads the referenced workout (re-running the
// load/stitch path) and re-enters Paused at the persisted position. The
// caller resumes once the physical treadmill is confirmed ready.
//
// Elapsed counters are taken verbatim from the snapshot: the wall-clock gap
// since SavedAtUnixMs is dead time, not workout time, and the telemetry
// baselines re-anchor on the first samples after resume. Fails gracefully
// (error return, engine state unchanged) if the workout no longer exists.
func (e *Engine) RestoreFromPersistedState(ctx context.Context, st *PersistedState, isPaused bool) error {
	if err := e.LoadWorkout(ctx, st.WorkoutID); err != nil {
		e.logger.Printf("Engine: restore failed - %v", err)
		return err
	}

	e.mu.Lock()
	idx := st.StepIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(e.execSteps) {
		idx = len(e.execSteps) - 1
	}
	e.status = statusPaused
	e.currentIdx = idx
	e.stepElapsedMs = st.StepElapsedMs
	e.workoutElapsedMs = st.WorkoutElapsedMs
	e.stepDistanceM = st.StepDistanceM
	e.workoutDistanceM = st.WorkoutDistanceM
	e.stepsCompleted = st.StepsCompleted
	e.planFinished = st.PlanFinished
	if st.SpeedCoeff > 0 {
		e.speedCoeff = st.SpeedCoeff
	}
	if st.InclineCoeff > 0 {
		e.inclineCoeff = st.InclineCoeff
	}
	e.lastDeviceElapsed = -1
	e.lastDeviceDistance = -1
	e.controller.RestoreTiming(st.Controller)
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.logger.Printf("Engine: restored workout %d at step %d (paused=%v)", st.WorkoutID, idx, isPaused)
	e.publish(state, nil)

	if !isPaused {
		// Snapshot was taken while running; the caller still confirms the
		// treadmill before resuming, so we stay paused either way.
		e.logger.Printf("Engine: awaiting explicit resume after restore")
	}
	return nil
}
