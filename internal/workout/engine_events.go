package workout

// Event is the sealed event sum type published on the engine's event stream.
// Consumers must handle every variant.
type Event interface {
	workoutEvent()
}

// StepStarted is emitted when a step becomes current, with the effective
// (coefficient-adjusted) targets the consumer should apply to the treadmill.
type StepStarted struct {
	Index      int
	Step       ExecutionStep
	PaceKph    float64
	InclinePct float64
}

// StepCompleted is emitted when a step's duration or early-end condition
// is met, before the next StepStarted.
type StepCompleted struct {
	Index int
	Step  ExecutionStep
}

// WorkoutResumed is emitted on resume with the effective targets recomputed
// from the current coefficients.
type WorkoutResumed struct {
	PaceKph    float64
	InclinePct float64
}

// SpeedAdjusted is emitted when the controller moved the speed target.
type SpeedAdjusted struct {
	NewSpeedKph float64
	Urgent      bool
}

// InclineAdjusted is emitted when the controller moved the incline target.
type InclineAdjusted struct {
	NewInclinePct float64
	Urgent        bool
}

// HrOutOfRange is emitted when heart rate leaves the current step's range.
type HrOutOfRange struct {
	BPM int
}

// HrBackInRange is emitted when heart rate re-enters the range.
type HrBackInRange struct {
	BPM int
}

// HrEarlyEndTriggered is emitted when an EarlyEndHRRange step ends because
// heart rate reached the target range.
type HrEarlyEndTriggered struct {
	BPM int
}

// WorkoutPlanFinished is emitted after the last step completes. The engine
// keeps running (auto-cooldown); only an explicit stop completes the workout.
type WorkoutPlanFinished struct{}

// WorkoutCompleted is emitted on stop with the final summary.
type WorkoutCompleted struct {
	Summary WorkoutSummary
}

// EffortAdjusted is emitted when the user manually nudges the effort up or
// down, with the resulting effective targets.
type EffortAdjusted struct {
	PaceKph    float64
	InclinePct float64
}

// Warning reports a recoverable oddity (e.g. a missing warmup template).
type Warning struct {
	Message string
}

// Error reports a failure surfaced to consumers instead of propagating as a
// fault across the engine boundary.
type Error struct {
	Message string
}

func (StepStarted) workoutEvent()         {}
func (StepCompleted) workoutEvent()       {}
func (WorkoutResumed) workoutEvent()      {}
func (SpeedAdjusted) workoutEvent()       {}
func (InclineAdjusted) workoutEvent()     {}
func (HrOutOfRange) workoutEvent()        {}
func (HrBackInRange) workoutEvent()       {}
func (HrEarlyEndTriggered) workoutEvent() {}
func (WorkoutPlanFinished) workoutEvent() {}
func (WorkoutCompleted) workoutEvent()    {}
func (EffortAdjusted) workoutEvent()      {}
func (Warning) workoutEvent()             {}
func (Error) workoutEvent()               {}
