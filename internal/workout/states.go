package workout

// ExecutionState is the sealed state sum type published on the engine's
// state stream. Exactly one of Idle, Running, Paused or Completed.
// No field is mutated outside an engine transition; values on the stream are
// snapshots.
type ExecutionState interface {
	executionState()
}

// Idle means no workout is executing. Loaded indicates whether a plan has
// been loaded and is ready to start.
type Idle struct {
	Loaded      bool
	WorkoutID   int64
	WorkoutName string
}

// Running carries the live positional fields of an executing workout.
type Running struct {
	WorkoutID        int64
	StepIndex        int
	Step             ExecutionStep
	Phase            Phase
	StepElapsedMs    int64
	WorkoutElapsedMs int64
	StepDistanceM    float64
	WorkoutDistanceM float64
	PaceKph          float64 // current effective (coefficient-adjusted) target
	InclinePct       float64
	HrAdjustActive   bool
	CountdownSec     int // seconds to next step, -1 when unknown
	PlanFinished     bool
}

// Paused carries the frozen positional fields; no live pace/incline.
type Paused struct {
	WorkoutID        int64
	StepIndex        int
	Step             ExecutionStep
	Phase            Phase
	StepElapsedMs    int64
	WorkoutElapsedMs int64
	StepDistanceM    float64
	WorkoutDistanceM float64
}

// Completed carries the final totals.
type Completed struct {
	Summary WorkoutSummary
}

func (Idle) executionState()      {}
func (Running) executionState()   {}
func (Paused) executionState()    {}
func (Completed) executionState() {}

// WorkoutSummary is computed on stop.
type WorkoutSummary struct {
	WorkoutID      int64
	Name           string
	StepsCompleted int
	TotalSteps     int
	ElapsedMs      int64
	DistanceM      float64
}
