package workout

import "fmt"

// StepType classifies a plan step.
type StepType int

const (
	StepWarmup StepType = iota
	StepRun
	StepRecover
	StepRest
	StepCooldown
	StepRepeat
)

func (t StepType) String() string {
	switch t {
	case StepWarmup:
		return "Warmup"
	case StepRun:
		return "Run"
	case StepRecover:
		return "Recover"
	case StepRest:
		return "Rest"
	case StepCooldown:
		return "Cooldown"
	case StepRepeat:
		return "Repeat"
	default:
		return "Unknown"
	}
}

// Valid reports whether the value is one of the defined step types.
// Used when loading persisted steps so a corrupt row is skipped, not fatal.
func (t StepType) Valid() bool {
	return t >= StepWarmup && t <= StepRepeat
}

// DurationType selects which duration field of a Step is authoritative.
// A step is bounded by time or by distance, never both.
type DurationType int

const (
	DurationTime     DurationType = iota // DurationSeconds is authoritative
	DurationDistance                     // DurationMeters is authoritative
)

func (d DurationType) Valid() bool {
	return d == DurationTime || d == DurationDistance
}

// AutoAdjustMode selects which live metric drives auto-adjustment for a step.
type AutoAdjustMode int

const (
	AdjustModeNone AutoAdjustMode = iota
	AdjustModeHR
	AdjustModePower
)

func (m AutoAdjustMode) Valid() bool {
	return m >= AdjustModeNone && m <= AdjustModePower
}

// AdjustmentTarget selects what the controller moves when the metric is out
// of range: belt speed or incline.
type AdjustmentTarget int

const (
	AdjustTargetSpeed AdjustmentTarget = iota
	AdjustTargetIncline
)

func (t AdjustmentTarget) Valid() bool {
	return t == AdjustTargetSpeed || t == AdjustTargetIncline
}

// AdjustmentScope controls how adjustment coefficients are shared.
// ScopeAllSteps: one (speed, incline) coefficient pair for the whole workout.
// ScopeOneStep: coefficients keyed by step identity, so each repeat position
// keeps its own adjustment history across iterations.
type AdjustmentScope int

const (
	ScopeAllSteps AdjustmentScope = iota
	ScopeOneStep
)

func (s AdjustmentScope) Valid() bool {
	return s == ScopeAllSteps || s == ScopeOneStep
}

// EarlyEndCondition lets a step finish before its duration condition is met.
type EarlyEndCondition int

const (
	EarlyEndNone    EarlyEndCondition = iota
	EarlyEndHRRange // step ends once heart rate enters the target range
)

func (c EarlyEndCondition) Valid() bool {
	return c == EarlyEndNone || c == EarlyEndHRRange
}

// Step is one entry of a hierarchical workout plan.
//
// Target ranges are expressed as percent of the user's threshold (LTHR for
// heart rate, FTP for power), never in absolute units, so plans stay portable
// across users.
//
// REPEAT steps carry only RepeatCount; their children hold duration, pace and
// incline and link back via ParentRepeatID.
type Step struct {
	ID              int64
	Type            StepType
	DurationType    DurationType
	DurationSeconds int     // authoritative when DurationType == DurationTime
	DurationMeters  float64 // authoritative when DurationType == DurationDistance
	PaceKph         float64
	InclinePct      float64
	AdjustMode      AutoAdjustMode
	AdjustTarget    AdjustmentTarget
	TargetMinPct    float64 // percent of LTHR (HR mode) or FTP (power mode)
	TargetMaxPct    float64
	EarlyEnd        EarlyEndCondition
	RepeatCount     int   // REPEAT steps only
	ParentRepeatID  int64 // 0 when not a child of a REPEAT
	Position        int   // order within the plan
}

// HasAutoAdjustTarget reports whether the step carries a usable auto-adjust
// configuration. Adjustment evaluation and emission are gated on this.
func (s Step) HasAutoAdjustTarget() bool {
	return s.AdjustMode != AdjustModeNone && s.TargetMaxPct > 0 && s.TargetMaxPct >= s.TargetMinPct
}

// System workout type tags. System workouts are templates owned by the app,
// looked up by tag and created on demand.
const (
	SystemTypeWarmup   = "default_warmup"
	SystemTypeCooldown = "default_cooldown"
)

// WorkoutPlan is a persisted ordered sequence of steps.
type WorkoutPlan struct {
	ID                 int64
	Name               string
	SystemType         string // "" for user workouts, a SystemType* tag for templates
	UseDefaultWarmup   bool
	UseDefaultCooldown bool
	AdjustScope        AdjustmentScope
	Steps              []Step
}

// Phase classifies a flat execution index.
type Phase int

const (
	PhaseWarmup Phase = iota
	PhaseMain
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "Warmup"
	case PhaseMain:
		return "Main"
	case PhaseCooldown:
		return "Cooldown"
	default:
		return "Unknown"
	}
}

// PhaseCounts records how many execution steps each phase contributes after
// stitching, so any flat index can be classified.
type PhaseCounts struct {
	Warmup   int
	Main     int
	Cooldown int
}

// Total returns the flat step count.
func (p PhaseCounts) Total() int {
	return p.Warmup + p.Main + p.Cooldown
}

// PhaseAt classifies a flat execution index.
func (p PhaseCounts) PhaseAt(index int) Phase {
	if index < p.Warmup {
		return PhaseWarmup
	}
	if index < p.Warmup+p.Main {
		return PhaseMain
	}
	return PhaseCooldown
}

// ExecutionStep is the immutable flattened projection of a Step used at
// runtime. Built once at workout load, read-only for the duration of
// execution, discarded on reset or reload.
type ExecutionStep struct {
	Step            Step
	RepeatIteration int // 1-based iteration, 0 when not inside a repeat
	RepeatTotal     int
	IdentityKey     string // stable across iterations of the same repeat position
	DisplayName     string
}

// IsTimed reports whether the step completes on elapsed time rather than
// covered distance.
func (e ExecutionStep) IsTimed() bool {
	return e.Step.DurationType == DurationTime
}

func identityKey(s Step) string {
	return fmt.Sprintf("step-%d", s.ID)
}
