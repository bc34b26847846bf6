package workout

import (
	"log"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/telemetry"
)

// ControllerConfig tunes the adjustment control loop. All durations are in
// the workout-elapsed clock, not wall time.
type ControllerConfig struct {
	EvaluationIntervalMs     int64   // minimum gap between evaluations, faster ticks coalesce to NoAdjustment
	SettlingWindowSeconds    int     // grace period after step start / resume with no adjustments
	TrendWindowSeconds       int     // trend lookback, anchored at the latest recorded sample
	MinTimeBetweenAdjSeconds int     // cooldown between two actual adjustments
	TrendThresholdPerMin     float64 // symmetric slope threshold classifying rising/falling
	UrgentThreshold          float64 // out-of-range distance beyond which the urgent step size applies

	SpeedStepKph          float64
	SpeedStepUrgentKph    float64
	InclineStepPct        float64
	InclineStepUrgentPct  float64
	MaxSpeedAdjustmentKph float64 // envelope half-width around the base pace
	MaxInclineAdjustment  float64 // envelope half-width around the base incline

	MinSpeedKph   float64
	MaxSpeedKph   float64
	MinInclinePct float64
	MaxInclinePct float64
}

// DefaultControllerConfig returns the tuning used when no config overrides it.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		EvaluationIntervalMs:     1000,
		SettlingWindowSeconds:    45,
		TrendWindowSeconds:       60,
		MinTimeBetweenAdjSeconds: 30,
		TrendThresholdPerMin:     2.0,
		UrgentThreshold:          10.0,
		SpeedStepKph:             0.3,
		SpeedStepUrgentKph:       0.8,
		InclineStepPct:           0.5,
		InclineStepUrgentPct:     1.0,
		MaxSpeedAdjustmentKph:    3.0,
		MaxInclineAdjustment:     4.0,
		MinSpeedKph:              2.0,
		MaxSpeedKph:              22.0,
		MinInclinePct:            0.0,
		MaxInclinePct:            15.0,
	}
}

// Trend classifies the recent direction of a metric.
type Trend int

const (
	TrendStable Trend = iota
	TrendRising
	TrendFalling
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "stable"
	}
}

// Decision is the outcome of one controller evaluation.
// It is a sealed variant type: NoAdjustment, Waiting, AdjustSpeed or
// AdjustIncline. Consumers must handle every variant.
type Decision interface {
	decision()
}

// NoAdjustment means the metric is in range or the tick was rate-limited.
type NoAdjustment struct{}

// Waiting means the controller deliberately held off; Reason says why
// ("settling", "cooldown", a trend deferral, or an exhausted envelope).
type Waiting struct {
	Reason string
}

// AdjustSpeed asks the engine to move the speed target to NewSpeedKph.
type AdjustSpeed struct {
	NewSpeedKph float64
	Urgent      bool
}

// AdjustIncline asks the engine to move the incline target to NewInclinePct.
type AdjustIncline struct {
	NewInclinePct float64
	Urgent        bool
}

func (NoAdjustment) decision()  {}
func (Waiting) decision()       {}
func (AdjustSpeed) decision()   {}
func (AdjustIncline) decision() {}

// MetricSource is a read-only time-ordered sample sequence queried for trend
// computation. Satisfied by *telemetry.History.
type MetricSource interface {
	Points() []telemetry.DataPoint
}

// ControllerTiming is the controller's complete mutable state: four
// timestamps on the workout-elapsed clock. The engine, not the controller,
// owns the resulting speed/incline coefficients.
type ControllerTiming struct {
	StepStartMs      int64
	SettlingStartMs  int64
	LastAdjustmentMs int64
	LastEvaluationMs int64
}

// AdjustmentController decides, at most once per evaluation interval, whether
// the speed or incline target should move given a live metric and its range.
type AdjustmentController struct {
	cfg    ControllerConfig
	logger *log.Logger
	timing ControllerTiming
}

// NewAdjustmentController creates an AdjustmentController
func NewAdjustmentController(cfg ControllerConfig, logger *log.Logger) *AdjustmentController {
	if logger == nil {
		panic("AdjustmentController: logger cannot be nil")
	}
	if cfg.EvaluationIntervalMs <= 0 {
		cfg.EvaluationIntervalMs = 1000
	}
	return &AdjustmentController{cfg: cfg, logger: logger}
}

// OnStepStarted resets all four timers to the step's start time.
func (c *AdjustmentController) OnStepStarted(elapsedMs int64) {
	c.timing = ControllerTiming{
		StepStartMs:      elapsedMs,
		SettlingStartMs:  elapsedMs,
		LastAdjustmentMs: elapsedMs,
		LastEvaluationMs: elapsedMs,
	}
}

// OnWorkoutResumed resets the settling and adjustment/evaluation timers but
// not the step start. HR drifts down during a pause; without a fresh settling
// window the first evaluation after resume would react to stale values.
func (c *AdjustmentController) OnWorkoutResumed(elapsedMs int64) {
	c.timing.SettlingStartMs = elapsedMs
	c.timing.LastAdjustmentMs = elapsedMs
	c.timing.LastEvaluationMs = elapsedMs
}

// TimingSnapshot returns the current timer state for persistence.
func (c *AdjustmentController) TimingSnapshot() ControllerTiming {
	return c.timing
}

// RestoreTiming replaces the timer state from a persisted snapshot.
func (c *AdjustmentController) RestoreTiming(t ControllerTiming) {
	c.timing = t
}

// RangeCheck carries one evaluation's inputs. Current/base pace and incline
// are targets, not measured telemetry: the controller reasons about where the
// target sits inside the allowed envelope around the original step target.
type RangeCheck struct {
	NowMs        int64
	CurrentValue float64
	TargetMin    float64
	TargetMax    float64
	Target       AdjustmentTarget

	CurrentPaceKph    float64
	BasePaceKph       float64
	CurrentInclinePct float64
	BaseInclinePct    float64

	Source MetricSource
}

// CheckTargetRange runs one evaluation of the control loop.
//
// The rate-limit timestamp is updated only after the gate passes; updating it
// on every call would let a fast tick stream starve evaluation forever.
// Clamps are computed from the base step target on every call, never from the
// current adjusted value, so accumulated adjustments can never drift outside
// the envelope around the original target.
func (c *AdjustmentController) CheckTargetRange(in RangeCheck) Decision {
	if in.NowMs-c.timing.LastEvaluationMs < c.cfg.EvaluationIntervalMs {
		return NoAdjustment{}
	}
	c.timing.LastEvaluationMs = in.NowMs

	if in.NowMs-c.timing.SettlingStartMs < int64(c.cfg.SettlingWindowSeconds)*1000 {
		return Waiting{Reason: "settling"}
	}

	slope, trend := c.computeTrend(in.Source)

	if in.CurrentValue >= in.TargetMin && in.CurrentValue <= in.TargetMax {
		return NoAdjustment{}
	}

	if in.CurrentValue > in.TargetMax {
		if trend == TrendFalling {
			c.logger.Printf("AdjustmentController: above range but falling (%.1f/min), waiting", slope)
			return Waiting{Reason: "trend falling"}
		}
		if in.NowMs-c.timing.LastAdjustmentMs < int64(c.cfg.MinTimeBetweenAdjSeconds)*1000 {
			return Waiting{Reason: "cooldown"}
		}
		urgent := in.CurrentValue-in.TargetMax > c.cfg.UrgentThreshold
		return c.adjustDown(in, urgent)
	}

	// Below min
	if trend == TrendRising {
		c.logger.Printf("AdjustmentController: below range but rising (%.1f/min), waiting", slope)
		return Waiting{Reason: "trend rising"}
	}
	if in.NowMs-c.timing.LastAdjustmentMs < int64(c.cfg.MinTimeBetweenAdjSeconds)*1000 {
		return Waiting{Reason: "cooldown"}
	}
	urgent := in.TargetMin-in.CurrentValue > c.cfg.UrgentThreshold
	return c.adjustUp(in, urgent)
}

// adjustDown reduces the configured target. The floor is anchored to the base
// step target, not the already-adjusted value.
func (c *AdjustmentController) adjustDown(in RangeCheck, urgent bool) Decision {
	if in.Target == AdjustTargetSpeed {
		step := c.cfg.SpeedStepKph
		if urgent {
			step = c.cfg.SpeedStepUrgentKph
		}
		floor := maxF(c.cfg.MinSpeedKph, in.BasePaceKph-c.cfg.MaxSpeedAdjustmentKph)
		newVal := maxF(in.CurrentPaceKph-step, floor)
		if newVal >= in.CurrentPaceKph {
			return Waiting{Reason: "already at minimum"}
		}
		c.timing.LastAdjustmentMs = in.NowMs
		return AdjustSpeed{NewSpeedKph: newVal, Urgent: urgent}
	}

	step := c.cfg.InclineStepPct
	if urgent {
		step = c.cfg.InclineStepUrgentPct
	}
	floor := maxF(c.cfg.MinInclinePct, in.BaseInclinePct-c.cfg.MaxInclineAdjustment)
	newVal := maxF(in.CurrentInclinePct-step, floor)
	if newVal >= in.CurrentInclinePct {
		return Waiting{Reason: "already at minimum"}
	}
	c.timing.LastAdjustmentMs = in.NowMs
	return AdjustIncline{NewInclinePct: newVal, Urgent: urgent}
}

// adjustUp raises the configured target, ceiling anchored to the base target.
func (c *AdjustmentController) adjustUp(in RangeCheck, urgent bool) Decision {
	if in.Target == AdjustTargetSpeed {
		step := c.cfg.SpeedStepKph
		if urgent {
			step = c.cfg.SpeedStepUrgentKph
		}
		ceiling := minF(c.cfg.MaxSpeedKph, in.BasePaceKph+c.cfg.MaxSpeedAdjustmentKph)
		newVal := minF(in.CurrentPaceKph+step, ceiling)
		if newVal <= in.CurrentPaceKph {
			return Waiting{Reason: "already at maximum"}
		}
		c.timing.LastAdjustmentMs = in.NowMs
		return AdjustSpeed{NewSpeedKph: newVal, Urgent: urgent}
	}

	step := c.cfg.InclineStepPct
	if urgent {
		step = c.cfg.InclineStepUrgentPct
	}
	ceiling := minF(c.cfg.MaxInclinePct, in.BaseInclinePct+c.cfg.MaxInclineAdjustment)
	newVal := minF(in.CurrentInclinePct+step, ceiling)
	if newVal <= in.CurrentInclinePct {
		return Waiting{Reason: "already at maximum"}
	}
	c.timing.LastAdjustmentMs = in.NowMs
	return AdjustIncline{NewInclinePct: newVal, Urgent: urgent}
}

const minTrendSpanMinutes = 0.1

// computeTrend fits a first/last slope over the samples inside the trend
// window. The window is anchored at the latest recorded sample's own
// timestamp, not the caller's clock - sensor timestamps and the evaluation
// clock may not share a base. Fewer than 2 points, or a span under 0.1
// minutes, yields a stable (zero) trend - data starvation is not an error.
func (c *AdjustmentController) computeTrend(src MetricSource) (float64, Trend) {
	if src == nil {
		return 0, TrendStable
	}
	points := src.Points()
	if len(points) < 2 {
		return 0, TrendStable
	}

	latest := points[len(points)-1].ElapsedMs
	windowStart := latest - int64(c.cfg.TrendWindowSeconds)*1000
	first := 0
	for first < len(points) && points[first].ElapsedMs < windowStart {
		first++
	}
	window := points[first:]
	if len(window) < 2 {
		return 0, TrendStable
	}

	spanMin := float64(window[len(window)-1].ElapsedMs-window[0].ElapsedMs) / 60000.0
	if spanMin < minTrendSpanMinutes {
		return 0, TrendStable
	}

	slope := (window[len(window)-1].Value - window[0].Value) / spanMin
	switch {
	case slope > c.cfg.TrendThresholdPerMin:
		return slope, TrendRising
	case slope < -c.cfg.TrendThresholdPerMin:
		return slope, TrendFalling
	default:
		return slope, TrendStable
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
