package workout

// Telemetry ingestion. Each metric arrives independently at its own cadence,
// with no ordering guarantee between metric types. Elapsed-time updates drive
// step progression and adjustment evaluation; the rest update live fields or
// feed the metric histories. Out-of-order and duplicate samples that do not
// move the monotonic counters are idempotent no-ops.

// UpdateSpeed records the belt speed reported by the treadmill, in kph.
func (e *Engine) UpdateSpeed(kph float64) {
	e.mu.Lock()
	if e.status != statusRunning || kph < 0 {
		e.mu.Unlock()
		return
	}
	e.currentSpeedKph = kph
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.publish(state, nil)
}

// UpdateIncline records the deck incline reported by the treadmill, percent.
func (e *Engine) UpdateIncline(pct float64) {
	e.mu.Lock()
	if e.status != statusRunning {
		e.mu.Unlock()
		return
	}
	e.currentInclinePct = pct
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.publish(state, nil)
}

// UpdateDistance records the treadmill's total distance in km. Deltas are
// accumulated into the per-step and per-workout counters; the first sample
// after start/resume only anchors the baseline.
func (e *Engine) UpdateDistance(km float64) {
	meters := km * 1000.0

	e.mu.Lock()
	if e.status != statusRunning {
		e.mu.Unlock()
		return
	}
	if e.lastDeviceDistance < 0 {
		e.lastDeviceDistance = meters
		e.mu.Unlock()
		return
	}
	delta := meters - e.lastDeviceDistance
	if delta <= 0 {
		e.mu.Unlock()
		return
	}
	e.lastDeviceDistance = meters
	e.stepDistanceM += delta
	e.workoutDistanceM += delta

	evs := e.checkStepCompletionLocked()
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.publish(state, evs)
}

// UpdateElapsedTime records the treadmill's total elapsed seconds. This is
// the engine's clock: deltas advance the step and workout timers, then step
// completion and auto-adjustment are evaluated. The first sample after
// start/resume only anchors the baseline, so wall-clock gaps (pauses,
// process restarts) never inflate the counters.
func (e *Engine) UpdateElapsedTime(seconds float64) {
	deviceMs := int64(seconds * 1000.0)

	e.mu.Lock()
	if e.status != statusRunning {
		e.mu.Unlock()
		return
	}
	if e.lastDeviceElapsed < 0 {
		e.lastDeviceElapsed = deviceMs
		e.mu.Unlock()
		return
	}
	delta := deviceMs - e.lastDeviceElapsed
	if delta <= 0 {
		e.mu.Unlock()
		return
	}
	e.lastDeviceElapsed = deviceMs
	e.stepElapsedMs += delta
	e.workoutElapsedMs += delta

	// No distance telemetry seen yet: derive covered distance from the
	// current belt speed so DISTANCE steps still progress.
	if e.lastDeviceDistance < 0 && e.currentSpeedKph > 0 {
		derived := e.currentSpeedKph / 3.6 * float64(delta) / 1000.0
		e.stepDistanceM += derived
		e.workoutDistanceM += derived
	}

	evs := e.checkStepCompletionLocked()
	evs = append(evs, e.evaluateAdjustmentLocked()...)
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.publish(state, evs)
}

// UpdateHeartRate records a heart rate sample, tracks range entry/exit for
// the current step and fires the early-end condition when configured.
func (e *Engine) UpdateHeartRate(bpm int) {
	e.mu.Lock()
	if e.status != statusRunning || bpm <= 0 {
		e.mu.Unlock()
		return
	}
	e.lastHR = bpm
	e.hrHistory.Add(e.workoutElapsedMs, float64(bpm))

	var evs []Event
	step := e.execSteps[e.currentIdx]
	if min, max, ok := e.resolveRangeLocked(step); ok && step.Step.AdjustMode != AdjustModePower {
		inRange := float64(bpm) >= min && float64(bpm) <= max
		if e.hrRangeKnown && inRange != e.hrInRange {
			if inRange {
				evs = append(evs, HrBackInRange{BPM: bpm})
			} else {
				evs = append(evs, HrOutOfRange{BPM: bpm})
			}
		}
		e.hrInRange = inRange
		e.hrRangeKnown = true

		if inRange && !e.planFinished && step.Step.EarlyEnd == EarlyEndHRRange {
			evs = append(evs, HrEarlyEndTriggered{BPM: bpm})
			evs = append(evs, e.completeCurrentStepLocked()...)
		}
	}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.publish(state, evs)
}

// UpdatePower records a power sample in watts.
func (e *Engine) UpdatePower(watts int) {
	e.mu.Lock()
	if e.status != statusRunning || watts < 0 {
		e.mu.Unlock()
		return
	}
	e.powerHistory.Add(e.workoutElapsedMs, float64(watts))
	e.mu.Unlock()
}

// checkStepCompletionLocked completes the current step when its duration
// condition is met. Must be called with mu held.
func (e *Engine) checkStepCompletionLocked() []Event {
	if e.planFinished {
		return nil
	}
	step := e.execSteps[e.currentIdx]
	done := false
	if step.IsTimed() {
		done = e.stepElapsedMs >= int64(step.Step.DurationSeconds)*1000
	} else {
		done = step.Step.DurationMeters > 0 && e.stepDistanceM >= step.Step.DurationMeters
	}
	if !done {
		return nil
	}
	return e.completeCurrentStepLocked()
}

// completeCurrentStepLocked advances past the current step. When steps
// remain the next one starts with its effective targets; otherwise the plan
// is finished but execution keeps running (auto-cooldown) until an explicit
// stop. Must be called with mu held.
func (e *Engine) completeCurrentStepLocked() []Event {
	step := e.execSteps[e.currentIdx]
	e.stepsCompleted++
	evs := []Event{StepCompleted{Index: e.currentIdx, Step: step}}
	e.logger.Printf("Engine: step %d completed (%s)", e.currentIdx, step.DisplayName)

	if e.currentIdx+1 < len(e.execSteps) {
		e.currentIdx++
		e.stepElapsedMs = 0
		e.stepDistanceM = 0
		e.hrRangeKnown = false
		e.controller.OnStepStarted(e.workoutElapsedMs)
		next := e.execSteps[e.currentIdx]
		pace, incline := e.effectiveTargetsLocked(next)
		evs = append(evs, StepStarted{Index: e.currentIdx, Step: next, PaceKph: pace, InclinePct: incline})
		return evs
	}

	e.planFinished = true
	e.logger.Printf("Engine: workout plan finished, continuing until stop")
	return append(evs, WorkoutPlanFinished{})
}

// evaluateAdjustmentLocked runs the controller for the current step when it
// carries an auto-adjust target, and applies any resulting decision to the
// scoped coefficients. Emission is gated on the step actually having an
// auto-adjust target. Must be called with mu held.
func (e *Engine) evaluateAdjustmentLocked() []Event {
	if e.planFinished {
		return nil
	}
	step := e.execSteps[e.currentIdx]
	if !step.Step.HasAutoAdjustTarget() {
		return nil
	}

	var value float64
	var source MetricSource
	switch step.Step.AdjustMode {
	case AdjustModeHR:
		if e.lastHR <= 0 {
			return nil
		}
		value = float64(e.lastHR)
		source = e.hrHistory
	case AdjustModePower:
		latest, ok := e.powerHistory.Latest()
		if !ok {
			return nil
		}
		value = latest.Value
		source = e.powerHistory
	default:
		return nil
	}

	min, max, ok := e.resolveRangeLocked(step)
	if !ok {
		return nil
	}

	basePace := step.Step.PaceKph
	baseIncline := step.Step.InclinePct
	currentPace := basePace * e.speedCoeffLocked(step)
	currentIncline := baseIncline * e.inclineCoeffLocked(step)

	decision := e.controller.CheckTargetRange(RangeCheck{
		NowMs:             e.workoutElapsedMs,
		CurrentValue:      value,
		TargetMin:         min,
		TargetMax:         max,
		Target:            step.Step.AdjustTarget,
		CurrentPaceKph:    currentPace,
		BasePaceKph:       basePace,
		CurrentInclinePct: currentIncline,
		BaseInclinePct:    baseIncline,
		Source:            source,
	})

	switch d := decision.(type) {
	case AdjustSpeed:
		if basePace <= 0 {
			e.logger.Printf("Engine: speed adjustment skipped - step has no base pace")
			return nil
		}
		e.setSpeedCoeffLocked(step, d.NewSpeedKph/basePace)
		e.logger.Printf("Engine: speed adjusted to %.1f kph (urgent=%v)", d.NewSpeedKph, d.Urgent)
		return []Event{SpeedAdjusted{NewSpeedKph: d.NewSpeedKph, Urgent: d.Urgent}}
	case AdjustIncline:
		if baseIncline <= 0 {
			e.logger.Printf("Engine: incline adjustment skipped - step has no base incline")
			return nil
		}
		e.setInclineCoeffLocked(step, d.NewInclinePct/baseIncline)
		e.logger.Printf("Engine: incline adjusted to %.1f%% (urgent=%v)", d.NewInclinePct, d.Urgent)
		return []Event{InclineAdjusted{NewInclinePct: d.NewInclinePct, Urgent: d.Urgent}}
	case Waiting:
		// Deliberate hold, nothing to apply
		return nil
	case NoAdjustment:
		return nil
	default:
		return nil
	}
}
