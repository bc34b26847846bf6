package hud

import (
	"fmt"
	"strings"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// formatMsMMSS formats elapsed milliseconds as MM:SS.
func formatMsMMSS(ms int64) string {
	totalSeconds := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

func formatPhase(p workout.Phase) string {
	switch p {
	case workout.PhaseWarmup:
		return "[blue]Warmup[white]"
	case workout.PhaseCooldown:
		return "[blue]Cooldown[white]"
	default:
		return "[green]Main[white]"
	}
}

func formatIdle(s workout.Idle) string {
	if !s.Loaded {
		return "\n  [gray]No workout loaded[white]\n"
	}
	return fmt.Sprintf("\n  [yellow]%s[white]\n\n  [green]Ready to start[white]\n", s.WorkoutName)
}

func formatRunning(s workout.Running) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s  [gray]Step %d[white]\n\n", formatPhase(s.Phase), s.StepIndex+1)
	fmt.Fprintf(&b, "  [gray]Elapsed:[white]   %s\n", formatMsMMSS(s.WorkoutElapsedMs))
	fmt.Fprintf(&b, "  [gray]Distance:[white]  %s\n\n", formatDistance(s.WorkoutDistanceM))
	fmt.Fprintf(&b, "  [green]→[white] Pace:      [yellow]%.1f[white] kph\n", s.PaceKph)
	fmt.Fprintf(&b, "  [cyan]∠[white] Incline:   [yellow]%.1f[white] %%\n", s.InclinePct)
	if s.PlanFinished {
		b.WriteString("\n  [yellow]Plan finished - cooling down until stop[white]\n")
	}
	b.WriteString("\n  [yellow]Space[white] Pause  |  [yellow]N[white]/[yellow]B[white] Skip  |  [yellow]+[white]/[yellow]-[white] Effort  |  [yellow]X[white] Stop\n")
	return b.String()
}

func formatPaused(s workout.Paused) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s  [gray]Step %d[white]  [gray](PAUSED)[white]\n\n", formatPhase(s.Phase), s.StepIndex+1)
	fmt.Fprintf(&b, "  [gray]Elapsed:[white]   %s\n", formatMsMMSS(s.WorkoutElapsedMs))
	fmt.Fprintf(&b, "  [gray]Distance:[white]  %s\n", formatDistance(s.WorkoutDistanceM))
	b.WriteString("\n  [yellow]Space[white] Resume  |  [yellow]X[white] Stop\n")
	return b.String()
}

func formatCompleted(summary workout.WorkoutSummary) string {
	var b strings.Builder
	b.WriteString("\n  [green]Workout complete![white]\n\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", summary.Name)
	fmt.Fprintf(&b, "  [gray]Steps:[white]     %d/%d\n", summary.StepsCompleted, summary.TotalSteps)
	fmt.Fprintf(&b, "  [gray]Time:[white]      %s\n", formatMsMMSS(summary.ElapsedMs))
	fmt.Fprintf(&b, "  [gray]Distance:[white]  %s\n", formatDistance(summary.DistanceM))
	b.WriteString("\n  [gray]Press Esc to return to the workout list.[white]\n")
	return b.String()
}

func formatStep(step workout.ExecutionStep, elapsedMs int64, distanceM float64, countdownSec int, hrAdjustActive bool) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", step.DisplayName)

	if step.IsTimed() {
		fmt.Fprintf(&b, "  [gray]Step Time:[white] %s / %s\n", formatMsMMSS(elapsedMs), formatMsMMSS(int64(step.Step.DurationSeconds)*1000))
	} else {
		fmt.Fprintf(&b, "  [gray]Step Dist:[white] %s / %s\n", formatDistance(distanceM), formatDistance(step.Step.DurationMeters))
	}
	if countdownSec >= 0 {
		fmt.Fprintf(&b, "  [gray]Remaining:[white] %ds\n", countdownSec)
	}
	if hrAdjustActive {
		b.WriteString("\n  [red]♥[white] [gray]HR auto-adjust active[white]\n")
	}
	if step.Step.EarlyEnd == workout.EarlyEndHRRange {
		b.WriteString("  [gray]Ends early when HR settles into range[white]\n")
	}
	return b.String()
}

// formatEvent renders a workout event for the events panel. Returns "" for
// events with no user-facing line.
func formatEvent(ev workout.Event) string {
	switch e := ev.(type) {
	case workout.StepStarted:
		return fmt.Sprintf("[cyan]▶[white] %s (%.1f kph, %.1f%%)", e.Step.DisplayName, e.PaceKph, e.InclinePct)
	case workout.StepCompleted:
		return fmt.Sprintf("[green]✓[white] %s done", e.Step.DisplayName)
	case workout.WorkoutResumed:
		return fmt.Sprintf("[cyan]▶[white] Resumed (%.1f kph, %.1f%%)", e.PaceKph, e.InclinePct)
	case workout.SpeedAdjusted:
		if e.Urgent {
			return fmt.Sprintf("[red]![white] Speed → %.1f kph (urgent)", e.NewSpeedKph)
		}
		return fmt.Sprintf("[yellow]~[white] Speed → %.1f kph", e.NewSpeedKph)
	case workout.InclineAdjusted:
		if e.Urgent {
			return fmt.Sprintf("[red]![white] Incline → %.1f%% (urgent)", e.NewInclinePct)
		}
		return fmt.Sprintf("[yellow]~[white] Incline → %.1f%%", e.NewInclinePct)
	case workout.HrOutOfRange:
		return fmt.Sprintf("[red]♥[white] HR %d out of range", e.BPM)
	case workout.HrBackInRange:
		return fmt.Sprintf("[green]♥[white] HR %d back in range", e.BPM)
	case workout.HrEarlyEndTriggered:
		return fmt.Sprintf("[green]♥[white] HR %d settled - ending step early", e.BPM)
	case workout.WorkoutPlanFinished:
		return "[yellow]⚑[white] Plan finished - stop when ready"
	case workout.WorkoutCompleted:
		return fmt.Sprintf("[green]⚑[white] Workout complete: %s, %s",
			formatMsMMSS(e.Summary.ElapsedMs), formatDistance(e.Summary.DistanceM))
	case workout.EffortAdjusted:
		return fmt.Sprintf("[yellow]~[white] Effort → %.1f kph, %.1f%%", e.PaceKph, e.InclinePct)
	case workout.Warning:
		return fmt.Sprintf("[yellow]⚠[white] %s", e.Message)
	case workout.Error:
		return fmt.Sprintf("[red]✗[white] %s", e.Message)
	default:
		return ""
	}
}

// formatPlanDetails renders the selection page details panel.
func formatPlanDetails(plan *workout.WorkoutPlan) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", plan.Name)

	flat := workout.FlattenSteps(plan.Steps)
	fmt.Fprintf(&b, "  [gray]Execution steps:[white] %d\n", len(flat))
	if plan.UseDefaultWarmup {
		b.WriteString("  [gray]+ default warmup[white]\n")
	}
	if plan.UseDefaultCooldown {
		b.WriteString("  [gray]+ default cooldown[white]\n")
	}
	if plan.AdjustScope == workout.ScopeOneStep {
		b.WriteString("  [gray]Adjustments scoped per step[white]\n")
	}
	b.WriteString("\n  [gray]Structure:[white]\n")
	for i, step := range flat {
		var desc string
		if step.IsTimed() {
			desc = fmt.Sprintf("%s for %s", describeTargets(step.Step), formatMsMMSS(int64(step.Step.DurationSeconds)*1000))
		} else {
			desc = fmt.Sprintf("%s for %s", describeTargets(step.Step), formatDistance(step.Step.DurationMeters))
		}
		fmt.Fprintf(&b, "    %d. %s: %s\n", i+1, step.DisplayName, desc)
	}
	b.WriteString("\n  [green]Press Enter to start this workout[white]\n")
	return b.String()
}

func describeTargets(s workout.Step) string {
	base := fmt.Sprintf("%.1f kph @ %.1f%%", s.PaceKph, s.InclinePct)
	if s.HasAutoAdjustTarget() {
		metric := "HR"
		if s.AdjustMode == workout.AdjustModePower {
			metric = "power"
		}
		return fmt.Sprintf("%s (%s %g-%g%%)", base, metric, s.TargetMinPct, s.TargetMaxPct)
	}
	return base
}
