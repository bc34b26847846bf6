package store

import (
	"context"
	"fmt"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// Built-in workouts seeded on first run. The warmup and cooldown templates
// carry reserved system_type tags so the engine can stitch them around any
// plan; the rest are ordinary starter workouts the user can edit or delete.

func defaultWarmup() *workout.WorkoutPlan {
	return &workout.WorkoutPlan{
		Name:       "Default Warmup",
		SystemType: workout.SystemTypeWarmup,
		Steps: []workout.Step{
			{Type: workout.StepWarmup, DurationType: workout.DurationTime, DurationSeconds: 180, PaceKph: 5.0, InclinePct: 1.0},
			{Type: workout.StepWarmup, DurationType: workout.DurationTime, DurationSeconds: 120, PaceKph: 7.0, InclinePct: 1.0},
		},
	}
}

func defaultCooldown() *workout.WorkoutPlan {
	return &workout.WorkoutPlan{
		Name:       "Default Cooldown",
		SystemType: workout.SystemTypeCooldown,
		Steps: []workout.Step{
			{Type: workout.StepCooldown, DurationType: workout.DurationTime, DurationSeconds: 180, PaceKph: 5.5, InclinePct: 0.5},
			{Type: workout.StepCooldown, DurationType: workout.DurationTime, DurationSeconds: 120, PaceKph: 4.0, InclinePct: 0.0},
		},
	}
}

func starterWorkouts() []*workout.WorkoutPlan {
	return []*workout.WorkoutPlan{
		{
			Name:               "Easy Run 30min",
			UseDefaultWarmup:   true,
			UseDefaultCooldown: true,
			Steps: []workout.Step{
				{
					Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 1800,
					PaceKph: 9.0, InclinePct: 1.0,
					AdjustMode: workout.AdjustModeHR, AdjustTarget: workout.AdjustTargetSpeed,
					TargetMinPct: 65, TargetMaxPct: 78,
				},
			},
		},
		{
			Name:               "Intervals 4x800m",
			UseDefaultWarmup:   true,
			UseDefaultCooldown: true,
			AdjustScope:        workout.ScopeOneStep,
			Steps: []workout.Step{
				{ID: 1, Type: workout.StepRepeat, RepeatCount: 4},
				{
					ID: 2, Type: workout.StepRun, DurationType: workout.DurationDistance, DurationMeters: 800,
					PaceKph: 13.0, InclinePct: 1.0, ParentRepeatID: 1,
					AdjustMode: workout.AdjustModeHR, AdjustTarget: workout.AdjustTargetSpeed,
					TargetMinPct: 88, TargetMaxPct: 97,
				},
				{
					ID: 3, Type: workout.StepRecover, DurationType: workout.DurationTime, DurationSeconds: 120,
					PaceKph: 6.0, InclinePct: 0.5, ParentRepeatID: 1,
					EarlyEnd: workout.EarlyEndHRRange, TargetMinPct: 55, TargetMaxPct: 70,
				},
			},
		},
		{
			Name: "Hill Repeats 6x90s",
			Steps: []workout.Step{
				{Type: workout.StepWarmup, DurationType: workout.DurationTime, DurationSeconds: 300, PaceKph: 6.0, InclinePct: 1.0},
				{ID: 1, Type: workout.StepRepeat, RepeatCount: 6},
				{
					ID: 2, Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 90,
					PaceKph: 10.0, InclinePct: 6.0, ParentRepeatID: 1,
					AdjustMode: workout.AdjustModeHR, AdjustTarget: workout.AdjustTargetIncline,
					TargetMinPct: 85, TargetMaxPct: 95,
				},
				{
					ID: 3, Type: workout.StepRecover, DurationType: workout.DurationTime, DurationSeconds: 90,
					PaceKph: 5.0, InclinePct: 1.0, ParentRepeatID: 1,
				},
				{Type: workout.StepCooldown, DurationType: workout.DurationTime, DurationSeconds: 300, PaceKph: 5.0, InclinePct: 0.0},
			},
		},
	}
}

func builtinTemplate(systemType string) (*workout.WorkoutPlan, bool) {
	switch systemType {
	case workout.SystemTypeWarmup:
		return defaultWarmup(), true
	case workout.SystemTypeCooldown:
		return defaultCooldown(), true
	default:
		return nil, false
	}
}

// seedBuiltins inserts the system templates and starter workouts on a fresh
// database. A database with any workout row at all is left alone.
func (s *Store) seedBuiltins() error {
	ctx := context.Background()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts`).Scan(&count); err != nil {
		return fmt.Errorf("counting workouts: %w", err)
	}
	if count > 0 {
		return nil
	}

	s.logger.Printf("Store: fresh database, seeding built-in workouts")
	plans := []*workout.WorkoutPlan{defaultWarmup(), defaultCooldown()}
	plans = append(plans, starterWorkouts()...)
	for _, p := range plans {
		if err := s.SaveWorkout(ctx, p); err != nil {
			return fmt.Errorf("seeding %q: %w", p.Name, err)
		}
	}
	return nil
}
