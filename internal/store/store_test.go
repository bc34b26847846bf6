package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

func TestStore_SaveAndGetWorkout(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	plan := &workout.WorkoutPlan{
		Name:             "Morning Tempo",
		UseDefaultWarmup: true,
		Steps: []workout.Step{
			{Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 1200,
				PaceKph: 11.5, InclinePct: 1.0,
				AdjustMode: workout.AdjustModeHR, AdjustTarget: workout.AdjustTargetSpeed,
				TargetMinPct: 80, TargetMaxPct: 88},
			{Type: workout.StepCooldown, DurationType: workout.DurationTime, DurationSeconds: 300, PaceKph: 5.0},
		},
	}
	require.NoError(t, s.SaveWorkout(ctx, plan))
	require.NotZero(t, plan.ID)
	assert.NotZero(t, plan.Steps[0].ID, "assigned step IDs are written back")

	loaded, err := s.GetWorkout(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning Tempo", loaded.Name)
	assert.True(t, loaded.UseDefaultWarmup)
	assert.False(t, loaded.UseDefaultCooldown)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, plan.Steps[0], loaded.Steps[0])
	assert.Equal(t, 1, loaded.Steps[1].Position)
}

func TestStore_SaveWorkout_RemapsRepeatParents(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	// Placeholder IDs: the database assigns its own and the children's
	// parent links must follow.
	plan := &workout.WorkoutPlan{
		Name:        "Intervals",
		AdjustScope: workout.ScopeOneStep,
		Steps: []workout.Step{
			{ID: 1, Type: workout.StepRepeat, RepeatCount: 4},
			{ID: 2, Type: workout.StepRun, DurationType: workout.DurationDistance, DurationMeters: 800,
				PaceKph: 13.0, ParentRepeatID: 1},
			{ID: 3, Type: workout.StepRecover, DurationType: workout.DurationTime, DurationSeconds: 120,
				PaceKph: 6.0, ParentRepeatID: 1},
		},
	}
	require.NoError(t, s.SaveWorkout(ctx, plan))

	loaded, err := s.GetWorkout(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 3)
	repeatID := loaded.Steps[0].ID
	assert.NotEqual(t, int64(1), repeatID, "placeholder ID replaced by the database")
	assert.Equal(t, repeatID, loaded.Steps[1].ParentRepeatID)
	assert.Equal(t, repeatID, loaded.Steps[2].ParentRepeatID)
	assert.Equal(t, workout.ScopeOneStep, loaded.AdjustScope)

	// The flattener still resolves the links after the round trip
	flat := workout.FlattenSteps(loaded.Steps)
	assert.Len(t, flat, 8)
}

func TestStore_SaveWorkout_UpdateReplacesSteps(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	plan := &workout.WorkoutPlan{Name: "Draft", Steps: []workout.Step{
		{Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 600, PaceKph: 10},
		{Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 600, PaceKph: 10},
	}}
	require.NoError(t, s.SaveWorkout(ctx, plan))

	plan.Name = "Final"
	plan.Steps = plan.Steps[:1]
	plan.Steps[0].PaceKph = 11
	require.NoError(t, s.SaveWorkout(ctx, plan))

	loaded, err := s.GetWorkout(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, 11.0, loaded.Steps[0].PaceKph)
}

func TestStore_SaveWorkout_UnknownIDFails(t *testing.T) {
	s := NewTestStore(t)
	err := s.SaveWorkout(context.Background(), &workout.WorkoutPlan{ID: 9999, Name: "Ghost"})
	require.ErrorIs(t, err, workout.ErrWorkoutNotFound)
}

func TestStore_GetWorkout_NotFound(t *testing.T) {
	s := NewTestStore(t)
	_, err := s.GetWorkout(context.Background(), 9999)
	require.ErrorIs(t, err, workout.ErrWorkoutNotFound)
}

func TestStore_SystemWorkoutByType(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	warmup, err := s.SystemWorkoutByType(ctx, workout.SystemTypeWarmup)
	require.NoError(t, err)
	assert.Equal(t, workout.SystemTypeWarmup, warmup.SystemType)
	assert.NotEmpty(t, warmup.Steps)

	// Deleted templates are recreated from the built-in definition
	require.NoError(t, s.DeleteWorkout(ctx, warmup.ID))
	recreated, err := s.SystemWorkoutByType(ctx, workout.SystemTypeWarmup)
	require.NoError(t, err)
	assert.NotEqual(t, warmup.ID, recreated.ID)
	assert.NotEmpty(t, recreated.Steps)

	_, err = s.SystemWorkoutByType(ctx, "no_such_template")
	require.ErrorIs(t, err, workout.ErrWorkoutNotFound)
}

func TestStore_ListWorkouts(t *testing.T) {
	s := NewTestStore(t)

	list, err := s.ListWorkouts(context.Background())
	require.NoError(t, err)

	// The seeded starters, sorted by name; system templates are excluded
	require.Len(t, list, 3)
	assert.Equal(t, "Easy Run 30min", list[0].Name)
	assert.Equal(t, "Hill Repeats 6x90s", list[1].Name)
	assert.Equal(t, "Intervals 4x800m", list[2].Name)
	for _, w := range list {
		assert.Empty(t, w.SystemType)
		assert.Empty(t, w.Steps, "listing does not load steps")
	}
}

func TestStore_DeleteWorkout_CascadesSteps(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	plan := &workout.WorkoutPlan{Name: "Doomed", Steps: []workout.Step{
		{Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 60, PaceKph: 10},
	}}
	require.NoError(t, s.SaveWorkout(ctx, plan))
	require.NoError(t, s.DeleteWorkout(ctx, plan.ID))

	_, err := s.GetWorkout(ctx, plan.ID)
	require.ErrorIs(t, err, workout.ErrWorkoutNotFound)

	steps, err := s.stepsForWorkout(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	require.ErrorIs(t, s.DeleteWorkout(ctx, plan.ID), workout.ErrWorkoutNotFound)
}

func TestStore_SkipsCorruptStepRows(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	plan := &workout.WorkoutPlan{Name: "Mixed", Steps: []workout.Step{
		{Type: workout.StepRun, DurationType: workout.DurationTime, DurationSeconds: 60, PaceKph: 10},
	}}
	require.NoError(t, s.SaveWorkout(ctx, plan))

	// A row with an enum value this version does not know
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workout_steps
		 (workout_id, position, type, duration_type, duration_seconds, duration_meters,
		  pace_kph, incline_pct, adjust_mode, adjust_target, target_min_pct, target_max_pct,
		  early_end, repeat_count, parent_repeat_id)
		 VALUES (?, 1, 99, 0, 60, 0, 10, 0, 0, 0, 0, 0, 0, 0, 0)`, plan.ID)
	require.NoError(t, err)

	loaded, err := s.GetWorkout(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 1, "corrupt row skipped, valid one kept")
	assert.Equal(t, workout.StepRun, loaded.Steps[0].Type)
}

func TestStore_SnapshotLifecycle(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	st, isPaused, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, st, "no snapshot on a fresh database")
	assert.False(t, isPaused)

	saved := &workout.PersistedState{
		WorkoutID:        4,
		StepIndex:        2,
		StepElapsedMs:    15000,
		WorkoutElapsedMs: 330000,
		WorkoutDistanceM: 910.5,
		StepsCompleted:   2,
		SpeedCoeff:       0.92,
		InclineCoeff:     1.0,
		SavedAtUnixMs:    1756600000000,
		Controller:       workout.ControllerTiming{StepStartMs: 315000, SettlingStartMs: 315000},
	}
	require.NoError(t, s.SaveSnapshot(ctx, saved, false))

	st, isPaused, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, isPaused)
	assert.Equal(t, saved, st)

	// Singleton row: a second save overwrites
	saved.StepIndex = 3
	require.NoError(t, s.SaveSnapshot(ctx, saved, true))
	st, isPaused, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.StepIndex)
	assert.True(t, isPaused)

	require.NoError(t, s.ClearSnapshot(ctx))
	st, _, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	// Clearing an already-clear snapshot is fine
	require.NoError(t, s.ClearSnapshot(ctx))
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	s := NewTestStore(t)

	require.NoError(t, s.seedBuiltins())

	list, err := s.ListWorkouts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3, "second seed call leaves the database alone")
}
