package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// SaveWorkout persists the plan and atomically replaces all of its steps in
// one transaction. A zero plan ID inserts a new workout; otherwise the
// existing row is updated. Step IDs are reassigned by the database and
// parent-repeat links are remapped to the new IDs; the passed plan is
// updated in place with the assigned IDs.
func (s *Store) SaveWorkout(ctx context.Context, plan *workout.WorkoutPlan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if plan.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO workouts (name, system_type, use_default_warmup, use_default_cooldown, adjust_scope)
			 VALUES (?, ?, ?, ?, ?)`,
			plan.Name, plan.SystemType, boolToInt(plan.UseDefaultWarmup), boolToInt(plan.UseDefaultCooldown), int(plan.AdjustScope))
		if err != nil {
			return fmt.Errorf("inserting workout: %w", err)
		}
		plan.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading workout id: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE workouts
			 SET name = ?, system_type = ?, use_default_warmup = ?, use_default_cooldown = ?,
			     adjust_scope = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			plan.Name, plan.SystemType, boolToInt(plan.UseDefaultWarmup), boolToInt(plan.UseDefaultCooldown), int(plan.AdjustScope), plan.ID)
		if err != nil {
			return fmt.Errorf("updating workout: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking update: %w", err)
		}
		if n == 0 {
			return workout.ErrWorkoutNotFound
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workout_steps WHERE workout_id = ?`, plan.ID); err != nil {
		return fmt.Errorf("clearing steps: %w", err)
	}

	// Parent links reference step IDs from the caller's plan; remap them to
	// the freshly assigned database IDs as we insert in order.
	idMap := make(map[int64]int64, len(plan.Steps))
	for i := range plan.Steps {
		st := &plan.Steps[i]
		parent := int64(0)
		if st.ParentRepeatID != 0 {
			parent = idMap[st.ParentRepeatID]
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO workout_steps
			 (workout_id, position, type, duration_type, duration_seconds, duration_meters,
			  pace_kph, incline_pct, adjust_mode, adjust_target, target_min_pct, target_max_pct,
			  early_end, repeat_count, parent_repeat_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			plan.ID, i, int(st.Type), int(st.DurationType), st.DurationSeconds, st.DurationMeters,
			st.PaceKph, st.InclinePct, int(st.AdjustMode), int(st.AdjustTarget), st.TargetMinPct, st.TargetMaxPct,
			int(st.EarlyEnd), st.RepeatCount, parent)
		if err != nil {
			return fmt.Errorf("inserting step %d: %w", i, err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading step id: %w", err)
		}
		if st.ID != 0 {
			idMap[st.ID] = newID
		}
		st.ID = newID
		st.ParentRepeatID = parent
		st.Position = i
	}

	return tx.Commit()
}

// GetWorkout returns the plan with its steps ordered by position, or
// workout.ErrWorkoutNotFound.
func (s *Store) GetWorkout(ctx context.Context, id int64) (*workout.WorkoutPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, system_type, use_default_warmup, use_default_cooldown, adjust_scope
		 FROM workouts WHERE id = ?`, id)

	plan, err := scanWorkout(row)
	if err != nil {
		return nil, err
	}

	plan.Steps, err = s.stepsForWorkout(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// SystemWorkoutByType returns the template tagged with the given system
// type, creating it from the built-in definition if absent.
func (s *Store) SystemWorkoutByType(ctx context.Context, systemType string) (*workout.WorkoutPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, system_type, use_default_warmup, use_default_cooldown, adjust_scope
		 FROM workouts WHERE system_type = ? LIMIT 1`, systemType)

	plan, err := scanWorkout(row)
	if err == nil {
		plan.Steps, err = s.stepsForWorkout(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		return plan, nil
	}
	if !errors.Is(err, workout.ErrWorkoutNotFound) {
		return nil, err
	}

	tmpl, ok := builtinTemplate(systemType)
	if !ok {
		return nil, fmt.Errorf("no built-in template for system type %q: %w", systemType, workout.ErrWorkoutNotFound)
	}
	s.logger.Printf("Store: creating system workout %q", systemType)
	if err := s.SaveWorkout(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("creating system workout %q: %w", systemType, err)
	}
	return tmpl, nil
}

// ListWorkouts returns all non-system workouts (without steps), ordered by name.
func (s *Store) ListWorkouts(ctx context.Context) ([]workout.WorkoutPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, system_type, use_default_warmup, use_default_cooldown, adjust_scope
		 FROM workouts WHERE system_type = '' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	defer rows.Close()

	var result []workout.WorkoutPlan
	for rows.Next() {
		plan, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *plan)
	}
	return result, rows.Err()
}

// DeleteWorkout removes the workout and (via cascade) its steps.
func (s *Store) DeleteWorkout(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting workout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if n == 0 {
		return workout.ErrWorkoutNotFound
	}
	return nil
}

// SaveSnapshot stores the crash-recovery snapshot (singleton row).
func (s *Store) SaveSnapshot(ctx context.Context, st *workout.PersistedState, isPaused bool) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_snapshot (id, payload, is_paused, saved_at)
		 VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload,
		     is_paused = excluded.is_paused, saved_at = excluded.saved_at`,
		string(payload), boolToInt(isPaused))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or (nil, false, nil) when none
// exists.
func (s *Store) LoadSnapshot(ctx context.Context) (*workout.PersistedState, bool, error) {
	var payload string
	var isPaused int
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, is_paused FROM execution_snapshot WHERE id = 1`).Scan(&payload, &isPaused)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading snapshot: %w", err)
	}
	var st workout.PersistedState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &st, isPaused != 0, nil
}

// ClearSnapshot removes the crash-recovery snapshot.
func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM execution_snapshot WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// stepsForWorkout loads steps ordered by position. Rows with out-of-range
// enum values (from older versions or hand-edited data) are skipped with a
// log line; a single bad row never fails the whole load.
func (s *Store) stepsForWorkout(ctx context.Context, workoutID int64) ([]workout.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position, type, duration_type, duration_seconds, duration_meters,
		        pace_kph, incline_pct, adjust_mode, adjust_target, target_min_pct, target_max_pct,
		        early_end, repeat_count, parent_repeat_id
		 FROM workout_steps WHERE workout_id = ? ORDER BY position`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}
	defer rows.Close()

	var steps []workout.Step
	for rows.Next() {
		var st workout.Step
		var typ, durType, adjMode, adjTarget, earlyEnd int
		if err := rows.Scan(&st.ID, &st.Position, &typ, &durType, &st.DurationSeconds, &st.DurationMeters,
			&st.PaceKph, &st.InclinePct, &adjMode, &adjTarget, &st.TargetMinPct, &st.TargetMaxPct,
			&earlyEnd, &st.RepeatCount, &st.ParentRepeatID); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		st.Type = workout.StepType(typ)
		st.DurationType = workout.DurationType(durType)
		st.AdjustMode = workout.AutoAdjustMode(adjMode)
		st.AdjustTarget = workout.AdjustmentTarget(adjTarget)
		st.EarlyEnd = workout.EarlyEndCondition(earlyEnd)
		if !st.Type.Valid() || !st.DurationType.Valid() || !st.AdjustMode.Valid() ||
			!st.AdjustTarget.Valid() || !st.EarlyEnd.Valid() {
			s.logger.Printf("Store: skipping step %d of workout %d - unrecognized enum value", st.ID, workoutID)
			continue
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (*workout.WorkoutPlan, error) {
	var plan workout.WorkoutPlan
	var warmup, cooldown, scope int
	err := row.Scan(&plan.ID, &plan.Name, &plan.SystemType, &warmup, &cooldown, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workout.ErrWorkoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning workout: %w", err)
	}
	plan.UseDefaultWarmup = warmup != 0
	plan.UseDefaultCooldown = cooldown != 0
	if s := workout.AdjustmentScope(scope); s.Valid() {
		plan.AdjustScope = s
	}
	return &plan, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
