package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Workout plans; system templates carry a reserved system_type tag
		`CREATE TABLE IF NOT EXISTS workouts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			system_type TEXT NOT NULL DEFAULT '',
			use_default_warmup INTEGER NOT NULL DEFAULT 0,
			use_default_cooldown INTEGER NOT NULL DEFAULT 0,
			adjust_scope INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workouts_system_type ON workouts(system_type)`,

		// Hierarchical steps; REPEAT children link back via parent_repeat_id
		`CREATE TABLE IF NOT EXISTS workout_steps (
			id INTEGER PRIMARY KEY,
			workout_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			type INTEGER NOT NULL,
			duration_type INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			duration_meters REAL NOT NULL DEFAULT 0,
			pace_kph REAL NOT NULL DEFAULT 0,
			incline_pct REAL NOT NULL DEFAULT 0,
			adjust_mode INTEGER NOT NULL DEFAULT 0,
			adjust_target INTEGER NOT NULL DEFAULT 0,
			target_min_pct REAL NOT NULL DEFAULT 0,
			target_max_pct REAL NOT NULL DEFAULT 0,
			early_end INTEGER NOT NULL DEFAULT 0,
			repeat_count INTEGER NOT NULL DEFAULT 0,
			parent_repeat_id INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workout_steps_workout ON workout_steps(workout_id, position)`,

		// Crash-recovery snapshot of an in-progress execution (singleton row)
		`CREATE TABLE IF NOT EXISTS execution_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL,
			is_paused INTEGER NOT NULL DEFAULT 0,
			saved_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
