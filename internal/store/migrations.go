package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Exercises table - one row per exercise, with its demonstration video
		`CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			video_path TEXT NOT NULL DEFAULT '',
			config_path TEXT NOT NULL DEFAULT '',
			target_reps INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Templates table - extraction status and the repetition definition.
		// The status column guards against concurrent extractions.
		`CREATE TABLE IF NOT EXISTS templates (
			exercise_id TEXT PRIMARY KEY REFERENCES exercises(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK(status IN ('processing', 'ready', 'error')),
			error_message TEXT NOT NULL DEFAULT '',
			rep_sequence TEXT NOT NULL DEFAULT '[]',
			tolerance_degrees REAL NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Template phases table - target angles per phase, stored as JSON
		`CREATE TABLE IF NOT EXISTS template_phases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			name TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			angles TEXT NOT NULL
		)`,

		// Template keyframes table - every sampled pose of the last extraction
		`CREATE TABLE IF NOT EXISTS template_keyframes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			landmarks TEXT NOT NULL,
			angles TEXT NOT NULL
		)`,

		// Sessions table - one row per finished live session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
			mode TEXT NOT NULL,
			reps INTEGER NOT NULL DEFAULT 0,
			target_reps INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_template_phases_exercise_id ON template_phases(exercise_id)`,
		`CREATE INDEX IF NOT EXISTS idx_template_keyframes_exercise_id ON template_keyframes(exercise_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_exercise_id ON sessions(exercise_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
