package store

import (
	"database/sql"
	"time"
)

// SessionRecord is a finished live session.
type SessionRecord struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exercise_id"`
	Mode       string    `json:"mode"`
	Reps       int       `json:"reps"`
	TargetReps int       `json:"target_reps"`
	Completed  bool      `json:"completed"`
	Frames     int       `json:"frames"`
	Dropped    int       `json:"dropped"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// SessionRepository stores session records.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session record.
func (r *SessionRepository) Create(rec *SessionRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, exercise_id, mode, reps, target_reps, completed, frames, dropped, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ExerciseID, rec.Mode, rec.Reps, rec.TargetReps, rec.Completed,
		rec.Frames, rec.Dropped, rec.StartedAt, rec.EndedAt,
	)
	return err
}

// ListByExercise returns an exercise's sessions, most recent first.
func (r *SessionRepository) ListByExercise(exerciseID string) ([]*SessionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, exercise_id, mode, reps, target_reps, completed, frames, dropped, started_at, ended_at
		 FROM sessions WHERE exercise_id = ? ORDER BY started_at DESC`,
		exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*SessionRecord{}
	for rows.Next() {
		rec := &SessionRecord{}
		var completed int
		if err := rows.Scan(&rec.ID, &rec.ExerciseID, &rec.Mode, &rec.Reps, &rec.TargetReps, &completed,
			&rec.Frames, &rec.Dropped, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		rec.Completed = completed != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TotalReps sums the reps of every session of an exercise.
func (r *SessionRepository) TotalReps(exerciseID string) (int, error) {
	var total int
	err := r.db.QueryRow(`SELECT COALESCE(SUM(reps), 0) FROM sessions WHERE exercise_id = ?`, exerciseID).Scan(&total)
	return total, err
}
