package store

import (
	"database/sql"
	"errors"
	"time"
)

// Exercise represents an exercise definition stored in the database.
type Exercise struct {
	ID          string
	Name        string
	Description string
	// VideoPath is the demonstration video templates are extracted from.
	VideoPath string
	// ConfigPath optionally names a segment configuration used when no template is ready.
	ConfigPath string
	TargetReps int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExerciseRepository provides CRUD operations for exercises.
type ExerciseRepository struct {
	db *sql.DB
}

// Exercises returns the exercise repository for this store.
func (s *Store) Exercises() *ExerciseRepository {
	return &ExerciseRepository{db: s.db}
}

const exerciseColumns = `id, name, description, video_path, config_path, target_reps, created_at, updated_at`

func scanExercise(row interface{ Scan(...any) error }) (*Exercise, error) {
	e := &Exercise{}
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.VideoPath, &e.ConfigPath, &e.TargetReps, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exercise into the database.
func (r *ExerciseRepository) Create(e *Exercise) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO exercises (`+exerciseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, e.VideoPath, e.ConfigPath, e.TargetReps, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetByID retrieves an exercise by its ID.
func (r *ExerciseRepository) GetByID(id string) (*Exercise, error) {
	e, err := scanExercise(r.db.QueryRow(`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetByName retrieves an exercise by its name.
func (r *ExerciseRepository) GetByName(name string) (*Exercise, error) {
	e, err := scanExercise(r.db.QueryRow(`SELECT `+exerciseColumns+` FROM exercises WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List retrieves all exercises, newest first.
func (r *ExerciseRepository) List() ([]*Exercise, error) {
	rows, err := r.db.Query(`SELECT ` + exerciseColumns + ` FROM exercises ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []*Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exercises, nil
}

// Update updates an existing exercise in the database.
func (r *ExerciseRepository) Update(e *Exercise) error {
	e.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE exercises SET name = ?, description = ?, video_path = ?, config_path = ?, target_reps = ?, updated_at = ?
		 WHERE id = ?`,
		e.Name, e.Description, e.VideoPath, e.ConfigPath, e.TargetReps, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an exercise and, by cascade, its template and sessions.
func (r *ExerciseRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM exercises WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *ExerciseRepository) exists(id string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM exercises WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
