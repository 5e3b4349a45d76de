package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/template"
)

// InterruptedMessage is the error recorded for an extraction that never finished.
const InterruptedMessage = "extraction interrupted"

// TemplateRepository persists extracted templates and their extraction status.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// BeginExtraction atomically moves the exercise's template into the processing state.
// It reports false, without error, when an extraction is already in progress.
func (r *TemplateRepository) BeginExtraction(exerciseID string) (bool, error) {
	ok, err := (&ExerciseRepository{db: r.db}).exists(exerciseID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}

	result, err := r.db.Exec(
		`INSERT INTO templates (exercise_id, status, error_message, updated_at)
		 VALUES (?, 'processing', '', ?)
		 ON CONFLICT(exercise_id) DO UPDATE SET status = 'processing', error_message = '', updated_at = excluded.updated_at
		 WHERE templates.status != 'processing'`,
		exerciseID, time.Now(),
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// SaveTemplate replaces the exercise's phases and keyframes and marks the template ready.
func (r *TemplateRepository) SaveTemplate(exerciseID string, t *template.Template, keyframes []template.Keyframe) error {
	if err := t.Validate(); err != nil {
		return err
	}
	seq, err := json.Marshal(t.RepSequence)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"template_phases", "template_keyframes"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE exercise_id = ?`, exerciseID); err != nil {
			return err
		}
	}

	for i, p := range t.Phases {
		data, err := json.Marshal(p.Angles)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO template_phases (exercise_id, sequence, name, timestamp_ms, angles) VALUES (?, ?, ?, ?, ?)`,
			exerciseID, i, p.Name, p.TimestampMs, string(data),
		); err != nil {
			return err
		}
	}

	for i, k := range keyframes {
		lms, err := json.Marshal(k.Landmarks)
		if err != nil {
			return err
		}
		ang, err := json.Marshal(k.Angles)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO template_keyframes (exercise_id, sequence, timestamp_ms, landmarks, angles) VALUES (?, ?, ?, ?, ?)`,
			exerciseID, i, k.TimestampMs, string(lms), string(ang),
		); err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		`INSERT INTO templates (exercise_id, status, error_message, rep_sequence, tolerance_degrees, updated_at)
		 VALUES (?, 'ready', '', ?, ?, ?)
		 ON CONFLICT(exercise_id) DO UPDATE SET status = 'ready', error_message = '',
		   rep_sequence = excluded.rep_sequence, tolerance_degrees = excluded.tolerance_degrees,
		   updated_at = excluded.updated_at`,
		exerciseID, string(seq), t.ToleranceDegrees, time.Now(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MarkFailed records a failed extraction. Phases from an earlier successful extraction are kept
// but are not served while the status is error.
func (r *TemplateRepository) MarkFailed(exerciseID, message string) error {
	result, err := r.db.Exec(
		`UPDATE templates SET status = 'error', error_message = ?, updated_at = ? WHERE exercise_id = ?`,
		message, time.Now(), exerciseID,
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

// RecoverStale marks extractions left processing by an earlier process as failed so they can
// be started again. It returns the number of templates recovered.
func (r *TemplateRepository) RecoverStale() (int, error) {
	result, err := r.db.Exec(
		`UPDATE templates SET status = 'error', error_message = ?, updated_at = ? WHERE status = 'processing'`,
		InterruptedMessage, time.Now(),
	)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// Status returns the extraction status, StatusNone when nothing was ever extracted.
func (r *TemplateRepository) Status(exerciseID string) (template.Status, string, error) {
	var status, msg string
	err := r.db.QueryRow(`SELECT status, error_message FROM templates WHERE exercise_id = ?`, exerciseID).Scan(&status, &msg)
	if errors.Is(err, sql.ErrNoRows) {
		return template.StatusNone, "", nil
	}
	if err != nil {
		return "", "", err
	}
	return template.Status(status), msg, nil
}

// Get returns the template document for an exercise. Phases are only populated when the
// status is ready.
func (r *TemplateRepository) Get(exerciseID string) (*template.Document, error) {
	ok, err := (&ExerciseRepository{db: r.db}).exists(exerciseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	var status, msg, seq string
	var tol float64
	err = r.db.QueryRow(
		`SELECT status, error_message, rep_sequence, tolerance_degrees FROM templates WHERE exercise_id = ?`,
		exerciseID,
	).Scan(&status, &msg, &seq, &tol)
	if errors.Is(err, sql.ErrNoRows) {
		doc := template.NewDocument(nil, template.StatusNone, "")
		return &doc, nil
	}
	if err != nil {
		return nil, err
	}

	if template.Status(status) != template.StatusReady {
		doc := template.NewDocument(nil, template.Status(status), msg)
		return &doc, nil
	}

	t := &template.Template{ToleranceDegrees: tol}
	if err := json.Unmarshal([]byte(seq), &t.RepSequence); err != nil {
		return nil, fmt.Errorf("decode rep sequence: %w", err)
	}
	if t.Phases, err = r.phases(exerciseID); err != nil {
		return nil, err
	}

	doc := template.NewDocument(t, template.StatusReady, "")
	return &doc, nil
}

func (r *TemplateRepository) phases(exerciseID string) ([]template.Phase, error) {
	rows, err := r.db.Query(
		`SELECT name, timestamp_ms, angles FROM template_phases WHERE exercise_id = ? ORDER BY sequence`,
		exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phases := []template.Phase{}
	for rows.Next() {
		var p template.Phase
		var data string
		if err := rows.Scan(&p.Name, &p.TimestampMs, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &p.Angles); err != nil {
			return nil, fmt.Errorf("decode phase %q: %w", p.Name, err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// Keyframes returns the keyframes of the last successful extraction in timestamp order.
func (r *TemplateRepository) Keyframes(exerciseID string) ([]template.Keyframe, error) {
	rows, err := r.db.Query(
		`SELECT timestamp_ms, landmarks, angles FROM template_keyframes WHERE exercise_id = ? ORDER BY sequence`,
		exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keyframes := []template.Keyframe{}
	for rows.Next() {
		var k template.Keyframe
		var lms, ang string
		if err := rows.Scan(&k.TimestampMs, &lms, &ang); err != nil {
			return nil, err
		}
		k.Landmarks = []detector.Keypoint{}
		if err := json.Unmarshal([]byte(lms), &k.Landmarks); err != nil {
			return nil, fmt.Errorf("decode keyframe at %dms: %w", k.TimestampMs, err)
		}
		k.Angles = angles.Set{}
		if err := json.Unmarshal([]byte(ang), &k.Angles); err != nil {
			return nil, fmt.Errorf("decode keyframe at %dms: %w", k.TimestampMs, err)
		}
		keyframes = append(keyframes, k)
	}
	return keyframes, rows.Err()
}
