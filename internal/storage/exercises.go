package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/models"
)

// CreateExercise inserts an exercise under an existing session.
func (db *DB) CreateExercise(ctx context.Context, e *models.Exercise) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if e.Sets == nil {
		e.Sets = []models.Set{}
	}
	_, err := db.exec(ctx,
		`INSERT INTO exercises (id, session_id, exercise_name, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Name, db.ts(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting exercise: %w", err)
	}
	return nil
}

// ExerciseOwner returns the user that owns the exercise's session.
func (db *DB) ExerciseOwner(ctx context.Context, id uuid.UUID) (string, error) {
	var owner string
	err := db.queryRow(ctx,
		`SELECT s.user_id FROM exercises e
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE e.id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up exercise %s: %w", id, err)
	}
	return owner, nil
}

// DeleteExercise removes an exercise and, by cascade, its sets.
func (db *DB) DeleteExercise(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := db.exec(ctx, `DELETE FROM exercises WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting exercise %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting exercise %s: %w", id, err)
	}
	return n > 0, nil
}

// CreateSet inserts a set. A set number already used within the exercise
// yields ErrDuplicate.
func (db *DB) CreateSet(ctx context.Context, s *models.Set) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	_, err := db.exec(ctx,
		`INSERT INTO sets (id, exercise_id, set_number, reps, weight, weight_unit, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ExerciseID, s.SetNumber, s.Reps, s.Weight, string(s.WeightUnit), s.Notes, db.ts(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting set %d: %w", s.SetNumber, ErrDuplicate)
		}
		return fmt.Errorf("inserting set %d: %w", s.SetNumber, err)
	}
	return nil
}

// SetOwner returns the user that owns the set's session.
func (db *DB) SetOwner(ctx context.Context, id uuid.UUID) (string, error) {
	var owner string
	err := db.queryRow(ctx,
		`SELECT s.user_id FROM sets st
		 JOIN exercises e ON e.id = st.exercise_id
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE st.id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up set %s: %w", id, err)
	}
	return owner, nil
}

// DeleteSet removes a single set.
func (db *DB) DeleteSet(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := db.exec(ctx, `DELETE FROM sets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting set %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting set %s: %w", id, err)
	}
	return n > 0, nil
}
