// Package workout owns the write side of workout history: the logging
// workflow that turns parsed sets into a session, exercise and sets in one
// transaction, and the direct create/delete operations behind the REST API.
package workout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/storage"
)

// MaxNotesLength bounds free-text notes on sessions and sets.
const MaxNotesLength = 2000

// Service applies ownership and validation rules on top of a Store.
type Service struct {
	store   storage.Store
	metrics metrics.Recorder
	log     *slog.Logger
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(store storage.Store, rec metrics.Recorder, log *slog.Logger) *Service {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Service{store: store, metrics: rec, log: log}
}

// LogRequest is one parsed exercise to record for a user.
type LogRequest struct {
	UserID       string
	SessionID    *uuid.UUID
	ExerciseName string
	Sets         []models.SetInput
	// Notes and Date apply only when a new session is created.
	Notes *string
	Date  time.Time
}

// LogResult identifies what LogWorkout persisted.
type LogResult struct {
	SessionID      uuid.UUID   `json:"session_id"`
	ExerciseID     uuid.UUID   `json:"exercise_id"`
	SetsCreated    []uuid.UUID `json:"sets_created"`
	SessionCreated bool        `json:"session_created"`
}

// LogWorkout validates the request, then writes the session (when none is
// given), the exercise and every set inside one transaction. Any failure
// leaves no rows behind.
func (s *Service) LogWorkout(ctx context.Context, req LogRequest) (*LogResult, error) {
	if err := requireUser(req.UserID); err != nil {
		return nil, err
	}
	name := models.NormalizeExerciseName(req.ExerciseName)
	if name == "" {
		return nil, models.NewValidationError("exercise_name", "exercise name is required")
	}
	if err := checkNotes("notes", req.Notes); err != nil {
		return nil, err
	}
	if err := models.ValidateSets(req.Sets); err != nil {
		return nil, err
	}
	for _, in := range req.Sets {
		if err := checkNotes("notes", in.Notes); err != nil {
			return nil, err
		}
	}

	result := &LogResult{}
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if req.SessionID != nil {
			sess, err := tx.GetSession(ctx, *req.SessionID)
			if errors.Is(err, storage.ErrNotFound) {
				return models.NewNotFoundError("session")
			}
			if err != nil {
				return err
			}
			if sess.UserID != req.UserID {
				return models.NewForbiddenError("session belongs to another user")
			}
			result.SessionID = sess.ID
		} else {
			sess := &models.Session{UserID: req.UserID, Notes: req.Notes, Date: req.Date}
			if err := tx.CreateSession(ctx, sess); err != nil {
				return err
			}
			result.SessionID = sess.ID
			result.SessionCreated = true
		}

		ex := &models.Exercise{SessionID: result.SessionID, Name: name}
		if err := tx.CreateExercise(ctx, ex); err != nil {
			return err
		}
		result.ExerciseID = ex.ID

		result.SetsCreated = make([]uuid.UUID, 0, len(req.Sets))
		for _, in := range req.Sets {
			set := setFromInput(ex.ID, in)
			if err := tx.CreateSet(ctx, set); err != nil {
				if errors.Is(err, storage.ErrDuplicate) {
					return &models.Error{Kind: models.KindValidation, Code: models.CodeDuplicateSet,
						Field: "set_number", SetNumber: in.SetNumber, Message: "set number already used in this exercise"}
				}
				return err
			}
			result.SetsCreated = append(result.SetsCreated, set.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.translate("logging workout", err)
	}

	s.metrics.RecordWorkoutLogged(len(result.SetsCreated))
	s.log.Info("workout logged",
		"user", req.UserID,
		"session_id", result.SessionID,
		"exercise", name,
		"sets", len(result.SetsCreated),
		"new_session", result.SessionCreated,
	)
	return result, nil
}

// CreateSession starts an empty session. A zero date means now.
func (s *Service) CreateSession(ctx context.Context, userID string, notes *string, date time.Time) (*models.Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := checkNotes("notes", notes); err != nil {
		return nil, err
	}
	sess := &models.Session{UserID: userID, Notes: notes, Date: date, Exercises: []models.Exercise{}}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, s.translate("creating session", err)
	}
	return sess, nil
}

// GetSession returns a session owned by userID.
func (s *Service) GetSession(ctx context.Context, userID string, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.NewNotFoundError("session")
	}
	if err != nil {
		return nil, s.translate("loading session", err)
	}
	if sess.UserID != userID {
		return nil, models.NewForbiddenError("session belongs to another user")
	}
	return sess, nil
}

// UpdateSessionNotes replaces the notes on a session owned by userID.
func (s *Service) UpdateSessionNotes(ctx context.Context, userID string, id uuid.UUID, notes *string) (*models.Session, error) {
	if err := checkNotes("notes", notes); err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSessionNotes(ctx, id, notes); err != nil {
		return nil, s.translate("updating session", err)
	}
	return s.GetSession(ctx, userID, id)
}

// DeleteSession removes a session and everything under it. Deleting an ID
// that does not exist succeeds and reports false.
func (s *Service) DeleteSession(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	return s.deleteOwned(ctx, "session", userID,
		func(st storage.Store) (string, error) {
			sess, err := st.GetSession(ctx, id)
			if err != nil {
				return "", err
			}
			return sess.UserID, nil
		},
		func(st storage.Store) (bool, error) { return st.DeleteSession(ctx, id) },
	)
}

// AddExercise appends an exercise to a session owned by userID.
func (s *Service) AddExercise(ctx context.Context, userID string, sessionID uuid.UUID, name string) (*models.Exercise, error) {
	name = models.NormalizeExerciseName(name)
	if name == "" {
		return nil, models.NewValidationError("exercise_name", "exercise name is required")
	}
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	ex := &models.Exercise{SessionID: sessionID, Name: name}
	if err := s.store.CreateExercise(ctx, ex); err != nil {
		return nil, s.translate("creating exercise", err)
	}
	return ex, nil
}

// DeleteExercise removes an exercise and its sets.
func (s *Service) DeleteExercise(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	return s.deleteOwned(ctx, "exercise", userID,
		func(st storage.Store) (string, error) { return st.ExerciseOwner(ctx, id) },
		func(st storage.Store) (bool, error) { return st.DeleteExercise(ctx, id) },
	)
}

// AddSet records one set on an exercise owned by userID.
func (s *Service) AddSet(ctx context.Context, userID string, exerciseID uuid.UUID, in models.SetInput) (*models.Set, error) {
	batch := []models.SetInput{in}
	if err := models.ValidateSets(batch); err != nil {
		return nil, err
	}
	if err := checkNotes("notes", in.Notes); err != nil {
		return nil, err
	}
	owner, err := s.store.ExerciseOwner(ctx, exerciseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.NewNotFoundError("exercise")
	}
	if err != nil {
		return nil, s.translate("loading exercise", err)
	}
	if owner != userID {
		return nil, models.NewForbiddenError("exercise belongs to another user")
	}

	set := setFromInput(exerciseID, batch[0])
	if err := s.store.CreateSet(ctx, set); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, &models.Error{Kind: models.KindValidation, Code: models.CodeDuplicateSet,
				Field: "set_number", SetNumber: in.SetNumber, Message: "set number already used in this exercise"}
		}
		return nil, s.translate("creating set", err)
	}
	return set, nil
}

// DeleteSet removes a single set.
func (s *Service) DeleteSet(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	return s.deleteOwned(ctx, "set", userID,
		func(st storage.Store) (string, error) { return st.SetOwner(ctx, id) },
		func(st storage.Store) (bool, error) { return st.DeleteSet(ctx, id) },
	)
}

// deleteOwned checks ownership and deletes within one transaction. A missing
// row is not an error.
func (s *Service) deleteOwned(ctx context.Context, what, userID string,
	owner func(storage.Store) (string, error), del func(storage.Store) (bool, error)) (bool, error) {
	var deleted bool
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		o, err := owner(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if o != userID {
			return models.NewForbiddenError(what + " belongs to another user")
		}
		deleted, err = del(tx)
		return err
	})
	if err != nil {
		return false, s.translate("deleting "+what, err)
	}
	if deleted {
		s.log.Info(what+" deleted", "user", userID)
	}
	return deleted, nil
}

// translate passes typed errors through and wraps storage failures.
func (s *Service) translate(op string, err error) error {
	if _, ok := models.AsError(err); ok {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewNotFoundError("record")
	}
	s.log.Error(op+" failed", "error", err)
	return models.NewPersistenceError(op, err)
}

func setFromInput(exerciseID uuid.UUID, in models.SetInput) *models.Set {
	unit := in.WeightUnit
	if unit == "" {
		unit = models.DefaultUnit
	}
	return &models.Set{
		ExerciseID: exerciseID,
		SetNumber:  in.SetNumber,
		Reps:       in.Reps,
		Weight:     in.Weight,
		WeightUnit: unit,
		Notes:      in.Notes,
	}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.NewValidationError("user_id", "user is required")
	}
	return nil
}

func checkNotes(field string, notes *string) error {
	if notes != nil && len(*notes) > MaxNotesLength {
		return models.NewValidationError(field, "notes are too long")
	}
	return nil
}
