package stats

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/storage"
)

// Service answers history and report queries for one user at a time.
type Service struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store storage.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// ListSessions returns the user's sessions, most recent first. Zero bounds
// are open.
func (s *Service) ListSessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error) {
	sessions, err := s.store.ListSessions(ctx, storage.SessionFilter{UserID: userID, Start: start, End: end})
	if err != nil {
		return nil, s.fail("listing sessions", err)
	}
	return sessions, nil
}

// RecentSessions returns the user's n most recent sessions.
func (s *Service) RecentSessions(ctx context.Context, userID string, n int) ([]models.Session, error) {
	sessions, err := s.store.ListSessions(ctx, storage.SessionFilter{UserID: userID, Limit: n})
	if err != nil {
		return nil, s.fail("loading recent sessions", err)
	}
	return sessions, nil
}

func (s *Service) Summary(ctx context.Context, userID string, start, end time.Time, unit models.WeightUnit) (*Summary, error) {
	sessions, err := s.ListSessions(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	sum := Summarize(sessions, unit, s.now())
	return &sum, nil
}

func (s *Service) Volumes(ctx context.Context, userID string, start, end time.Time, unit models.WeightUnit) ([]VolumePoint, error) {
	sessions, err := s.ListSessions(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return Volumes(sessions, unit), nil
}

// Frequencies lists exercise counts in the range. A non-empty exercise
// restricts the result to that exercise.
func (s *Service) Frequencies(ctx context.Context, userID string, start, end time.Time, exercise string) ([]Frequency, error) {
	sessions, err := s.ListSessions(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if exercise != "" {
		return []Frequency{{Exercise: models.NormalizeExerciseName(exercise), Sessions: ExerciseFrequency(sessions, exercise)}}, nil
	}
	return Frequencies(sessions), nil
}

// PersonalRecords covers the user's whole history.
func (s *Service) PersonalRecords(ctx context.Context, userID string, unit models.WeightUnit) ([]Record, error) {
	sessions, err := s.ListSessions(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return PersonalRecords(sessions, unit), nil
}

func (s *Service) DataStats(ctx context.Context, userID string) (*storage.DataStats, error) {
	ds, err := s.store.GetDataStats(ctx, userID)
	if err != nil {
		return nil, s.fail("loading data stats", err)
	}
	return ds, nil
}

// ExportCSV writes the sessions in range as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, userID string, start, end time.Time) error {
	sessions, err := s.ListSessions(ctx, userID, start, end)
	if err != nil {
		return err
	}
	return WriteCSV(w, sessions)
}

func (s *Service) fail(op string, err error) error {
	if _, ok := models.AsError(err); ok {
		return err
	}
	s.log.Error(op+" failed", "error", err)
	return models.NewPersistenceError(op, err)
}
