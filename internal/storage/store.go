package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/models"
)

var (
	// ErrNotFound is returned when a row addressed by ID does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint,
	// such as a repeated set number within one exercise.
	ErrDuplicate = errors.New("duplicate")
)

// SessionFilter narrows ListSessions. Zero values mean unbounded.
type SessionFilter struct {
	UserID string
	Start  time.Time
	End    time.Time
	Limit  int
}

// Store is the persistence boundary used by the services.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSessionNotes(ctx context.Context, id uuid.UUID, notes *string) error
	DeleteSession(ctx context.Context, id uuid.UUID) (bool, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]models.Session, error)
	DeleteSessionsAt(ctx context.Context, userID, source string, date time.Time) (int64, error)

	CreateExercise(ctx context.Context, e *models.Exercise) error
	ExerciseOwner(ctx context.Context, id uuid.UUID) (string, error)
	DeleteExercise(ctx context.Context, id uuid.UUID) (bool, error)

	CreateSet(ctx context.Context, s *models.Set) error
	SetOwner(ctx context.Context, id uuid.UUID) (string, error)
	DeleteSet(ctx context.Context, id uuid.UUID) (bool, error)

	GetDataStats(ctx context.Context, userID string) (*DataStats, error)
	InsertImportLog(ctx context.Context, log ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID string, limit int) ([]ImportLog, error)

	InTx(ctx context.Context, fn func(Store) error) error
}
