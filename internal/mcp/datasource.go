package mcp

import (
	"context"
	"time"

	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/stats"
	"github.com/meltforce/gymlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *stats.Service
// (local) and HTTPClient (remote via REST API) satisfy this interface.
// Zero start or end times leave that side of the range open.
type DataSource interface {
	ListSessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error)
	Summary(ctx context.Context, userID string, start, end time.Time, unit models.WeightUnit) (*stats.Summary, error)
	Volumes(ctx context.Context, userID string, start, end time.Time, unit models.WeightUnit) ([]stats.VolumePoint, error)
	Frequencies(ctx context.Context, userID string, start, end time.Time, exercise string) ([]stats.Frequency, error)
	PersonalRecords(ctx context.Context, userID string, unit models.WeightUnit) ([]stats.Record, error)
	DataStats(ctx context.Context, userID string) (*storage.DataStats, error)
}

// Compile-time check: *stats.Service satisfies DataSource.
var _ DataSource = (*stats.Service)(nil)
