// Package ingest defines the contract shared by bulk workout importers.
package ingest

import (
	"context"
	"io"
)

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived  int  `json:"sessions_received"`
	SessionsImported  int  `json:"sessions_imported"`
	SessionsReplaced  int  `json:"sessions_replaced"`
	ExercisesImported int  `json:"exercises_imported"`
	SetsImported      int  `json:"sets_imported"`
	WarmupsSkipped    int  `json:"warmups_skipped,omitempty"`
	DryRun            bool `json:"dry_run,omitempty"`

	Message string `json:"message,omitempty"`
}

// Provider turns an export stream into stored sessions for one user.
type Provider interface {
	Source() string
	Ingest(ctx context.Context, r io.Reader, userID string) (*Result, error)
}
