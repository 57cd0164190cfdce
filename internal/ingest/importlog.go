package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/storage"
)

// LogImport records an import operation's result to the import_logs table
// and the import counters. Failures to write the log are only logged.
func LogImport(store storage.Store, rec metrics.Recorder, log *slog.Logger, userID, source string, result *Result, importErr error, took time.Duration) {
	status := "success"
	var errMsg *string
	if importErr != nil {
		status = "error"
		msg := importErr.Error()
		errMsg = &msg
	}
	if result == nil {
		result = &Result{}
	}
	durationMs := int(took.Milliseconds())

	entry := storage.ImportLog{
		UserID:           userID,
		Source:           source,
		Status:           status,
		SessionsReceived: result.SessionsReceived,
		SessionsImported: result.SessionsImported,
		SetsImported:     result.SetsImported,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	}

	if rec != nil {
		rec.RecordImport(source, status, result.SessionsImported)
	}

	// Detached from the request so a canceled upload still gets logged.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.InsertImportLog(ctx, entry); err != nil {
		log.Error("failed to log import", "source", source, "error", err)
	}
}
