package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ImportLog represents a single import operation's outcome.
type ImportLog struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	Status           string    `json:"status"`
	SessionsReceived int       `json:"sessions_received"`
	SessionsImported int       `json:"sessions_imported"`
	SetsImported     int       `json:"sets_imported"`
	DurationMs       *int      `json:"duration_ms"`
	ErrorMessage     *string   `json:"error_message"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now()
	}
	var id int64
	err := db.queryRow(ctx,
		`INSERT INTO import_logs (user_id, created_at, source, status, sessions_received,
		 sessions_imported, sets_imported, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		log.UserID, db.ts(log.CreatedAt), log.Source, log.Status, log.SessionsReceived,
		log.SessionsImported, log.SetsImported, log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return id, nil
}

// QueryImportLogs returns the most recent import logs for a user.
func (db *DB) QueryImportLogs(ctx context.Context, userID string, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.query(ctx,
		`SELECT id, user_id, created_at, source, status, sessions_received,
		 sessions_imported, sets_imported, duration_ms, error_message
		 FROM import_logs
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	result := []ImportLog{}
	for rows.Next() {
		var (
			l        ImportLog
			created  nullTime
			duration sql.NullInt64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.UserID, &created, &l.Source, &l.Status,
			&l.SessionsReceived, &l.SessionsImported, &l.SetsImported, &duration, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		l.CreatedAt = created.Time
		if duration.Valid {
			d := int(duration.Int64)
			l.DurationMs = &d
		}
		if errMsg.Valid {
			l.ErrorMessage = &errMsg.String
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
