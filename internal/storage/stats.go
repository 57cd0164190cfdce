package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate counts about a user's stored data.
type DataStats struct {
	TotalSessions  int64        `json:"total_sessions"`
	TotalExercises int64        `json:"total_exercises"`
	TotalSets      int64        `json:"total_sets"`
	EarliestData   *time.Time   `json:"earliest_data"`
	LatestData     *time.Time   `json:"latest_data"`
	BySource       []SourceStat `json:"by_source"`
}

// SourceStat counts sessions per origin.
type SourceStat struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID string) (*DataStats, error) {
	stats := &DataStats{BySource: []SourceStat{}}

	var earliest, latest nullTime
	err := db.queryRow(ctx,
		`SELECT COUNT(*), MIN(date), MAX(date) FROM workout_sessions WHERE user_id = ?`, userID,
	).Scan(&stats.TotalSessions, &earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}
	stats.EarliestData, stats.LatestData = earliest.ptr(), latest.ptr()

	err = db.queryRow(ctx,
		`SELECT COUNT(*) FROM exercises e
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE s.user_id = ?`, userID,
	).Scan(&stats.TotalExercises)
	if err != nil {
		return nil, fmt.Errorf("counting exercises: %w", err)
	}

	err = db.queryRow(ctx,
		`SELECT COUNT(*) FROM sets st
		 JOIN exercises e ON e.id = st.exercise_id
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE s.user_id = ?`, userID,
	).Scan(&stats.TotalSets)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	rows, err := db.query(ctx,
		`SELECT source, COUNT(*)
		 FROM workout_sessions
		 WHERE user_id = ?
		 GROUP BY source
		 ORDER BY COUNT(*) DESC, source`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s SourceStat
		if err := rows.Scan(&s.Source, &s.Count); err != nil {
			return nil, fmt.Errorf("scanning source stat: %w", err)
		}
		stats.BySource = append(stats.BySource, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
