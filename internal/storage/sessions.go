package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/models"
)

// CreateSession inserts a session. ID, Date, CreatedAt and Source are filled
// in when unset.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	if s.Date.IsZero() {
		s.Date = s.CreatedAt
	}
	s.Date = s.Date.UTC().Truncate(time.Microsecond)
	if s.Source == "" {
		s.Source = models.SourceAPI
	}

	_, err := db.exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, date, notes, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, db.ts(s.Date), s.Notes, s.Source, db.ts(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting session %s: %w", s.ID, ErrDuplicate)
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession returns one session with its exercises and sets.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sessions, err := db.loadSessions(ctx, `id = ?`, []any{id}, 0)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

// UpdateSessionNotes replaces a session's notes; nil clears them.
func (db *DB) UpdateSessionNotes(ctx context.Context, id uuid.UUID, notes *string) error {
	res, err := db.exec(ctx, `UPDATE workout_sessions SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return fmt.Errorf("updating session notes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session notes: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session; exercises and sets cascade. It reports
// whether a row was deleted.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := db.exec(ctx, `DELETE FROM workout_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return n > 0, nil
}

// DeleteSessionsAt removes a user's sessions from one source that start at
// exactly date. Re-imports use it to replace earlier copies.
func (db *DB) DeleteSessionsAt(ctx context.Context, userID, source string, date time.Time) (int64, error) {
	res, err := db.exec(ctx,
		`DELETE FROM workout_sessions WHERE user_id = ? AND source = ? AND date = ?`,
		userID, source, db.ts(date.Truncate(time.Microsecond)))
	if err != nil {
		return 0, fmt.Errorf("deleting %s sessions at %s: %w", source, date.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

// ListSessions returns a user's sessions, most recent date first (creation
// time breaks ties), with exercises and sets nested.
func (db *DB) ListSessions(ctx context.Context, f SessionFilter) ([]models.Session, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if !f.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, db.ts(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, db.ts(f.End))
	}
	return db.loadSessions(ctx, strings.Join(where, " AND "), args, f.Limit)
}

// loadSessions selects sessions matching cond (written against the
// workout_sessions columns) and assembles the nested tree from one join.
func (db *DB) loadSessions(ctx context.Context, cond string, args []any, limit int) ([]models.Session, error) {
	inner := `SELECT id FROM workout_sessions WHERE ` + cond + ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		inner += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.query(ctx,
		`SELECT s.id, s.user_id, s.date, s.notes, s.source, s.created_at,
		        e.id, e.exercise_name, e.created_at,
		        st.id, st.set_number, st.reps, st.weight, st.weight_unit, st.notes, st.created_at
		 FROM workout_sessions s
		 LEFT JOIN exercises e ON e.session_id = s.id
		 LEFT JOIN sets st ON st.exercise_id = e.id
		 WHERE s.id IN (`+inner+`)
		 ORDER BY s.date DESC, s.created_at DESC, s.id, e.created_at, e.id, st.set_number`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var (
			s                      models.Session
			sDate, sCreated        nullTime
			sNotes                 sql.NullString
			exID, setID            uuid.NullUUID
			exName, unit, setNotes sql.NullString
			exCreated, setCreated  nullTime
			setNumber, reps        sql.NullInt64
			weight                 sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.UserID, &sDate, &sNotes, &s.Source, &sCreated,
			&exID, &exName, &exCreated,
			&setID, &setNumber, &reps, &weight, &unit, &setNotes, &setCreated); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}

		if n := len(result); n == 0 || result[n-1].ID != s.ID {
			s.Date, s.CreatedAt = sDate.Time, sCreated.Time
			if sNotes.Valid {
				notes := sNotes.String
				s.Notes = &notes
			}
			s.Exercises = []models.Exercise{}
			result = append(result, s)
		}
		cur := &result[len(result)-1]
		if !exID.Valid {
			continue
		}

		if n := len(cur.Exercises); n == 0 || cur.Exercises[n-1].ID != exID.UUID {
			cur.Exercises = append(cur.Exercises, models.Exercise{
				ID:        exID.UUID,
				SessionID: cur.ID,
				Name:      exName.String,
				CreatedAt: exCreated.Time,
				Sets:      []models.Set{},
			})
		}
		if !setID.Valid {
			continue
		}
		ex := &cur.Exercises[len(cur.Exercises)-1]
		set := models.Set{
			ID:         setID.UUID,
			ExerciseID: ex.ID,
			SetNumber:  int(setNumber.Int64),
			Reps:       int(reps.Int64),
			Weight:     weight.Float64,
			WeightUnit: models.WeightUnit(unit.String),
			CreatedAt:  setCreated.Time,
		}
		if setNotes.Valid {
			notes := setNotes.String
			set.Notes = &notes
		}
		ex.Sets = append(ex.Sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return result, nil
}
