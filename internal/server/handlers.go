package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/ingest"
	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/stats"
)

// maxImportBody caps uploaded export files.
const maxImportBody = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func pathID(r *http.Request, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, models.NewValidationError("id", "invalid "+what+" ID")
	}
	return id, nil
}

type createSessionRequest struct {
	UserID string  `json:"user_id"`
	Notes  *string `json:"notes"`
	Date   string  `json:"date"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	uid, err := requestUser(r, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var date time.Time
	if req.Date != "" {
		if date, err = parseTime(req.Date, false); err != nil {
			s.writeError(w, r, models.NewValidationError("date", "invalid date: "+req.Date))
			return
		}
	}
	sess, err := s.Workouts.CreateSession(r.Context(), uid, req.Notes, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, err := requestUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, end, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sessions, err := s.Stats.ListSessions(r.Context(), uid, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "session")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Workouts.GetSession(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "session")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Notes *string `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Workouts.UpdateSessionNotes(r.Context(), userIDFromContext(r), id, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "session", s.Workouts.DeleteSession)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "exercise", s.Workouts.DeleteExercise)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "set", s.Workouts.DeleteSet)
}

// handleDelete answers {deleted: false} for IDs that no longer exist, so
// repeating a delete is harmless.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, what string,
	del func(ctx context.Context, userID string, id uuid.UUID) (bool, error)) {
	id, err := pathID(r, what)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted, err := del(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type createExerciseRequest struct {
	SessionID    uuid.UUID `json:"session_id"`
	ExerciseName string    `json:"exercise_name"`
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ex, err := s.Workouts.AddExercise(r.Context(), userIDFromContext(r), req.SessionID, req.ExerciseName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

type createSetRequest struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	SetNumber  int       `json:"set_number"`
	Reps       int       `json:"reps"`
	Weight     float64   `json:"weight"`
	WeightUnit string    `json:"weight_unit"`
	Notes      *string   `json:"notes"`
}

func (s *Server) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	var req createSetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	unit, err := models.ParseWeightUnit(req.WeightUnit)
	if err != nil {
		s.writeError(w, r, models.NewSetError(req.SetNumber, "weight_unit", err.Error()))
		return
	}
	set, err := s.Workouts.AddSet(r.Context(), userIDFromContext(r), req.ExerciseID, models.SetInput{
		SetNumber:  req.SetNumber,
		Reps:       req.Reps,
		Weight:     req.Weight,
		WeightUnit: unit,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uid := userIDFromContext(r)
	sessions, err := s.Stats.ListSessions(r.Context(), uid, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="gymlog-export.csv"`)
	if err := stats.WriteCSV(w, sessions); err != nil {
		s.Log.Error("csv export failed", "user", uid, "error", err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	unit, err := parseUnit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.Stats.Summary(r.Context(), userIDFromContext(r), start, end, unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	unit, err := parseUnit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.Stats.Volumes(r.Context(), userIDFromContext(r), start, end, unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleFrequency(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	freqs, err := s.Stats.Frequencies(r.Context(), userIDFromContext(r), start, end, r.URL.Query().Get("exercise"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, freqs)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	unit, err := parseUnit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.Stats.PersonalRecords(r.Context(), userIDFromContext(r), unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDataStats(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Stats.DataStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	result, err := s.Alpha.Ingest(r.Context(), r.Body, uid)
	ingest.LogImport(s.Store, s.Metrics, s.Log, uid, s.Alpha.Source(), result, err, time.Since(start))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.Store.QueryImportLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, r, models.NewPersistenceError("loading import logs", err))
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
