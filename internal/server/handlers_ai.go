package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/ai"
	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/workout"
)

// multipartOverhead leaves room for form boundaries and other fields around
// the audio file.
const multipartOverhead = 1 << 20

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ai.MaxAudioBytes+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, &models.Error{
				Kind:    models.KindValidation,
				Code:    models.CodeTooLarge,
				Field:   "audio_file",
				Message: fmt.Sprintf("audio file exceeds %d MB", ai.MaxAudioBytes>>20),
			})
			return
		}
		s.writeError(w, r, models.NewValidationError("audio_file", "expected a multipart form with audio_file"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		s.writeError(w, r, models.NewValidationError("audio_file", "audio_file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	text, err := s.Transcriber.Transcribe(r.Context(), ai.Audio{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleParseWorkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	parsed, err := s.Parser.Parse(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

type logWorkoutRequest struct {
	UserID       string            `json:"user_id"`
	SessionID    *uuid.UUID        `json:"session_id"`
	ExerciseName string            `json:"exercise_name"`
	Sets         []json.RawMessage `json:"sets"`
	Notes        *string           `json:"notes"`
	Date         string            `json:"date"`
}

type logWorkoutResponse struct {
	SessionID   uuid.UUID   `json:"session_id"`
	ExerciseID  uuid.UUID   `json:"exercise_id"`
	SetsCreated []uuid.UUID `json:"sets_created"`
	Message     string      `json:"message"`
}

func (s *Server) handleLogWorkout(w http.ResponseWriter, r *http.Request) {
	var req logWorkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	uid, err := requestUser(r, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sets, err := models.SetsFromRaw(req.Sets)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lr := workout.LogRequest{
		UserID:       uid,
		SessionID:    req.SessionID,
		ExerciseName: req.ExerciseName,
		Sets:         sets,
		Notes:        req.Notes,
	}
	if req.Date != "" {
		if lr.Date, err = parseTime(req.Date, false); err != nil {
			s.writeError(w, r, models.NewValidationError("date", "invalid date: "+req.Date))
			return
		}
	}

	res, err := s.Workouts.LogWorkout(r.Context(), lr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logWorkoutResponse{
		SessionID:   res.SessionID,
		ExerciseID:  res.ExerciseID,
		SetsCreated: res.SetsCreated,
		Message:     "Workout logged successfully",
	})
}

type coachRequest struct {
	UserID   string    `json:"user_id"`
	Question string    `json:"question"`
	Message  string    `json:"message"`
	History  []ai.Turn `json:"history"`
}

func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	var req coachRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	uid, err := requestUser(r, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	question := req.Question
	if question == "" {
		question = req.Message
	}
	reply, err := s.Coach.Ask(r.Context(), ai.CoachRequest{UserID: uid, Question: question, History: req.History})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
