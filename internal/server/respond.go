package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/meltforce/gymlog/internal/models"
)

// maxJSONBody caps request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Code      string `json:"code,omitempty"`
	Field     string `json:"field,omitempty"`
	SetNumber int    `json:"set_number,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindParseFailed, models.KindNoSpeech:
		return http.StatusUnprocessableEntity
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindUnavailable:
		return http.StatusServiceUnavailable
	case models.KindMalformedResponse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps err onto the error taxonomy. Persistence and untyped
// errors are logged in full and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := models.AsError(err)
	if !ok || e.Kind == models.KindPersistence {
		s.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "user", userIDFromContext(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Kind:  string(models.KindPersistence),
			Code:  "persistence",
		})
		return
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		s.Log.Warn("remote call failed", "path", r.URL.Path, "kind", e.Kind, "code", e.Code, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:     e.Message,
		Kind:      string(e.Kind),
		Code:      e.Code,
		Field:     e.Field,
		SetNumber: e.SetNumber,
	})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &models.Error{Kind: models.KindValidation, Code: models.CodeTooLarge, Message: "request body too large"}
		}
		return models.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// requestUser returns the authenticated user. A user_id supplied by the
// client is accepted only when it names that same user.
func requestUser(r *http.Request, claimed string) (string, error) {
	uid := userIDFromContext(r)
	if claimed != "" && claimed != uid {
		return "", models.NewForbiddenError("user_id does not match the authenticated user")
	}
	return uid, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date used
// as an upper bound covers the whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}

// parseRange reads start/end (or start_date/end_date). Missing bounds stay
// zero, which the store treats as open.
func parseRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	if v := firstParam(q.Get("start"), q.Get("start_date")); v != "" {
		if start, err = parseTime(v, false); err != nil {
			return time.Time{}, time.Time{}, models.NewValidationError("start", "invalid start: "+v)
		}
	}
	if v := firstParam(q.Get("end"), q.Get("end_date")); v != "" {
		if end, err = parseTime(v, true); err != nil {
			return time.Time{}, time.Time{}, models.NewValidationError("end", "invalid end: "+v)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, models.NewValidationError("end", "end is before start")
	}
	return start, end, nil
}

func firstParam(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseUnit(r *http.Request) (models.WeightUnit, error) {
	u, err := models.ParseWeightUnit(r.URL.Query().Get("unit"))
	if err != nil {
		return "", models.NewValidationError("unit", err.Error())
	}
	return u, nil
}
