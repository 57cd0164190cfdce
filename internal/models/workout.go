package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session sources.
const (
	SourceAPI   = "api"
	SourceAlpha = "alpha_progression"
)

// Session is one workout occasion for one user. Exercises are populated by
// list/get queries and ordered by creation time.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	Date      time.Time  `json:"date"`
	Notes     *string    `json:"notes"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is a named movement within a session. Sets are ordered by set number.
type Exercise struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"exercise_name"`
	CreatedAt time.Time `json:"created_at"`
	Sets      []Set     `json:"sets"`
}

// Set is one unit of repeated-rep performance at a given weight.
type Set struct {
	ID         uuid.UUID  `json:"id"`
	ExerciseID uuid.UUID  `json:"exercise_id"`
	SetNumber  int        `json:"set_number"`
	Reps       int        `json:"reps"`
	Weight     float64    `json:"weight"`
	WeightUnit WeightUnit `json:"weight_unit"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SetInput is a validated set that has not been persisted yet.
type SetInput struct {
	SetNumber  int        `json:"set_number"`
	Reps       int        `json:"reps"`
	Weight     float64    `json:"weight"`
	WeightUnit WeightUnit `json:"weight_unit"`
	Notes      *string    `json:"notes,omitempty"`
}

// NormalizeExerciseName trims whitespace and collapses internal runs of spaces.
func NormalizeExerciseName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
