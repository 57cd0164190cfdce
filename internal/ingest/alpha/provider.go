package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meltforce/gymlog/internal/ingest"
	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/storage"
)

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	store  storage.Store
	log    *slog.Logger
	dryRun bool
}

var _ ingest.Provider = (*Provider)(nil)

// NewProvider creates a new Alpha Progression ingest provider. In dry-run
// mode exports are parsed and validated but nothing is written.
func NewProvider(store storage.Store, log *slog.Logger, dryRun bool) *Provider {
	return &Provider{store: store, log: log, dryRun: dryRun}
}

func (p *Provider) Source() string { return models.SourceAlpha }

// Ingest parses a CSV export and stores its working sets. Every session is
// validated before anything is written; each session is then replaced in its
// own transaction, so re-importing an export reflects the latest parser
// output without duplicating sessions.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID string) (*ingest.Result, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.NewValidationError("user_id", "user is required")
	}
	parsed, err := Parse(r)
	if err != nil {
		return nil, models.NewValidationError("file", "parsing CSV: "+err.Error())
	}

	result := &ingest.Result{SessionsReceived: len(parsed), DryRun: p.dryRun}
	plans := make([]plan, 0, len(parsed))
	for _, s := range parsed {
		pl, err := planSession(s)
		if err != nil {
			return result, err
		}
		result.WarmupsSkipped += pl.warmups
		if len(pl.exercises) > 0 {
			plans = append(plans, pl)
		}
	}

	for _, pl := range plans {
		if !p.dryRun {
			var replaced int64
			err := p.store.InTx(ctx, func(tx storage.Store) error {
				var err error
				replaced, err = p.write(ctx, tx, userID, pl)
				return err
			})
			if err != nil {
				p.log.Error("alpha session import failed", "user", userID, "date", pl.session.Date, "error", err)
				result.Message = fmt.Sprintf("imported %d of %d sessions", result.SessionsImported, len(plans))
				return result, models.NewPersistenceError("importing session "+pl.session.Date.Format("2006-01-02 15:04"), err)
			}
			if replaced > 0 {
				result.SessionsReplaced++
			}
		}
		result.SessionsImported++
		result.ExercisesImported += len(pl.exercises)
		for _, ex := range pl.exercises {
			result.SetsImported += len(ex.sets)
		}
	}

	result.Message = fmt.Sprintf("imported %d sessions, %d sets", result.SessionsImported, result.SetsImported)
	p.log.Info("alpha import complete",
		"user", userID,
		"sessions", result.SessionsImported,
		"replaced", result.SessionsReplaced,
		"sets", result.SetsImported,
		"dry_run", p.dryRun,
	)
	return result, nil
}

type plannedExercise struct {
	name string
	sets []models.SetInput
}

type plan struct {
	session   Session
	notes     string
	exercises []plannedExercise
	warmups   int
}

// planSession converts a parsed session into validated set inputs. Warmups
// are counted but not stored; working sets keep their numbers, weights stay
// in kilograms and RIR is kept in the set notes.
func planSession(s Session) (plan, error) {
	pl := plan{session: s, notes: s.Name}
	if s.Duration != "" {
		pl.notes += " (" + s.Duration + ")"
	}
	for _, ex := range s.Exercises {
		pl.warmups += len(ex.Warmups)
		if len(ex.Sets) == 0 {
			continue
		}
		name := ex.Name
		if ex.Equipment != "" {
			name += " (" + ex.Equipment + ")"
		}
		inputs := make([]models.SetInput, 0, len(ex.Sets))
		for _, set := range ex.Sets {
			in := models.SetInput{
				SetNumber:  set.Number,
				Reps:       set.Reps,
				Weight:     set.WeightKg,
				WeightUnit: models.Kilograms,
			}
			if note := setNote(set); note != "" {
				in.Notes = &note
			}
			inputs = append(inputs, in)
		}
		if err := models.ValidateSets(inputs); err != nil {
			e, _ := models.AsError(err)
			return pl, &models.Error{Kind: models.KindValidation, Code: models.CodeInvalidSet,
				Field: e.Field, SetNumber: e.SetNumber,
				Message: fmt.Sprintf("%s on %s: %s", ex.Name, s.Date.Format("2006-01-02"), e.Message)}
		}
		pl.exercises = append(pl.exercises, plannedExercise{name: models.NormalizeExerciseName(name), sets: inputs})
	}
	return pl, nil
}

func setNote(s Set) string {
	var parts []string
	if s.IsBodyweightPlus {
		parts = append(parts, "bodyweight +")
	}
	if s.RIR != nil {
		parts = append(parts, "RIR "+strconv.FormatFloat(*s.RIR, 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// write replaces any earlier import of the same session and returns how many
// sessions it removed.
func (p *Provider) write(ctx context.Context, tx storage.Store, userID string, pl plan) (int64, error) {
	replaced, err := tx.DeleteSessionsAt(ctx, userID, models.SourceAlpha, pl.session.Date)
	if err != nil {
		return 0, err
	}
	notes := pl.notes
	sess := &models.Session{UserID: userID, Date: pl.session.Date, Notes: &notes, Source: models.SourceAlpha}
	if err := tx.CreateSession(ctx, sess); err != nil {
		return 0, err
	}
	for _, pe := range pl.exercises {
		ex := &models.Exercise{SessionID: sess.ID, Name: pe.name}
		if err := tx.CreateExercise(ctx, ex); err != nil {
			return 0, err
		}
		for _, in := range pe.sets {
			set := &models.Set{
				ExerciseID: ex.ID,
				SetNumber:  in.SetNumber,
				Reps:       in.Reps,
				Weight:     in.Weight,
				WeightUnit: in.WeightUnit,
				Notes:      in.Notes,
			}
			if err := tx.CreateSet(ctx, set); err != nil {
				return 0, err
			}
		}
	}
	return replaced, nil
}
