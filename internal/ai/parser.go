package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/models"
)

// MaxParseInput bounds the text accepted by the parser.
const MaxParseInput = 4000

const parseSystemPrompt = "You are a workout parsing assistant. Return only valid JSON."

const parsePromptTemplate = `You are a workout data parser. Extract exercise information from natural language.

Input: %q

Extract:
1. Exercise name (standardize: "Bench Press", "Squats", "Deadlifts", etc.)
2. Number of sets and reps for each set
3. Weight used, with its unit ("lbs" or "kg"; use "lbs" when none is said)

Return ONLY valid JSON in this exact format:
{
  "exercise_name": "Exercise Name",
  "sets": [
    {"set_number": 1, "reps": 8, "weight": 185, "weight_unit": "lbs"},
    {"set_number": 2, "reps": 7, "weight": 185, "weight_unit": "lbs"}
  ]
}

If you cannot parse the input, return:
{"error": "Could not parse workout data"}`

// ParsedWorkout is one exercise extracted from free text.
type ParsedWorkout struct {
	ExerciseName string            `json:"exercise_name"`
	Sets         []models.SetInput `json:"sets"`
}

// WorkoutParser extracts structured sets from a workout description.
type WorkoutParser interface {
	Parse(ctx context.Context, text string) (*ParsedWorkout, error)
}

// Parser prompts a language model and validates what comes back.
type Parser struct {
	llm     Completer
	model   string
	timeout time.Duration
	metrics metrics.Recorder
}

var _ WorkoutParser = (*Parser)(nil)

func NewParser(llm Completer, model string, timeout time.Duration, rec metrics.Recorder) *Parser {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Parser{llm: llm, model: model, timeout: timeout, metrics: rec}
}

// Parse returns the exercise and sets described by text. Model output that is
// not the expected JSON shape is a parse_failed error; sets that decode but
// break set rules are validation errors.
func (p *Parser) Parse(ctx context.Context, text string) (*ParsedWorkout, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("text", "no text provided for parsing")
	}
	if len(text) > MaxParseInput {
		return nil, models.NewValidationError("text", fmt.Sprintf("text is longer than %d characters", MaxParseInput))
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.llm.Complete(ctx, CompletionRequest{
		Model: p.model,
		Messages: []Message{
			{Role: RoleSystem, Content: parseSystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf(parsePromptTemplate, text)},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
		JSON:        true,
	})
	err = classify("workout parser", err)
	if err == nil {
		var parsed *ParsedWorkout
		parsed, err = decodeParsed(out)
		if err == nil {
			p.metrics.RecordRemoteCall("parse", "ok", time.Since(start))
			return parsed, nil
		}
	}
	p.metrics.RecordRemoteCall("parse", outcome(err), time.Since(start))
	return nil, err
}

type parserOutput struct {
	ExerciseName *string           `json:"exercise_name"`
	Sets         []json.RawMessage `json:"sets"`
	Error        string            `json:"error"`
}

// decodeParsed turns raw model output into a validated ParsedWorkout.
func decodeParsed(raw string) (*ParsedWorkout, error) {
	body, ok := extractObject(raw)
	if !ok {
		return nil, models.NewParseFailedError("model did not return a JSON object", nil)
	}

	var out parserOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, models.NewParseFailedError("model returned invalid workout JSON", err)
	}
	if out.Error != "" {
		return nil, models.NewParseFailedError(out.Error, nil)
	}
	if out.ExerciseName == nil || strings.TrimSpace(*out.ExerciseName) == "" {
		return nil, models.NewParseFailedError("no exercise name found", nil)
	}
	if len(out.Sets) == 0 {
		return nil, models.NewParseFailedError("no sets found", nil)
	}

	sets, err := models.SetsFromRaw(out.Sets)
	if err != nil {
		// A readable but unknown unit is a rule violation, not garbled output.
		if e, ok := models.AsError(err); ok && e.Field != "weight_unit" {
			return nil, &models.Error{Kind: models.KindParseFailed, Code: "parse_failed",
				Field: e.Field, SetNumber: e.SetNumber, Message: e.Message}
		}
		return nil, err
	}
	if err := models.ValidateSets(sets); err != nil {
		return nil, err
	}
	return &ParsedWorkout{
		ExerciseName: models.NormalizeExerciseName(*out.ExerciseName),
		Sets:         sets,
	}, nil
}

// extractObject strips markdown fences and surrounding prose, returning the
// outermost {...} span.
func extractObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j < i {
		return "", false
	}
	return s[i : j+1], true
}
