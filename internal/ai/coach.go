package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/models"
)

const (
	// MaxQuestionLength bounds a single coaching question.
	MaxQuestionLength = 4000
	// MaxHistoryTurns is how many prior turns are forwarded to the model.
	MaxHistoryTurns = 20
)

const coachSystemPrompt = "You are a knowledgeable and encouraging fitness coach."

const coachPromptTemplate = `You are an AI fitness coach. Provide helpful, encouraging, and scientifically-backed advice.

%s

Keep responses concise but helpful. Focus on form, progression, and motivation.`

// Turn is one prior message in a coaching conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CoachRequest is a question plus optional conversation so far.
type CoachRequest struct {
	UserID   string
	Question string
	History  []Turn
}

// CoachReply is the coach's answer.
type CoachReply struct {
	Reply string `json:"reply"`
}

// HistorySource supplies the sessions used as coaching context.
type HistorySource interface {
	RecentSessions(ctx context.Context, userID string, n int) ([]models.Session, error)
}

// Coacher answers training questions.
type Coacher interface {
	Ask(ctx context.Context, req CoachRequest) (*CoachReply, error)
}

// Coach grounds answers in the user's most recent sessions.
type Coach struct {
	llm      Completer
	history  HistorySource
	model    string
	lookback int
	timeout  time.Duration
	metrics  metrics.Recorder
}

var _ Coacher = (*Coach)(nil)

func NewCoach(llm Completer, history HistorySource, model string, lookback int, timeout time.Duration, rec metrics.Recorder) *Coach {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if lookback <= 0 {
		lookback = 3
	}
	return &Coach{llm: llm, history: history, model: model, lookback: lookback, timeout: timeout, metrics: rec}
}

// Ask returns the model's reply to req.Question.
func (c *Coach) Ask(ctx context.Context, req CoachRequest) (*CoachReply, error) {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return nil, models.NewValidationError("question", "question is required")
	}
	if len(q) > MaxQuestionLength {
		return nil, models.NewValidationError("question", fmt.Sprintf("question is longer than %d characters", MaxQuestionLength))
	}
	history := req.History
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	for _, t := range history {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return nil, models.NewValidationError("history", fmt.Sprintf("history role must be user or assistant, got %q", t.Role))
		}
	}

	var summary string
	if c.history != nil && req.UserID != "" {
		sessions, err := c.history.RecentSessions(ctx, req.UserID, c.lookback)
		if err != nil {
			if _, ok := models.AsError(err); ok {
				return nil, err
			}
			return nil, models.NewPersistenceError("loading recent sessions", err)
		}
		summary = summarizeSessions(sessions)
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: coachSystemPrompt + "\n\n" + fmt.Sprintf(coachPromptTemplate, summary)})
	for _, t := range history {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: q})

	cctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.llm.Complete(cctx, CompletionRequest{Model: c.model, Messages: msgs, Temperature: 0.7})
	err = classify("coach", err)
	if err == nil && strings.TrimSpace(out) == "" {
		err = models.NewMalformedResponseError("coach returned an empty reply")
	}
	c.metrics.RecordRemoteCall("coach", outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return &CoachReply{Reply: out}, nil
}

// summarizeSessions renders one line per session for the coaching prompt.
func summarizeSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "The user has no logged workouts yet."
	}
	var b strings.Builder
	b.WriteString("Recent workouts:\n")
	for _, s := range sessions {
		names := make([]string, 0, len(s.Exercises))
		sets := 0
		var best *models.Set
		bestName := ""
		for _, ex := range s.Exercises {
			names = append(names, ex.Name)
			for i := range ex.Sets {
				set := &ex.Sets[i]
				sets++
				if best == nil || heavier(set, best) {
					best = set
					bestName = ex.Name
				}
			}
		}
		fmt.Fprintf(&b, "- %s: %d exercises (%s), %d sets", s.Date.Format("2006-01-02"), len(s.Exercises), strings.Join(names, ", "), sets)
		if best != nil {
			fmt.Fprintf(&b, ", best set %s %g %s x %d", bestName, best.Weight, best.WeightUnit, best.Reps)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func heavier(a, b *models.Set) bool {
	wa := models.Convert(a.Weight, a.WeightUnit, models.Pounds)
	wb := models.Convert(b.Weight, b.WeightUnit, models.Pounds)
	if wa != wb {
		return wa > wb
	}
	return a.Reps > b.Reps
}
