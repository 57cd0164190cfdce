package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/gymlog/internal/models"
)

// defaultTimeRange returns start/end, defaulting end to now and start to
// days before end.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var unitOption = mcp.WithString("unit", mcp.Description("Weight unit for volumes and records. Defaults to lbs."), mcp.Enum("lbs", "kg"))

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List workout sessions, most recent first. Each session includes its exercises and their sets (set number, reps, weight, unit)."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetSummary = mcp.NewTool("get_summary",
	mcp.WithDescription("Training summary: total sessions, sessions in the last 7 days, total volume, weekly volume trend (ISO weeks) and monthly totals with average volume per session."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 180 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	unitOption,
)

var toolGetVolume = mcp.NewTool("get_volume",
	mcp.WithDescription("Per-session training volume (reps x weight, normalized to one unit) with exercise and set counts."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	unitOption,
)

var toolGetExerciseFrequency = mcp.NewTool("get_exercise_frequency",
	mcp.WithDescription("How many sessions included each exercise, most frequent first. Exercise names match case-insensitively."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Only count this exercise (e.g. 'bench press')")),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Heaviest set per exercise across all history. Ties are broken by more reps, then by the most recent session."),
	unitOption,
)

var toolGetDataStats = mcp.NewTool("get_data_stats",
	mcp.WithDescription("Counts of stored sessions, exercises and sets, the earliest and latest session dates, and sessions per source."),
)

// --- Tool handlers ---

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.ListSessions(ctx, uid, start, end)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(sessions)
}

func (h *handlers) getSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 180)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	unit, err := models.ParseWeightUnit(req.GetString("unit", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := h.ds.Summary(ctx, uid, start, end, unit)
	if err != nil {
		h.log.Error("mcp get_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(summary)
}

func (h *handlers) getVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	unit, err := models.ParseWeightUnit(req.GetString("unit", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	points, err := h.ds.Volumes(ctx, uid, start, end, unit)
	if err != nil {
		h.log.Error("mcp get_volume", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(points)
}

func (h *handlers) getExerciseFrequency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	freqs, err := h.ds.Frequencies(ctx, uid, start, end, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_exercise_frequency", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(freqs)
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	unit, err := models.ParseWeightUnit(req.GetString("unit", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := h.ds.PersonalRecords(ctx, uid, unit)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(records)
}

func (h *handlers) getDataStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return mcp.NewToolResultError(errNoUser.Error()), nil
	}
	ds, err := h.ds.DataStats(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_data_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(ds)
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
