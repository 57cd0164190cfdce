package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/gymlog/internal/models"
)

var errNoUser = errors.New("no authenticated user")

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return nil, errNoUser
	}
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	sessions, err := h.ds.ListSessions(ctx, uid, start, end)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, sessions)
}

func (h *handlers) personalRecords(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return nil, errNoUser
	}
	records, err := h.ds.PersonalRecords(ctx, uid, models.Pounds)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, records)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
