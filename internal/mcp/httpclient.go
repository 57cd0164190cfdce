package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/gymlog/internal/models"
	"github.com/meltforce/gymlog/internal/stats"
	"github.com/meltforce/gymlog/internal/storage"
)

// HTTPClient implements DataSource by calling the GymLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server. The server resolves the user from the
// bearer token (or Tailscale identity), so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. An empty
// token sends no Authorization header.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// timeParams encodes the non-zero bounds of a range.
func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	if !start.IsZero() {
		v.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		v.Set("end", end.Format(time.RFC3339))
	}
	return v
}

func (c *HTTPClient) ListSessions(ctx context.Context, _ string, start, end time.Time) ([]models.Session, error) {
	var sessions []models.Session
	if err := c.get(ctx, "/api/v1/sessions", timeParams(start, end), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) Summary(ctx context.Context, _ string, start, end time.Time, unit models.WeightUnit) (*stats.Summary, error) {
	params := timeParams(start, end)
	params.Set("unit", string(unit))

	var summary stats.Summary
	if err := c.get(ctx, "/api/v1/stats/summary", params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *HTTPClient) Volumes(ctx context.Context, _ string, start, end time.Time, unit models.WeightUnit) ([]stats.VolumePoint, error) {
	params := timeParams(start, end)
	params.Set("unit", string(unit))

	var points []stats.VolumePoint
	if err := c.get(ctx, "/api/v1/stats/volume", params, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (c *HTTPClient) Frequencies(ctx context.Context, _ string, start, end time.Time, exercise string) ([]stats.Frequency, error) {
	params := timeParams(start, end)
	if exercise != "" {
		params.Set("exercise", exercise)
	}

	var freqs []stats.Frequency
	if err := c.get(ctx, "/api/v1/stats/frequency", params, &freqs); err != nil {
		return nil, err
	}
	return freqs, nil
}

func (c *HTTPClient) PersonalRecords(ctx context.Context, _ string, unit models.WeightUnit) ([]stats.Record, error) {
	params := url.Values{}
	params.Set("unit", string(unit))

	var records []stats.Record
	if err := c.get(ctx, "/api/v1/stats/records", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) DataStats(ctx context.Context, _ string) (*storage.DataStats, error) {
	var ds storage.DataStats
	if err := c.get(ctx, "/api/v1/stats/data", nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}
