// Package ai adapts remote language and speech models to the workout domain:
// transcribing audio, extracting structured sets from text, and answering
// coaching questions. Adapters depend on the small Completer and
// SpeechToText interfaces so tests can run against fakes.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/meltforce/gymlog/internal/models"
)

// Message is one chat turn sent to a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSON asks the model for a JSON object response.
	JSON bool
}

// Completer returns the text of the first choice of a chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// SpeechRequest is a single transcription call.
type SpeechRequest struct {
	Model    string
	Filename string
	Body     io.Reader
}

// SpeechToText returns the transcript of an audio stream.
type SpeechToText interface {
	Transcribe(ctx context.Context, req SpeechRequest) (string, error)
}

// OpenAIClient implements Completer and SpeechToText against the OpenAI API
// or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
}

var (
	_ Completer    = (*OpenAIClient)(nil)
	_ SpeechToText = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client. An empty baseURL uses the public API; a
// nil httpClient uses http.DefaultClient.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Complete sends a chat completion and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", models.NewMalformedResponseError("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads audio for transcription and returns the plain text.
func (c *OpenAIClient) Transcribe(ctx context.Context, req SpeechRequest) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    req.Model,
		FilePath: req.Filename,
		Reader:   req.Body,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// classify maps transport and API failures onto the error taxonomy. Errors
// that are already typed pass through unchanged.
func classify(service string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError(service, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewTimeoutError(service, err)
	}
	if errors.Is(err, context.Canceled) {
		return models.NewUnavailableError("canceled", service+" request was canceled", err)
	}

	status := 0
	code := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests || code == "insufficient_quota":
		return models.NewUnavailableError(models.CodeQuotaExceeded, service+" quota or rate limit exceeded", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.NewUnavailableError(models.CodeNotConfigured, service+" credentials were rejected", err)
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge || status == http.StatusUnsupportedMediaType:
		return &models.Error{Kind: models.KindValidation, Code: models.CodeRemoteError,
			Message: fmt.Sprintf("%s rejected the input", service), Err: err}
	case status == http.StatusGatewayTimeout:
		return models.NewTimeoutError(service, err)
	}
	return models.NewUnavailableError(models.CodeRemoteError, service+" is unavailable", err)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = models.NewUnavailableError(models.CodeNotConfigured, "AI service not configured", nil)

// Disabled stands in for every capability when no API key is configured.
type Disabled struct{}

func (Disabled) Complete(context.Context, CompletionRequest) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Transcribe(context.Context, SpeechRequest) (string, error) {
	return "", ErrNotConfigured
}
