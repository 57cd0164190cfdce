package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/meltforce/gymlog/internal/metrics"
	"github.com/meltforce/gymlog/internal/models"
)

// MaxAudioBytes is the largest upload the speech model accepts.
const MaxAudioBytes = 25 << 20

// supportedAudio maps accepted media types to the extension sent upstream.
var supportedAudio = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/mp4":    ".m4a",
	"audio/m4a":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/aac":    ".m4a",
	"audio/wav":    ".wav",
	"audio/wave":   ".wav",
	"audio/x-wav":  ".wav",
	"audio/webm":   ".webm",
	"audio/ogg":    ".ogg",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"video/mp4":    ".mp4",
	"video/webm":   ".webm",
}

var supportedExt = map[string]bool{
	".mp3": true, ".mp4": true, ".mpeg": true, ".mpga": true, ".m4a": true,
	".wav": true, ".webm": true, ".ogg": true, ".flac": true,
}

// Audio is an uploaded recording. Size is -1 when unknown.
type Audio struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, a Audio) (string, error)
}

// AudioTranscriber checks uploads locally and forwards them to a speech model.
type AudioTranscriber struct {
	stt     SpeechToText
	model   string
	timeout time.Duration
	metrics metrics.Recorder
}

var _ Transcriber = (*AudioTranscriber)(nil)

// NewTranscriber creates an AudioTranscriber. A zero timeout disables the deadline.
func NewTranscriber(stt SpeechToText, model string, timeout time.Duration, rec metrics.Recorder) *AudioTranscriber {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &AudioTranscriber{stt: stt, model: model, timeout: timeout, metrics: rec}
}

// Transcribe rejects unsupported or oversized audio before any remote call,
// then returns the trimmed transcript. An empty transcript is a no_speech error.
func (t *AudioTranscriber) Transcribe(ctx context.Context, a Audio) (string, error) {
	ext, err := audioExtension(a.ContentType, a.Filename)
	if err != nil {
		return "", err
	}
	if a.Size > MaxAudioBytes {
		return "", tooLarge(a.Size)
	}
	body := a.Body
	if a.Size < 0 {
		buf, err := io.ReadAll(io.LimitReader(a.Body, MaxAudioBytes+1))
		if err != nil {
			return "", models.NewValidationError("audio_file", "could not read audio: "+err.Error())
		}
		if len(buf) > MaxAudioBytes {
			return "", tooLarge(int64(len(buf)))
		}
		body = bytes.NewReader(buf)
	}

	name := filepath.Base(a.Filename)
	if name == "." || name == "/" || !supportedExt[strings.ToLower(filepath.Ext(name))] {
		name = "audio" + ext
	}

	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	text, err := t.stt.Transcribe(ctx, SpeechRequest{Model: t.model, Filename: name, Body: body})
	err = classify("transcription", err)
	t.metrics.RecordRemoteCall("transcribe", outcome(err), time.Since(start))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewNoSpeechError()
	}
	return text, nil
}

// audioExtension validates the declared media type, falling back to the file
// extension when the client sent a generic type.
func audioExtension(contentType, filename string) (string, error) {
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return "", unsupported(contentType)
		}
		mediaType = strings.ToLower(mt)
	}
	if mediaType != "" && mediaType != "application/octet-stream" {
		ext, ok := supportedAudio[mediaType]
		if !ok {
			return "", unsupported(contentType)
		}
		return ext, nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExt[ext] {
		return "", unsupported(contentType)
	}
	return ext, nil
}

func unsupported(contentType string) error {
	if contentType == "" {
		contentType = "unknown"
	}
	return &models.Error{Kind: models.KindValidation, Code: models.CodeUnsupportedMedia, Field: "audio_file",
		Message: fmt.Sprintf("unsupported audio type %s (use mp3, m4a, mp4, wav, webm, ogg or flac)", contentType)}
}

func tooLarge(size int64) error {
	return &models.Error{Kind: models.KindValidation, Code: models.CodeTooLarge, Field: "audio_file",
		Message: fmt.Sprintf("audio is %d bytes, limit is %d", size, MaxAudioBytes)}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// outcome labels a remote call for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(models.KindOf(err))
}
