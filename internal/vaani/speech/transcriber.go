package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/vaani/internal/vaani/outcome"
)

const (
	defaultSpeechBase      = "https://api.openai.com/v1"
	defaultWhisperModel    = "whisper-1"
	defaultSpeechTimeout   = 60 * time.Second
	defaultTTSModel        = "tts-1"
	defaultTTSVoice        = "alloy"
	transcriptionsEndpoint = "/audio/transcriptions"
	synthesisEndpoint      = "/audio/speech"
)

// Transcript is the result of one speech-to-text call.  Empty Text with an
// OK status means the API heard silence; Unavailable means the call failed.
type Transcript struct {
	Text   string
	Status outcome.Status
}

// Transcriber turns captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) Transcript
}

// APIConfig configures the OpenAI-compatible audio endpoints.
type APIConfig struct {
	APIKey  string
	BaseURL string // defaults to https://api.openai.com/v1
	Model   string // defaults to whisper-1 for transcription
	Timeout time.Duration
}

// HTTPTranscriber implements Transcriber against the /audio/transcriptions
// endpoint.
type HTTPTranscriber struct {
	cfg    APIConfig
	client *http.Client
}

// NewTranscriber returns a Transcriber backed by the configured API.
func NewTranscriber(cfg APIConfig) *HTTPTranscriber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSpeechBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSpeechTimeout
	}
	return &HTTPTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, wav []byte) Transcript {
	text, err := t.transcribe(ctx, wav)
	if err != nil {
		slog.Warn("speech: transcription failed", "err", err)
		return Transcript{Status: outcome.Unavailable}
	}
	return Transcript{Text: strings.TrimSpace(text), Status: outcome.OK}
}

func (t *HTTPTranscriber) transcribe(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("speech: create multipart file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("speech: write audio payload: %w", err)
	}
	if err := writer.WriteField("model", t.cfg.Model); err != nil {
		return "", fmt.Errorf("speech: write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("speech: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.cfg.BaseURL+transcriptionsEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("speech: create http request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speech: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech: transcription API returned HTTP %d: %.200s",
			resp.StatusCode, respBody)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("speech: decode transcription response: %w", err)
	}
	return parsed.Text, nil
}
