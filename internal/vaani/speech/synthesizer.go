package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/bdobrica/vaani/internal/vaani/outcome"
)

// Synthesizer renders text into playable audio.
type Synthesizer interface {
	// Synthesize returns MP3 bytes for text spoken in lang.
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// Player plays rendered audio on the local device.
type Player interface {
	Play(ctx context.Context, mp3 []byte) error
}

// HTTPSynthesizer implements Synthesizer against the /audio/speech endpoint.
type HTTPSynthesizer struct {
	cfg    APIConfig
	voice  string
	client *http.Client
}

// NewSynthesizer returns a Synthesizer backed by the configured API.
func NewSynthesizer(cfg APIConfig) *HTTPSynthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSpeechBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultTTSModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSpeechTimeout
	}
	return &HTTPSynthesizer{
		cfg:    cfg,
		voice:  defaultTTSVoice,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"model":           s.cfg.Model,
		"voice":           s.voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+synthesisEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech: synthesis API returned HTTP %d: %.200s",
			resp.StatusCode, body)
	}

	mp3, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio response: %w", err)
	}
	return mp3, nil
}

// ExecPlayer plays MP3 audio through the mpg123 binary.  The audio is
// written to a temp file first because mpg123's stdin mode misreports
// duration on some builds.
type ExecPlayer struct {
	// Binary overrides the playback command.  Defaults to "mpg123".
	Binary string
}

func (p *ExecPlayer) Play(ctx context.Context, mp3 []byte) error {
	binary := p.Binary
	if binary == "" {
		binary = "mpg123"
	}

	f, err := os.CreateTemp("", "vaani-tts-*.mp3")
	if err != nil {
		return fmt.Errorf("speech: create temp audio file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(mp3); err != nil {
		f.Close()
		return fmt.Errorf("speech: write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("speech: close temp audio file: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, "-q", f.Name())
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: play audio: %w (%s)", err, errBuf.String())
	}
	return nil
}

// Speaker combines synthesis and playback into one voice output step.
type Speaker struct {
	Synth  Synthesizer
	Player Player

	// FallbackLanguage is spoken when the requested language has no TTS
	// support.  Defaults to "en".
	FallbackLanguage string
}

// Say speaks text in lang, falling back to FallbackLanguage when lang is
// not supported by the synthesis voice.  Failures are reported through the
// returned status; the conversation continues either way.
func (s *Speaker) Say(ctx context.Context, text, lang string) outcome.Status {
	if text == "" {
		return outcome.OK
	}

	status := outcome.OK
	if !TTSSupported(lang) {
		fallback := s.FallbackLanguage
		if fallback == "" {
			fallback = "en"
		}
		slog.Warn("speech: language not supported for synthesis, using fallback",
			"lang", lang, "fallback", fallback)
		lang = fallback
		status = outcome.Degraded
	}

	mp3, err := s.Synth.Synthesize(ctx, text, lang)
	if err != nil {
		slog.Warn("speech: synthesis failed", "err", err)
		return outcome.Unavailable
	}
	if err := s.Player.Play(ctx, mp3); err != nil {
		slog.Warn("speech: playback failed", "err", err)
		return outcome.Unavailable
	}
	return status
}

// playbackGrace bounds how long a deferred goodbye may take when the main
// context is already cancelled.
const playbackGrace = 10 * time.Second

// SayWithGrace speaks text even when ctx is already cancelled, bounded by
// a short grace window.  Used for the goodbye message on shutdown.
func (s *Speaker) SayWithGrace(ctx context.Context, text, lang string) outcome.Status {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), playbackGrace)
		defer cancel()
	}
	return s.Say(ctx, text, lang)
}
