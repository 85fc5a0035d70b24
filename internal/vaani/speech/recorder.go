// Package speech covers the audio edge of the assistant: capturing the
// user's voice, transcribing it, and speaking replies back.  Capture and
// playback shell out to ALSA tools; transcription and synthesis use an
// OpenAI-compatible audio API.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Recorder captures one utterance of audio.
type Recorder interface {
	// Record blocks until the capture window ends and returns WAV bytes.
	Record(ctx context.Context) ([]byte, error)
}

// ExecRecorder records via the arecord binary.  16 kHz mono signed 16-bit
// is what the transcription API expects for speech.
type ExecRecorder struct {
	// Binary overrides the capture command.  Defaults to "arecord".
	Binary string

	// MaxSeconds bounds the capture window.  Defaults to 20.
	MaxSeconds int
}

func (r *ExecRecorder) Record(ctx context.Context) ([]byte, error) {
	binary := r.Binary
	if binary == "" {
		binary = "arecord"
	}
	maxSeconds := r.MaxSeconds
	if maxSeconds <= 0 {
		maxSeconds = 20
	}

	cmd := exec.CommandContext(ctx, binary,
		"-q",
		"-f", "S16_LE",
		"-r", "16000",
		"-c", "1",
		"-d", strconv.Itoa(maxSeconds),
		"-t", "wav",
		"-",
	)

	var out bytes.Buffer
	var errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("speech: record audio: %w (%s)", err, errBuf.String())
	}

	return out.Bytes(), nil
}
