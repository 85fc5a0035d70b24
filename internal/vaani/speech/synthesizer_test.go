package speech_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bdobrica/vaani/internal/vaani/outcome"
	"github.com/bdobrica/vaani/internal/vaani/speech"
)

type stubSynth struct {
	calls []string // languages requested
	err   error
}

func (s *stubSynth) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	s.calls = append(s.calls, lang)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3"), nil
}

type stubPlayer struct {
	played int
	err    error
}

func (p *stubPlayer) Play(ctx context.Context, mp3 []byte) error {
	p.played++
	return p.err
}

func TestSpeaker_Say(t *testing.T) {
	synth := &stubSynth{}
	player := &stubPlayer{}
	speaker := &speech.Speaker{Synth: synth, Player: player}

	status := speaker.Say(context.Background(), "Your balance is 5000", "hi")
	if status != outcome.OK {
		t.Fatalf("status = %q, want %q", status, outcome.OK)
	}
	if player.played != 1 {
		t.Fatalf("played %d times, want 1", player.played)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "hi" {
		t.Fatalf("synth calls = %v, want [hi]", synth.calls)
	}
}

func TestSpeaker_UnsupportedLanguageFallsBack(t *testing.T) {
	synth := &stubSynth{}
	player := &stubPlayer{}
	speaker := &speech.Speaker{Synth: synth, Player: player, FallbackLanguage: "en"}

	status := speaker.Say(context.Background(), "Bonjour", "fr")
	if status != outcome.Degraded {
		t.Fatalf("status = %q, want %q", status, outcome.Degraded)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "en" {
		t.Fatalf("synth calls = %v, want [en]", synth.calls)
	}
}

func TestSpeaker_SynthesisFailureIsUnavailable(t *testing.T) {
	speaker := &speech.Speaker{
		Synth:  &stubSynth{err: errors.New("api down")},
		Player: &stubPlayer{},
	}
	if status := speaker.Say(context.Background(), "hello", "en"); status != outcome.Unavailable {
		t.Fatalf("status = %q, want %q", status, outcome.Unavailable)
	}
}

func TestSpeaker_PlaybackFailureIsUnavailable(t *testing.T) {
	speaker := &speech.Speaker{
		Synth:  &stubSynth{},
		Player: &stubPlayer{err: errors.New("no audio device")},
	}
	if status := speaker.Say(context.Background(), "hello", "en"); status != outcome.Unavailable {
		t.Fatalf("status = %q, want %q", status, outcome.Unavailable)
	}
}

func TestSpeaker_EmptyTextIsNoOp(t *testing.T) {
	synth := &stubSynth{}
	speaker := &speech.Speaker{Synth: synth, Player: &stubPlayer{}}
	if status := speaker.Say(context.Background(), "", "en"); status != outcome.OK {
		t.Fatalf("status = %q, want OK", status)
	}
	if len(synth.calls) != 0 {
		t.Fatalf("synth calls = %v, want none", synth.calls)
	}
}

func TestSpeaker_SayWithGraceSpeaksAfterCancel(t *testing.T) {
	synth := &stubSynth{}
	player := &stubPlayer{}
	speaker := &speech.Speaker{Synth: synth, Player: player}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if status := speaker.SayWithGrace(ctx, "goodbye", "en"); status != outcome.OK {
		t.Fatalf("status = %q, want OK", status)
	}
	if player.played != 1 {
		t.Fatalf("played %d times, want 1", player.played)
	}
}
