// Package nlp turns transcribed utterances into structured banking intents
// and translates backend replies into the user's language.
//
// The NLP layer sits between raw transcription text and the backend payload.
// Its sole responsibility is translation of form: convert a free-form
// sentence into a structured Classification ({intent, language, details})
// the banking backend can act on.  It never decides anything itself; all
// banking logic belongs to the backend.
package nlp

import (
	"context"
	"errors"

	"github.com/bdobrica/vaani/internal/vaani/outcome"
)

// ErrRateLimit is returned by a Provider when the upstream LLM API reports a
// rate-limiting condition (e.g. HTTP 429 Too Many Requests).
var ErrRateLimit = errors.New("nlp: upstream rate limit exceeded")

// ErrMalformedOutput is returned by a Provider when the LLM returns a
// structurally valid HTTP response whose body cannot be interpreted as a
// Classification (JSON parse failure, schema violation).
var ErrMalformedOutput = errors.New("nlp: malformed response from LLM")

// IntentUnknown is the classification every failure path degrades to.  The
// loop answers it by asking the user to rephrase.
const IntentUnknown = "unknown"

// HistoryMessage is a single prior turn in the conversation, injected into
// the LLM context window so the model has continuity across messages.
type HistoryMessage struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// ClassifyRequest is the input to a single classification call.
type ClassifyRequest struct {
	// Utterance is the transcribed user text.
	Utterance string

	// Language is the detected language tag for the utterance.  The model
	// echoes it back unless it detects otherwise, and every degraded result
	// carries it.
	Language string

	// History contains prior turns from the conversation window, oldest
	// first.  May be nil on the first turn.
	History []HistoryMessage
}

// Classification is the structured result for one utterance.  Always
// well-formed: degraded paths substitute IntentUnknown rather than failing.
type Classification struct {
	// Intent is the classified banking intent, e.g. "check_balance".
	Intent string `json:"intent"`

	// Language is the language tag the model attributed to the utterance
	// ("en", "hi", "mixed").
	Language string `json:"language"`

	// Details holds extracted entities (amount, recipient, loan_type, ...).
	// Never nil after classification.
	Details map[string]any `json:"details"`

	// Status records how this result was produced.
	Status outcome.Status `json:"-"`
}

// Provider is implemented by LLM backends able to classify utterances and
// translate replies.  Implementations must be safe for concurrent use and
// should return descriptive errors; degradation to fallback values is the
// caller's job (see Classifier and Translator).
type Provider interface {
	// Classify sends the utterance to the underlying LLM and returns a
	// structured Classification.
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)

	// Translate renders text into targetLang, keeping numeric values
	// unchanged.
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
