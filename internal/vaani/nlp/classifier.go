package nlp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bdobrica/vaani/common/retry"
	"github.com/bdobrica/vaani/internal/vaani/outcome"
)

// Classifier wraps a Provider with retry and degradation so the voice loop
// always receives a well-formed classification.  Failures are absorbed
// here, at the collaborator boundary: after the retry budget is exhausted
// the utterance is classified as "unknown" and the loop asks the user to
// rephrase instead of surfacing an internal error.
type Classifier struct {
	provider Provider
	retry    retry.Config
}

// NewClassifier returns a Classifier backed by provider.
func NewClassifier(provider Provider) *Classifier {
	return &Classifier{
		provider: provider,
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			// Malformed output does not get better on retry without a new
			// completion, but a fresh call may well produce valid JSON;
			// only rate limiting is pointless to hammer.
			ShouldRetry: func(err error) bool { return !errors.Is(err, ErrRateLimit) },
		},
	}
}

// Classify never returns an error.  The result's Status field records
// whether the provider answered (OK), produced unusable output (Degraded),
// or could not be reached (Unavailable); the latter two carry
// IntentUnknown with empty details and the request's language.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) *Classification {
	var resp *Classification
	err := retry.Do(ctx, c.retry, func() error {
		r, classifyErr := c.provider.Classify(ctx, req)
		if classifyErr != nil {
			return classifyErr
		}
		resp = r
		return nil
	})

	if err != nil {
		status := outcome.Unavailable
		if errors.Is(err, ErrMalformedOutput) {
			status = outcome.Degraded
		}
		slog.Warn("nlp: classification fell back to unknown intent",
			"err", err, "status", string(status))
		return &Classification{
			Intent:   IntentUnknown,
			Language: req.Language,
			Details:  map[string]any{},
			Status:   status,
		}
	}

	resp.Status = outcome.OK
	return resp
}
