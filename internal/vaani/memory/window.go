// Package memory derives the bounded conversational context injected into
// each backend request.  The store keeps the full dialogue; this package
// reads back only the slice of it that a single turn may carry.
package memory

import (
	"context"
	"fmt"

	"github.com/bdobrica/vaani/internal/vaani/store"
)

// DefaultMaxTokens is the default estimated token budget for one window.
const DefaultMaxTokens = 4000

// Window reads the chronological slice of recent conversation used to build
// the backend payload's conversation_context field.  It is a pure read over
// the store: assembling a window never mutates anything.
type Window struct {
	Store *store.Store

	// Limit is the maximum number of messages per window.  When zero the
	// store's configured ContextWindowLimit applies.
	Limit int

	// MaxTokens is the estimated token budget for the window.  The message
	// limit is the primary bound; this is a second, size-based bound that
	// drops the oldest messages when a few very long utterances would
	// otherwise bloat the payload.  When zero, DefaultMaxTokens applies.
	MaxTokens int
}

// Assemble returns up to Limit recent messages for userID, oldest first,
// trimmed to the token budget.
func (w *Window) Assemble(ctx context.Context, userID string) ([]store.ContextMessage, error) {
	limit := w.Limit
	if limit <= 0 {
		limit = w.Store.Config().ContextWindowLimit
	}

	messages, err := w.Store.RecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: assemble window: %w", err)
	}

	maxTokens := w.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return trimToTokenBudget(messages, maxTokens), nil
}

// estimateTokens returns a rough token count for a message slice.
// Uses ~4 characters per token (common English heuristic) plus a small
// per-message overhead for role framing.  This is intentionally imprecise;
// the budget is a soft limit to keep the window bounded.
func estimateTokens(msgs []store.ContextMessage) int {
	const charsPerToken = 4
	const perMessageOverhead = 4 // role label, delimiters

	total := 0
	for _, m := range msgs {
		total += len(m.Content)/charsPerToken + perMessageOverhead
	}
	return total
}

// trimToTokenBudget drops the oldest messages from msgs until the estimated
// token count is within budget.  Always retains at least one message.
func trimToTokenBudget(msgs []store.ContextMessage, budget int) []store.ContextMessage {
	for len(msgs) > 1 && estimateTokens(msgs) > budget {
		msgs = msgs[1:]
	}
	return msgs
}
