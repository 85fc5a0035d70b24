package nlp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/vaani/common/retry"
	"github.com/bdobrica/vaani/internal/vaani/outcome"
)

// Translation is the result of one translation call.  Text always holds
// something speakable: the translated reply, or the input unchanged when
// translation was unnecessary or failed.
type Translation struct {
	Text   string
	Status outcome.Status
}

// Translator converts backend replies into the user's language.
type Translator struct {
	provider Provider
	retry    retry.Config
}

// NewTranslator returns a Translator backed by provider.
func NewTranslator(provider Provider) *Translator {
	return &Translator{
		provider: provider,
		retry: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// Translate renders text into targetLang.  When targetLang is empty or
// already matches sourceLang the input passes through untouched.  On
// provider failure the input is returned unchanged with an Unavailable
// status; an untranslated reply is better than no reply.
func (t *Translator) Translate(ctx context.Context, text, targetLang, sourceLang string) Translation {
	if targetLang == "" || strings.HasPrefix(targetLang, sourceLang) {
		return Translation{Text: text, Status: outcome.OK}
	}

	var translated string
	err := retry.Do(ctx, t.retry, func() error {
		out, translateErr := t.provider.Translate(ctx, text, targetLang)
		if translateErr != nil {
			return translateErr
		}
		translated = out
		return nil
	})

	if err != nil {
		slog.Warn("nlp: translation failed, speaking original text",
			"err", err, "target_lang", targetLang)
		return Translation{Text: text, Status: outcome.Unavailable}
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return Translation{Text: text, Status: outcome.Degraded}
	}

	return Translation{Text: translated, Status: outcome.OK}
}
