// Package app runs the voice conversation loop: listen, transcribe,
// classify, dispatch to the banking backend, translate, speak.  Every
// collaborator degrades rather than fails, so one bad turn never kills
// the session; the session record itself is closed on every exit path.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bdobrica/vaani/common/redact"
	"github.com/bdobrica/vaani/common/trace"
	"github.com/bdobrica/vaani/internal/vaani/backend"
	"github.com/bdobrica/vaani/internal/vaani/memory"
	"github.com/bdobrica/vaani/internal/vaani/nlp"
	"github.com/bdobrica/vaani/internal/vaani/observability"
	"github.com/bdobrica/vaani/internal/vaani/outcome"
	"github.com/bdobrica/vaani/internal/vaani/speech"
	"github.com/bdobrica/vaani/internal/vaani/store"
)

// errExit signals that the user asked to end the conversation.
var errExit = errors.New("app: user requested exit")

// sessionCloseGrace bounds the deferred session close when the main
// context is already cancelled.
const sessionCloseGrace = 5 * time.Second

// exitPhrases end the conversation when spoken alone.
var exitPhrases = map[string]struct{}{
	"exit": {}, "quit": {}, "stop": {}, "bye": {}, "goodbye": {},
	"band karo": {}, "nikal jao": {}, "phir milenge": {},
}

// Collaborator interfaces are declared here, on the consumer side, so the
// loop can be tested with stubs.

type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) speech.Transcript
}

type Classifier interface {
	Classify(ctx context.Context, req nlp.ClassifyRequest) *nlp.Classification
}

type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) nlp.Translation
}

type Speaker interface {
	Say(ctx context.Context, text, lang string) outcome.Status
	SayWithGrace(ctx context.Context, text, lang string) outcome.Status
}

type Backend interface {
	FetchUserData(ctx context.Context, userID string) (backend.UserData, outcome.Status)
	SendIntent(ctx context.Context, payload backend.IntentPayload) backend.Decision
}

// Deps bundles the collaborators the loop needs.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Classifier  Classifier
	Translator  Translator
	Speaker     Speaker
	Backend     Backend
}

// Config configures the application.
type Config struct {
	// DatabasePath is where the SQLite conversation store lives.
	DatabasePath string

	// Store carries profile defaults and the context window size.
	Store store.Config
}

// App owns the conversation state store and drives the voice loop.
type App struct {
	cfg   Config
	deps  Deps
	store *store.Store
	mem   *memory.Window
}

// New opens the conversation store and wires the loop.  Close must be
// called when the app is done.
func New(cfg Config, deps Deps) (*App, error) {
	st, err := store.New(cfg.DatabasePath, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("app: open conversation store: %w", err)
	}
	return &App{
		cfg:   cfg,
		deps:  deps,
		store: st,
		mem:   &memory.Window{Store: st},
	}, nil
}

// Close releases the conversation store.
func (a *App) Close() error {
	return a.store.Close()
}

// Store exposes the conversation store, mainly for tests.
func (a *App) Store() *store.Store {
	return a.store
}

// Run drives the conversation for userID until the user says goodbye or
// the process receives SIGINT/SIGTERM.  The session record is closed on
// every exit path, including faults, using a fresh context so a cancelled
// ctx cannot leave it dangling.
func (a *App) Run(ctx context.Context, userID string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile, err := a.store.EnsureProfile(ctx, userID, displayName(userID))
	if err != nil {
		return fmt.Errorf("app: ensure profile: %w", err)
	}

	if err := a.store.OpenSession(ctx, userID); err != nil {
		return fmt.Errorf("app: open session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseGrace)
		defer cancel()
		if err := a.store.CloseSession(closeCtx, userID); err != nil {
			slog.Error("app: close session", "err", err, "user_id", userID)
		}
	}()

	a.deps.Speaker.Say(ctx, greeting(profile), profile.Language)

	for {
		if err := a.turn(ctx, profile); err != nil {
			if errors.Is(err, errExit) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// turn runs one listen-classify-respond cycle.  Collaborator failures
// degrade inside the turn; only store faults and cancellation propagate.
func (a *App) turn(ctx context.Context, profile *store.Profile) error {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := observability.WithTrace(ctx)

	wav, err := a.deps.Recorder.Record(ctx)
	if err != nil {
		if ctx.Err() != nil {
			a.sayGoodbye(ctx, profile)
			return context.Canceled
		}
		log.Warn("app: audio capture failed", "err", err)
		a.deps.Speaker.Say(ctx, "I could not access the microphone.", profile.Language)
		return nil
	}

	transcript := a.deps.Transcriber.Transcribe(ctx, wav)
	if transcript.Status.Failed() || transcript.Text == "" {
		a.deps.Speaker.Say(ctx, "I did not hear you. Please repeat.", profile.Language)
		return nil
	}
	utterance := transcript.Text
	log.Info("app: heard utterance", "chars", len(utterance))

	if isExitPhrase(utterance) {
		a.sayGoodbye(ctx, profile)
		return errExit
	}

	lang := speech.DetectLanguage(utterance, profile.Language)

	if err := a.store.AppendMessage(ctx, profile.UserID, store.RoleUser, utterance); err != nil {
		log.Error("app: append user message", "err", err)
		return nil
	}

	history, err := a.mem.Assemble(ctx, profile.UserID)
	if err != nil {
		log.Error("app: assemble context window", "err", err)
		history = nil
	}

	classification := a.deps.Classifier.Classify(ctx, nlp.ClassifyRequest{
		Utterance: utterance,
		Language:  lang,
		History:   toHistory(history),
	})
	log.Info("app: classified utterance",
		"intent", classification.Intent, "language", classification.Language,
		"status", string(classification.Status),
		"details", redact.Map(classification.Details))

	// Remember the language the user actually speaks so the next session
	// greets them in it.
	if lang != profile.Language {
		if err := a.store.UpdatePreferences(ctx, profile.UserID, lang, ""); err != nil {
			log.Warn("app: persist language preference", "err", err)
		} else {
			profile.Language = lang
		}
	}

	userData, _ := a.deps.Backend.FetchUserData(ctx, profile.UserID)

	decision := a.deps.Backend.SendIntent(ctx, backend.IntentPayload{
		UserID:              profile.UserID,
		Intent:              classification.Intent,
		Language:            lang,
		Details:             classification.Details,
		ConversationContext: history,
		UserData:            userData,
	})

	reply := decision.Message
	if reply == "" {
		reply = "Sorry, I could not complete that request right now."
	}

	if lang != "en" {
		translated := a.deps.Translator.Translate(ctx, reply, lang, "en")
		reply = translated.Text
	}

	if err := a.store.AppendMessage(ctx, profile.UserID, store.RoleAssistant, reply); err != nil {
		log.Error("app: append assistant message", "err", err)
	}

	sayStatus := a.deps.Speaker.Say(ctx, reply, lang)

	result := worstStatus(classification.Status, decision.Status, sayStatus)
	if err := a.store.WriteTurnAudit(ctx,
		trace.FromContext(ctx), profile.UserID,
		classification.Intent, lang, string(result), "",
	); err != nil {
		log.Error("app: write turn audit", "err", err)
	}

	return nil
}

func (a *App) sayGoodbye(ctx context.Context, profile *store.Profile) {
	text := "Goodbye. Have a nice day."
	if profile.Language == "hi" {
		text = "धन्यवाद। फिर मिलेंगे।"
	}
	a.deps.Speaker.SayWithGrace(ctx, text, profile.Language)
}

// greeting builds the session-opening message in the profile's language.
func greeting(profile *store.Profile) string {
	if profile.Language == "hi" {
		return fmt.Sprintf("नमस्ते %s। मैं आपकी कैसे मदद करूँ?", profile.Name)
	}
	return fmt.Sprintf("Hello %s. How can I help you today?", profile.Name)
}

// displayName derives a human-ish name from a user ID like "asha@bank".
func displayName(userID string) string {
	if i := strings.IndexByte(userID, '@'); i > 0 {
		return userID[:i]
	}
	return userID
}

func isExitPhrase(utterance string) bool {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	normalized = strings.TrimRight(normalized, ".!?")
	_, ok := exitPhrases[normalized]
	return ok
}

func toHistory(msgs []store.ContextMessage) []nlp.HistoryMessage {
	out := make([]nlp.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, nlp.HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// worstStatus collapses per-collaborator statuses into one turn result.
func worstStatus(statuses ...outcome.Status) outcome.Status {
	worst := outcome.OK
	for _, s := range statuses {
		switch s {
		case outcome.Unavailable:
			return outcome.Unavailable
		case outcome.Degraded:
			worst = outcome.Degraded
		}
	}
	return worst
}
