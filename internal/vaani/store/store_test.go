package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bdobrica/vaani/internal/vaani/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "vaani-test.db"), store.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Profiles ---

func TestEnsureProfile_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureProfile(ctx, "u1", "U1")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	second, err := s.EnsureProfile(ctx, "u1", "Someone Else")
	if err != nil {
		t.Fatalf("EnsureProfile (second): %v", err)
	}

	if second.Name != "U1" {
		t.Errorf("Name changed on duplicate create: got %q, want %q", second.Name, "U1")
	}
	if second.Tone != first.Tone {
		t.Errorf("Tone changed on duplicate create: got %q, want %q", second.Tone, first.Tone)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on duplicate create: got %v, want %v", second.CreatedAt, first.CreatedAt)
	}

	var count int
	err = s.DB().QueryRow("SELECT COUNT(*) FROM users WHERE user_id = ?", "u1").Scan(&count)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 profile row, got %d", count)
	}
}

func TestEnsureProfile_AppliesConfiguredDefaults(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "vaani-test.db"), store.Config{
		DefaultLanguage: "hi",
		DefaultTone:     "formal",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	profile, err := s.EnsureProfile(context.Background(), "u1", "U1")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if profile.Language != "hi" {
		t.Errorf("Language: got %q, want %q", profile.Language, "hi")
	}
	if profile.Tone != "formal" {
		t.Errorf("Tone: got %q, want %q", profile.Tone, "formal")
	}
}

func TestGetProfile_Absent(t *testing.T) {
	s := newTestStore(t)

	profile, err := s.GetProfile(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile != nil {
		t.Errorf("expected nil for unknown user, got %+v", profile)
	}
}

func TestGetProfile_ScenarioA(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureProfile(ctx, "u1", "U1"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if _, err := s.EnsureProfile(ctx, "u1", "U1"); err != nil {
		t.Fatalf("EnsureProfile (second): %v", err)
	}

	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got == nil {
		t.Fatal("expected profile, got nil")
	}
	if got.Name != "U1" {
		t.Errorf("Name: got %q, want %q", got.Name, "U1")
	}
	if got.Language != "en" {
		t.Errorf("Language: got %q, want %q", got.Language, "en")
	}
	if got.Tone != "neutral" {
		t.Errorf("Tone: got %q, want %q", got.Tone, "neutral")
	}
}

func TestUpdatePreferences_Partial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureProfile(ctx, "u1", "U1"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	if err := s.UpdatePreferences(ctx, "u1", "hi", ""); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}

	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Language != "hi" {
		t.Errorf("Language: got %q, want %q", got.Language, "hi")
	}
	if got.Tone != "neutral" {
		t.Errorf("Tone should be unchanged: got %q, want %q", got.Tone, "neutral")
	}
}

func TestUpdatePreferences_UnknownUserIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdatePreferences(context.Background(), "nobody", "hi", "calm"); err != nil {
		t.Fatalf("expected no error for unknown user, got %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Errorf("expected zero mutations, found %d rows", count)
	}
}

// --- Conversation log ---

func TestRecentMessages_ScenarioB(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "u1", store.RoleUser, "check balance"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.AppendMessage(ctx, "u1", store.RoleAssistant, "your balance is 500"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.RecentMessages(ctx, "u1", 8)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	want := []store.ContextMessage{
		{Role: store.RoleUser, Content: "check balance"},
		{Role: store.RoleAssistant, Content: "your balance is 500"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRecentMessages_ChronologicalOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 6
	for i := 0; i < n; i++ {
		if err := s.AppendMessage(ctx, "u1", store.RoleUser, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("AppendMessage(%d): %v", i, err)
		}
	}

	got, err := s.RecentMessages(ctx, "u1", n)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d messages, got %d", n, len(got))
	}
	for i := range got {
		want := fmt.Sprintf("msg-%d", i)
		if got[i].Content != want {
			t.Errorf("message[%d]: got %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestRecentMessages_ScenarioD_BoundedWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.AppendMessage(ctx, "u1", store.RoleUser, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("AppendMessage(%d): %v", i, err)
		}
	}

	got, err := s.RecentMessages(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 messages, got %d", len(got))
	}
	for i, want := range []string{"msg-7", "msg-8", "msg-9"} {
		if got[i].Content != want {
			t.Errorf("message[%d]: got %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestRecentMessages_FewerThanLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "u1", store.RoleUser, "only one"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.RecentMessages(ctx, "u1", 8)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
}

func TestRecentMessages_NonPositiveLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "u1", store.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	for _, limit := range []int{0, -1} {
		got, err := s.RecentMessages(ctx, "u1", limit)
		if err != nil {
			t.Fatalf("RecentMessages(limit=%d): %v", limit, err)
		}
		if len(got) != 0 {
			t.Errorf("RecentMessages(limit=%d): expected empty, got %d messages", limit, len(got))
		}
	}
}

func TestAppendMessage_NoSessionRequired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No profile, no session: appends still land.
	if err := s.AppendMessage(ctx, "orphan", store.RoleUser, "anyone there?"); err != nil {
		t.Fatalf("AppendMessage without session: %v", err)
	}

	count, err := s.MessageCount(ctx, "orphan")
	if err != nil {
		t.Fatalf("MessageCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 message, got %d", count)
	}
}

// --- Sessions ---

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.OpenSession(ctx, "u1"); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SessionEnd != nil {
		t.Error("session should be open after OpenSession")
	}

	if err := s.CloseSession(ctx, "u1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	sessions, err = s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if sessions[0].SessionEnd == nil {
		t.Error("session should be closed after CloseSession")
	}
	if sessions[0].SessionEnd.Before(sessions[0].SessionStart) {
		t.Error("session_end precedes session_start")
	}
}

func TestCloseSession_ScenarioC_GuaranteedCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Mimic the loop's discipline: close is deferred before any work that
	// can fail, so the simulated fault below cannot skip it.
	runTurnThatFaults := func() (err error) {
		if openErr := s.OpenSession(ctx, "u1"); openErr != nil {
			return openErr
		}
		defer func() {
			if closeErr := s.CloseSession(ctx, "u1"); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fmt.Errorf("simulated fault mid-session")
	}

	if err := runTurnThatFaults(); err == nil {
		t.Fatal("expected simulated fault to propagate")
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SessionEnd == nil {
		t.Error("cleanup did not close the session")
	}
}

func TestCloseSession_TargetsMostRecentOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Duplicate opens are permitted; close must only touch the newest.
	if err := s.OpenSession(ctx, "u1"); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := s.OpenSession(ctx, "u1"); err != nil {
		t.Fatalf("OpenSession (second): %v", err)
	}

	if err := s.CloseSession(ctx, "u1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionEnd != nil {
		t.Error("older session should remain open")
	}
	if sessions[1].SessionEnd == nil {
		t.Error("newest session should be closed")
	}
}

func TestCloseSession_NothingOpenIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CloseSession(ctx, "u1"); err != nil {
		t.Fatalf("expected no error closing with nothing open, got %v", err)
	}

	sessions, err := s.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected zero session rows, got %d", len(sessions))
	}
}

// --- Turn audit ---

func TestTurnAudit_WriteAndReadByTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WriteTurnAudit(ctx, "t_abc", "u1", "check_balance", "en", "ok", ""); err != nil {
		t.Fatalf("WriteTurnAudit: %v", err)
	}
	if err := s.WriteTurnAudit(ctx, "t_other", "u1", "unknown", "hi", "degraded", "classifier unavailable"); err != nil {
		t.Fatalf("WriteTurnAudit: %v", err)
	}

	entries, err := s.TurnAuditByTrace(ctx, "t_abc")
	if err != nil {
		t.Fatalf("TurnAuditByTrace: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Intent != "check_balance" {
		t.Errorf("Intent: got %q, want %q", e.Intent, "check_balance")
	}
	if e.Result != "ok" {
		t.Errorf("Result: got %q, want %q", e.Result, "ok")
	}
	if e.ErrorMessage.Valid {
		t.Errorf("ErrorMessage should be null, got %q", e.ErrorMessage.String)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestTurnAudit_RecentLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.WriteTurnAudit(ctx, fmt.Sprintf("t_%d", i), "u1", "check_balance", "en", "ok", ""); err != nil {
			t.Fatalf("WriteTurnAudit(%d): %v", i, err)
		}
	}

	entries, err := s.RecentTurnAudit(ctx, 4)
	if err != nil {
		t.Fatalf("RecentTurnAudit: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries with limit=4, got %d", len(entries))
	}
	if entries[0].TraceID != "t_9" {
		t.Errorf("expected newest first, got %q", entries[0].TraceID)
	}
}

// --- Migrations ---

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaani-test-idempotent.db")

	// Open the same database twice - migrations should only run once.
	s1, err := store.New(path, store.DefaultConfig())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := store.New(path, store.DefaultConfig())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}
