package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bdobrica/vaani/common/retry"
	"github.com/bdobrica/vaani/internal/vaani/backend"
	"github.com/bdobrica/vaani/internal/vaani/outcome"
	"github.com/bdobrica/vaani/internal/vaani/store"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestSendIntent_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/intent" {
			t.Errorf("path = %q, want /api/intent", r.URL.Path)
		}
		var payload backend.IntentPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.UserID != "u1" || payload.Intent != "check_balance" {
			t.Errorf("payload = %+v", payload)
		}
		if len(payload.ConversationContext) != 1 {
			t.Errorf("conversation_context length = %d, want 1", len(payload.ConversationContext))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","message":"Your balance is 5000 rupees."}`))
	}))
	defer server.Close()

	client := backend.New(backend.Config{BaseURL: server.URL, Retry: fastRetry()})
	decision := client.SendIntent(context.Background(), backend.IntentPayload{
		UserID:   "u1",
		Intent:   "check_balance",
		Language: "en",
		ConversationContext: []store.ContextMessage{
			{Role: store.RoleUser, Content: "what is my balance"},
		},
	})

	if decision.Status != outcome.OK {
		t.Fatalf("Status = %q, want %q", decision.Status, outcome.OK)
	}
	if decision.Message != "Your balance is 5000 rupees." {
		t.Fatalf("Message = %q", decision.Message)
	}
	if decision.Raw["status"] != "ok" {
		t.Fatalf("Raw = %v", decision.Raw)
	}
}

func TestSendIntent_AcceptsAlternateMessageKeys(t *testing.T) {
	for _, key := range []string{"message", "response", "reply"} {
		t.Run(key, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{key: "hello"})
			}))
			defer server.Close()

			client := backend.New(backend.Config{BaseURL: server.URL, Retry: fastRetry()})
			decision := client.SendIntent(context.Background(), backend.IntentPayload{Intent: "unknown"})
			if decision.Message != "hello" {
				t.Fatalf("Message = %q, want hello", decision.Message)
			}
		})
	}
}

func TestSendIntent_ErrorStatusIsDegraded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"Account not found."}`))
	}))
	defer server.Close()

	client := backend.New(backend.Config{BaseURL: server.URL, Retry: fastRetry()})
	decision := client.SendIntent(context.Background(), backend.IntentPayload{Intent: "check_balance"})

	if decision.Status != outcome.Degraded {
		t.Fatalf("Status = %q, want %q", decision.Status, outcome.Degraded)
	}
	if decision.Message != "Account not found." {
		t.Fatalf("Message = %q", decision.Message)
	}
}

func TestSendIntent_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"message":"done"}`))
	}))
	defer server.Close()

	client := backend.New(backend.Config{BaseURL: server.URL, Retry: fastRetry()})
	decision := client.SendIntent(context.Background(), backend.IntentPayload{Intent: "make_payment"})

	if decision.Status != outcome.OK {
		t.Fatalf("Status = %q, want %q", decision.Status, outcome.OK)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestSendIntent_UnreachableBackendSpeaksFallback(t *testing.T) {
	client := backend.New(backend.Config{BaseURL: "http://127.0.0.1:1", Retry: fastRetry()})
	decision := client.SendIntent(context.Background(), backend.IntentPayload{Intent: "check_balance"})

	if decision.Status != outcome.Unavailable {
		t.Fatalf("Status = %q, want %q", decision.Status, outcome.Unavailable)
	}
	if decision.Message == "" {
		t.Fatal("Message should carry a speakable fallback")
	}
}

func TestFetchUserData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/u1":
			w.Write([]byte(`{"name":"Asha","accounts":[{"type":"savings","balance":5000}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := backend.New(backend.Config{BaseURL: server.URL, Retry: fastRetry()})

	data, status := client.FetchUserData(context.Background(), "u1")
	if status != outcome.OK {
		t.Fatalf("status = %q, want %q", status, outcome.OK)
	}
	if data["name"] != "Asha" {
		t.Fatalf("data = %v", data)
	}

	data, status = client.FetchUserData(context.Background(), "missing")
	if status != outcome.Degraded {
		t.Fatalf("status for missing user = %q, want %q", status, outcome.Degraded)
	}
	if data != nil {
		t.Fatalf("data for missing user = %v, want nil", data)
	}
}

func TestFetchUserData_Unreachable(t *testing.T) {
	client := backend.New(backend.Config{BaseURL: "http://127.0.0.1:1", Retry: fastRetry()})
	data, status := client.FetchUserData(context.Background(), "u1")
	if status != outcome.Unavailable || data != nil {
		t.Fatalf("got (%v, %q), want (nil, %q)", data, status, outcome.Unavailable)
	}
}
