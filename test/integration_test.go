//go:build integration

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/ziactl/internal/api"
	"github.com/user/ziactl/internal/confirm"
	"github.com/user/ziactl/internal/feed"
	"github.com/user/ziactl/internal/session"
	"github.com/user/ziactl/internal/types"
)

// fakeBackend is a minimal in-process action backend: login issues
// tokens, execute returns a confirmation-required preview, confirm
// completes the action.
type fakeBackend struct {
	mux       *http.ServeMux
	confirmed int
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{mux: http.NewServeMux()}

	b.mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		})
	})

	b.mux.HandleFunc("POST /actions/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(types.ActionResponse{
			ExecutionID:          "exec-1",
			Status:               types.StatusPendingConfirmation,
			ConfirmationRequired: true,
			ConfirmationToken:    "tok-1",
			ActionPreview: &types.ActionPreview{
				Action:    "delete_files",
				RiskLevel: types.RiskHigh,
			},
		})
	})

	b.mux.HandleFunc("POST /actions/confirm", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExecutionID       string `json:"execution_id"`
			ConfirmationToken string `json:"confirmation_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfirmationToken != "tok-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.confirmed++
		json.NewEncoder(w).Encode(types.ActionResponse{
			ExecutionID: req.ExecutionID,
			Status:      types.StatusCompleted,
			Message:     "files deleted",
		})
	})

	return b
}

func TestEndToEndConfirmationFlow(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.mux)
	defer srv.Close()

	ctx := context.Background()
	store := session.NewStore()
	client := api.New(srv.URL, store)

	if _, err := client.Login(ctx, "user@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if !store.Authenticated() {
		t.Fatal("expected authenticated store after login")
	}

	actionFeed := feed.New()
	outcomes := make(chan confirm.Outcome, 1)
	tracker := confirm.NewTracker(confirm.Config{
		Resolver: client,
		TTL:      time.Minute,
		OnResolved: func(executionID string, outcome confirm.Outcome) {
			outcomes <- outcome
		},
	})
	defer tracker.Close()

	// Execute an action that needs confirmation.
	resp, err := client.Execute(ctx, types.ActionRequest{
		InputText: "delete the old backups",
		Source:    types.SourceText,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.ConfirmationRequired {
		t.Fatal("expected confirmation required")
	}

	actionFeed.Record(types.FeedEntryFromResponse(resp, types.SourceText, time.Now()))

	pc := types.PendingConfirmation{
		ExecutionID:       resp.ExecutionID,
		ConfirmationToken: resp.ConfirmationToken,
		RiskLevel:         resp.ActionPreview.RiskLevel,
		ActionPreview:     *resp.ActionPreview,
	}
	if err := tracker.Open(pc); err != nil {
		t.Fatal(err)
	}

	// Confirm through the tracker; the resolver hits the backend.
	result, err := tracker.Confirm(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if backend.confirmed != 1 {
		t.Errorf("expected exactly 1 confirm call, got %d", backend.confirmed)
	}

	select {
	case outcome := <-outcomes:
		if outcome != confirm.OutcomeConfirmed {
			t.Errorf("expected confirmed outcome, got %s", outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for outcome")
	}

	// Reconcile the terminal result into the feed; the entry dedupes.
	actionFeed.Record(types.FeedEntryFromResponse(result, types.SourceText, time.Now()))
	if actionFeed.Len() != 1 {
		t.Fatalf("expected 1 feed entry after reconcile, got %d", actionFeed.Len())
	}
	entry, ok := actionFeed.Get("exec-1")
	if !ok {
		t.Fatal("expected exec-1 in feed")
	}
	if entry.Status != types.StatusCompleted {
		t.Errorf("expected feed entry completed, got %s", entry.Status)
	}
}
