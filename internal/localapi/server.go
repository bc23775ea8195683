// internal/localapi/server.go
package localapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/ziactl/internal/confirm"
	"github.com/user/ziactl/internal/feed"
	"github.com/user/ziactl/internal/types"
)

// Server is a lightweight HTTP handler exposing the watch daemon's state
// to other local processes: the action feed, the pending confirmation,
// and confirm/reject controls.
type Server struct {
	feed    *feed.Feed
	tracker *confirm.Tracker
	token   string
	mux     *http.ServeMux
}

// NewServer creates a local API Server over the given feed and tracker.
// If token is non-empty, every request except /health must carry it as a
// bearer token.
func NewServer(f *feed.Feed, tracker *confirm.Tracker, token string) *Server {
	s := &Server{
		feed:    f,
		tracker: tracker,
		token:   token,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/feed", s.authorized(s.handleFeed))
	s.mux.HandleFunc("GET /api/pending", s.authorized(s.handlePending))
	s.mux.HandleFunc("POST /api/confirm", s.authorized(s.handleConfirm))
	s.mux.HandleFunc("POST /api/reject", s.authorized(s.handleReject))
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// authorized wraps a handler with bearer token checking when a token is set.
func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	entries := s.feed.List()
	if entries == nil {
		entries = []types.FeedEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// pendingResponse is the JSON shape for GET /api/pending.
type pendingResponse struct {
	Pending          *types.PendingConfirmation `json:"pending"`
	RemainingSeconds float64                    `json:"remaining_seconds"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	resp := pendingResponse{
		Pending:          s.tracker.Pending(),
		RemainingSeconds: s.tracker.Remaining().Round(time.Second).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	resp, err := s.tracker.Confirm(r.Context())
	if err != nil {
		writeConfirmError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// rejectRequest is the optional JSON body for POST /api/reject.
type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	// Body is optional; ignore decode failures.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.tracker.Reject(r.Context(), body.Reason); err != nil {
		writeConfirmError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "rejected"})
}

func writeConfirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, confirm.ErrNoActivePending):
		http.Error(w, `{"error":"no pending confirmation"}`, http.StatusNotFound)
	default:
		slog.Error("confirmation resolve failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	}
}
