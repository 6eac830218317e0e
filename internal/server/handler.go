// Package server is a reference implementation of the conversation service
// the sync client talks to.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/chatsync-go/internal/history"
	"github.com/comigor/chatsync-go/internal/logger"
	"github.com/comigor/chatsync-go/internal/remote"
)

// Replier produces the assistant's answer to a user message.
type Replier interface {
	Reply(ctx context.Context, past []history.Message, content string) (string, error)
}

// Handler serves the chat API.
type Handler struct {
	transcript Transcript
	replier    Replier
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(transcript Transcript, replier Replier) *Handler {
	return &Handler{transcript: transcript, replier: replier, now: time.Now}
}

// Routes returns the router for the chat API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/history", h.history)
		r.Post("/message", h.message)
	})
	return r
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	msgs, err := h.transcript.List(r.Context(), userID)
	if err != nil {
		logger.L.Error("list transcript failed", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type messageRequest struct {
	Content string `json:"content"`
	UserID  string `json:"userId"`
}

type messageResponse struct {
	Response string `json:"response"`
	UserID   string `json:"userId,omitempty"`
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = r.Header.Get(remote.UserIDHeader)
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	past, err := h.transcript.List(r.Context(), userID)
	if err != nil {
		logger.L.Error("list transcript failed", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	userMsg := history.NewUserMessage(req.Content, userID, h.now())
	reply, err := h.replier.Reply(r.Context(), past, req.Content)
	if err != nil {
		logger.L.Error("reply failed", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	aiMsg := history.NewAssistantMessage(reply, userID, h.now())

	if err := h.transcript.Append(r.Context(), userMsg, aiMsg); err != nil {
		// the reply is still useful to the caller, which caches it locally
		logger.L.Error("append transcript failed", "userId", userID, "error", err)
	}

	writeJSON(w, http.StatusOK, messageResponse{Response: reply, UserID: userID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
