package handlers

import (
	"encoding/json"
	"net/http"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/orchestrator"
)

// AskHandler handles HTTP requests for academic questions.
type AskHandler struct {
	bot orchestrator.AskBot
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(bot orchestrator.AskBot) *AskHandler {
	return &AskHandler{bot: bot}
}

// AskRequest represents the HTTP request payload for questions.
type AskRequest struct {
	UserID   int64  `json:"user_id"`
	Question string `json:"question"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP answers one question. The response body is always the full
// answer envelope; an empty question still gets a well-formed envelope with
// validation malformed_query rather than a 400.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 {
		logger.WarnContext(ctx, "missing user_id in request")
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	env, status := h.bot.Ask(ctx, orchestrator.AskRequest{
		RequestID: contextutil.RequestIDFromContext(ctx),
		UserID:    req.UserID,
		Query:     req.Question,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
