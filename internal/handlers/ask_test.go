package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"akademik-ai/internal/envelope"
	"akademik-ai/internal/orchestrator"
)

type fakeBot struct {
	env    *envelope.Envelope
	status int
	gotReq orchestrator.AskRequest
	called bool
}

func (f *fakeBot) Ask(_ context.Context, req orchestrator.AskRequest) (*envelope.Envelope, int) {
	f.called = true
	f.gotReq = req
	return f.env, f.status
}

func answeredEnvelope() *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: "IPK kamu 3.41.",
		Meta: envelope.Meta{
			Mode:       "doc_referenced",
			Pipeline:   envelope.PipelineRAGSemantic,
			Validation: envelope.ValidationNotApplicable,
		},
	}
	env.Normalize()
	return env
}

func TestAskHandler_Success(t *testing.T) {
	bot := &fakeBot{env: answeredEnvelope(), status: http.StatusOK}
	handler := NewAskHandler(bot)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"user_id": 7, "question": "berapa ipk saya"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if bot.gotReq.UserID != 7 || bot.gotReq.Query != "berapa ipk saya" {
		t.Errorf("bot request = %+v", bot.gotReq)
	}

	var resp envelope.Envelope
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer != "IPK kamu 3.41." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Sources == nil {
		t.Error("sources must encode as an array, not null")
	}
}

func TestAskHandler_EmptyQuestionReachesBot(t *testing.T) {
	malformed := &envelope.Envelope{
		Answer: "Pertanyaan kosong.",
		Meta: envelope.Meta{
			Mode:       "guard",
			Pipeline:   envelope.PipelineRouteGuard,
			Validation: envelope.ValidationMalformedQuery,
		},
	}
	malformed.Normalize()
	bot := &fakeBot{env: malformed, status: http.StatusOK}
	handler := NewAskHandler(bot)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"user_id": 7, "question": ""}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Blank questions are handled by the orchestrator, not rejected as 400.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !bot.called {
		t.Error("empty question must still reach the orchestrator")
	}
}

func TestAskHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"user_id": `, http.StatusBadRequest},
		{"missing user_id", `{"question": "halo"}`, http.StatusBadRequest},
		{"negative user_id", `{"user_id": -3, "question": "halo"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{env: answeredEnvelope(), status: http.StatusOK}
			handler := NewAskHandler(bot)

			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if bot.called {
				t.Error("bot must not run for a rejected request")
			}
		})
	}
}

func TestAskHandler_MethodNotAllowed(t *testing.T) {
	handler := NewAskHandler(&fakeBot{env: answeredEnvelope(), status: http.StatusOK})

	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestAskHandler_DegradedStatusPassthrough(t *testing.T) {
	busy := answeredEnvelope()
	busy.Meta.Validation = envelope.ValidationFailedFallback
	bot := &fakeBot{env: busy, status: http.StatusInternalServerError}
	handler := NewAskHandler(bot)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"user_id": 7, "question": "berapa ipk saya"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp envelope.Envelope
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Even a 500 carries the degraded envelope, never a bare error.
	if resp.Answer == "" {
		t.Error("degraded response must still carry an answer")
	}
}
