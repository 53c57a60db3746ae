package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Phone    string `json:"phone" validate:"required,phone"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required,oneof=developer mentor"`
	Password string `json:"password" validate:"required,min=10,max=1024"`
}

// Role and email are compared case-insensitively downstream.
func (r *registerRequest) normalize() {
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

type verifyRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
	Code      string `json:"code" validate:"required,alphanum,min=4,max=12"`
}

func (r *verifyRequest) normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Code = strings.TrimSpace(r.Code)
}

type sessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// verifyResponse carries the outcome of a code or link submission.
type verifyResponse struct {
	Outcome           string `json:"outcome"`
	AccountID         string `json:"account_id,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	Message           string `json:"message,omitempty"`
}

type resendResponse struct {
	Outcome    string `json:"outcome"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

type statusResponse struct {
	RemainingTTL      int64 `json:"remaining_ttl"`
	AttemptsLeft      int   `json:"attempts_left"`
	ResendsLeft       int   `json:"resends_left"`
	CooldownRemaining int64 `json:"cooldown_remaining"`
}

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
