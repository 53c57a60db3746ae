package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	goSignup "github.com/MrEthical07/goSignup"
)

const maxBodyBytes = 64 << 10

type handler struct {
	reg    Registrar
	logger *slog.Logger
}

// normalizer is implemented by request bodies that clean up fields
// before validation.
type normalizer interface {
	normalize()
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validateStruct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.reg.StartRegistration(r.Context(), goSignup.RegistrationRequest{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		FullName: req.FullName,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID: res.SessionID,
		ExpiresIn: int64(res.ExpiresIn / time.Second),
	})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.reg.SubmitCode(r.Context(), req.SessionID, req.Code)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeVerifyResult(w, res)
}

func (h *handler) verifyLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	res, err := h.reg.SubmitLink(r.Context(), token)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeVerifyResult(w, res)
}

func (h *handler) resend(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.reg.RequestResend(r.Context(), req.SessionID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	body := resendResponse{Outcome: res.Outcome.String()}
	switch res.Outcome {
	case goSignup.ResendOK:
		writeJSON(w, http.StatusAccepted, body)
	case goSignup.ResendCooldown:
		secs := int64((res.RetryAfter + time.Second - 1) / time.Second)
		body.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, body)
	case goSignup.ResendLimitReached:
		writeJSON(w, http.StatusTooManyRequests, body)
	default:
		writeJSON(w, http.StatusNotFound, body)
	}
}

func (h *handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.reg.ReconcileRegistration(r.Context(), req.SessionID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeVerifyResult(w, res)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	info, err := h.reg.SessionStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		RemainingTTL:      int64(info.RemainingTTL / time.Second),
		AttemptsLeft:      info.AttemptsLeft,
		ResendsLeft:       info.ResendsLeft,
		CooldownRemaining: int64((info.CooldownRemaining + time.Second - 1) / time.Second),
	})
}

func writeVerifyResult(w http.ResponseWriter, res goSignup.VerifyResult) {
	body := verifyResponse{Outcome: res.Outcome.String()}

	var status int
	switch res.Outcome {
	case goSignup.OutcomeSuccess:
		status = http.StatusCreated
		body.AccountID = res.AccountID
	case goSignup.OutcomeInvalidCode:
		status = http.StatusBadRequest
		remaining := res.RemainingAttempts
		body.RemainingAttempts = &remaining
	case goSignup.OutcomeExpired:
		status = http.StatusGone
		body.Message = "registration expired, start again"
	case goSignup.OutcomeAttemptsExceeded:
		status = http.StatusTooManyRequests
		body.Message = "too many attempts, start again"
	case goSignup.OutcomeConflict:
		status = http.StatusConflict
		body.Message = "an account with this email or username already exists"
	case goSignup.OutcomeUncertain:
		status = http.StatusAccepted
		body.Message = "registration is being finalized"
	case goSignup.OutcomeRetryLater:
		status = http.StatusServiceUnavailable
		body.Message = "temporarily unavailable, submit the same code again"
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, body)
}

func (h *handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goSignup.ErrRegistrationInvalid):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, goSignup.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, "password rejected")
	case errors.Is(err, goSignup.ErrLinkInvalid):
		writeError(w, http.StatusBadRequest, "invalid or expired link")
	case errors.Is(err, goSignup.ErrLinkDisabled):
		writeError(w, http.StatusNotFound, "link verification disabled")
	case errors.Is(err, goSignup.ErrRegistrationNotFound):
		writeError(w, http.StatusNotFound, "registration not found")
	case errors.Is(err, goSignup.ErrRegistrationRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, goSignup.ErrReconcileUnsupported):
		writeError(w, http.StatusNotImplemented, "reconcile unsupported")
	case errors.Is(err, goSignup.ErrRegistrationUnavailable),
		errors.Is(err, goSignup.ErrEngineNotReady):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "registration request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
