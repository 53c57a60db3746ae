package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	goSignup "github.com/MrEthical07/goSignup"
)

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) StartRegistration(ctx context.Context, req goSignup.RegistrationRequest) (goSignup.StartResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(goSignup.StartResult), args.Error(1)
}

func (m *mockRegistrar) SubmitCode(ctx context.Context, sessionID, code string) (goSignup.VerifyResult, error) {
	args := m.Called(ctx, sessionID, code)
	return args.Get(0).(goSignup.VerifyResult), args.Error(1)
}

func (m *mockRegistrar) SubmitLink(ctx context.Context, token string) (goSignup.VerifyResult, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(goSignup.VerifyResult), args.Error(1)
}

func (m *mockRegistrar) RequestResend(ctx context.Context, sessionID string) (goSignup.ResendResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(goSignup.ResendResult), args.Error(1)
}

func (m *mockRegistrar) ReconcileRegistration(ctx context.Context, sessionID string) (goSignup.VerifyResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(goSignup.VerifyResult), args.Error(1)
}

func (m *mockRegistrar) SessionStatus(ctx context.Context, sessionID string) (goSignup.SessionInfo, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(goSignup.SessionInfo), args.Error(1)
}

const validRegisterBody = `{
	"email": " Dev@Example.com ",
	"username": "dev_one",
	"phone": "+14155550100",
	"full_name": "Dev One",
	"role": "Developer",
	"password": "correct horse battery"
}`

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStartRegistration(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("StartRegistration", mock.Anything, goSignup.RegistrationRequest{
		Email:    "Dev@Example.com",
		Username: "dev_one",
		Phone:    "+14155550100",
		FullName: "Dev One",
		Role:     "developer",
		Password: "correct horse battery",
	}).Return(goSignup.StartResult{SessionID: "sid-1", ExpiresIn: 5 * time.Minute}, nil)

	rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register", validRegisterBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sid-1", body["session_id"])
	assert.EqualValues(t, 300, body["expires_in"])
	reg.AssertExpectations(t)
}

func TestStartRegistrationValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"email":`},
		{"bad email", strings.Replace(validRegisterBody, "Dev@Example.com", "not-an-email", 1)},
		{"short username", strings.Replace(validRegisterBody, "dev_one", "dv", 1)},
		{"bad phone", strings.Replace(validRegisterBody, "+14155550100", "0123", 1)},
		{"role not allowed", strings.Replace(validRegisterBody, "Developer", "admin", 1)},
		{"short password", strings.Replace(validRegisterBody, "correct horse battery", "short", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := new(mockRegistrar)
			rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
			reg.AssertNotCalled(t, "StartRegistration", mock.Anything, mock.Anything)
		})
	}
}

func TestStartRegistrationErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{goSignup.ErrRegistrationInvalid, http.StatusBadRequest},
		{goSignup.ErrPasswordPolicy, http.StatusBadRequest},
		{goSignup.ErrRegistrationRateLimited, http.StatusTooManyRequests},
		{goSignup.ErrRegistrationUnavailable, http.StatusServiceUnavailable},
		{goSignup.ErrEngineNotReady, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			reg := new(mockRegistrar)
			reg.On("StartRegistration", mock.Anything, mock.Anything).Return(goSignup.StartResult{}, tt.err)

			rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register", validRegisterBody)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestVerifyOutcomeStatus(t *testing.T) {
	tests := []struct {
		outcome goSignup.VerifyOutcome
		status  int
	}{
		{goSignup.OutcomeSuccess, http.StatusCreated},
		{goSignup.OutcomeInvalidCode, http.StatusBadRequest},
		{goSignup.OutcomeExpired, http.StatusGone},
		{goSignup.OutcomeAttemptsExceeded, http.StatusTooManyRequests},
		{goSignup.OutcomeConflict, http.StatusConflict},
		{goSignup.OutcomeUncertain, http.StatusAccepted},
		{goSignup.OutcomeRetryLater, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			reg := new(mockRegistrar)
			reg.On("SubmitCode", mock.Anything, "sid-1", "123456").Return(goSignup.VerifyResult{
				Outcome:           tt.outcome,
				AccountID:         "acc-1",
				RemainingAttempts: 3,
			}, nil)

			rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register/verify",
				`{"session_id":"sid-1","code":"123456"}`)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.outcome.String(), body["outcome"])

			switch tt.outcome {
			case goSignup.OutcomeSuccess:
				assert.Equal(t, "acc-1", body["account_id"])
			case goSignup.OutcomeInvalidCode:
				assert.EqualValues(t, 3, body["remaining_attempts"])
				assert.NotContains(t, body, "account_id")
			default:
				assert.NotContains(t, body, "account_id")
				assert.NotContains(t, body, "remaining_attempts")
			}
		})
	}
}

func TestVerifyRejectsMalformedCode(t *testing.T) {
	reg := new(mockRegistrar)
	rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register/verify",
		`{"session_id":"sid-1","code":"12-34"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reg.AssertNotCalled(t, "SubmitCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyTrimsCodeBeforeValidation(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("SubmitCode", mock.Anything, "sid-1", "123456").
		Return(goSignup.VerifyResult{Outcome: goSignup.OutcomeSuccess, AccountID: "acc-1"}, nil)

	rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register/verify",
		`{"session_id":" sid-1 ","code":" 123456 "}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	reg.AssertExpectations(t)
}

func TestStartRegistrationOversizedBody(t *testing.T) {
	reg := new(mockRegistrar)
	body := `{"email":"dev@example.com","full_name":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reg.AssertNotCalled(t, "StartRegistration", mock.Anything, mock.Anything)
}

func TestResendStatus(t *testing.T) {
	tests := []struct {
		name       string
		result     goSignup.ResendResult
		status     int
		retryAfter string
	}{
		{"sent", goSignup.ResendResult{Outcome: goSignup.ResendOK}, http.StatusAccepted, ""},
		{"no session", goSignup.ResendResult{Outcome: goSignup.ResendNoActiveSession}, http.StatusNotFound, ""},
		{"cooldown", goSignup.ResendResult{Outcome: goSignup.ResendCooldown, RetryAfter: 41500 * time.Millisecond}, http.StatusTooManyRequests, "42"},
		{"limit", goSignup.ResendResult{Outcome: goSignup.ResendLimitReached}, http.StatusTooManyRequests, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := new(mockRegistrar)
			reg.On("RequestResend", mock.Anything, "sid-1").Return(tt.result, nil)

			rec := do(t, NewRouter(reg, Options{}), http.MethodPost, "/register/resend", `{"session_id":"sid-1"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			assert.Equal(t, tt.result.Outcome.String(), decodeBody(t, rec)["outcome"])
		})
	}
}

func TestVerifyLink(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("SubmitLink", mock.Anything, "tok").Return(goSignup.VerifyResult{Outcome: goSignup.OutcomeSuccess, AccountID: "acc-9"}, nil)
	reg.On("SubmitLink", mock.Anything, "bad").Return(goSignup.VerifyResult{}, goSignup.ErrLinkInvalid)

	router := NewRouter(reg, Options{})

	rec := do(t, router, http.MethodGet, "/register/verify-link?token=tok", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acc-9", decodeBody(t, rec)["account_id"])

	rec = do(t, router, http.MethodGet, "/register/verify-link?token=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/register/verify-link", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionStatus(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("SessionStatus", mock.Anything, "sid-1").Return(goSignup.SessionInfo{
		RemainingTTL:      250 * time.Second,
		AttemptsLeft:      4,
		ResendsLeft:       2,
		CooldownRemaining: 1500 * time.Millisecond,
	}, nil)
	reg.On("SessionStatus", mock.Anything, "gone").Return(goSignup.SessionInfo{}, goSignup.ErrRegistrationNotFound)

	router := NewRouter(reg, Options{})

	rec := do(t, router, http.MethodGet, "/register/sid-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 250, body["remaining_ttl"])
	assert.EqualValues(t, 4, body["attempts_left"])
	assert.EqualValues(t, 2, body["resends_left"])
	assert.EqualValues(t, 2, body["cooldown_remaining"])

	rec = do(t, router, http.MethodGet, "/register/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcile(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("ReconcileRegistration", mock.Anything, "sid-1").Return(goSignup.VerifyResult{Outcome: goSignup.OutcomeRetryLater}, nil)
	reg.On("ReconcileRegistration", mock.Anything, "sid-2").Return(goSignup.VerifyResult{}, goSignup.ErrReconcileUnsupported)

	router := NewRouter(reg, Options{})

	rec := do(t, router, http.MethodPost, "/register/reconcile", `{"session_id":"sid-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodPost, "/register/reconcile", `{"session_id":"sid-2"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestClientContextReachesEngine(t *testing.T) {
	reg := new(mockRegistrar)
	reg.On("SubmitCode", mock.MatchedBy(func(ctx context.Context) bool {
		return goSignup.ClientIPFromContext(ctx) == "203.0.113.9" &&
			goSignup.TenantIDFromContext(ctx) == "acme"
	}), "sid-1", "123456").Return(goSignup.VerifyResult{Outcome: goSignup.OutcomeExpired}, nil)

	router := NewRouter(reg, Options{TrustProxy: true, TenantHeader: true})

	req := httptest.NewRequest(http.MethodPost, "/register/verify", strings.NewReader(`{"session_id":"sid-1","code":"123456"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
	reg.AssertExpectations(t)
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := true
	router := NewRouter(new(mockRegistrar), Options{
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("redis down")
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("signup_metric 1\n"))
		}),
	})

	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signup_metric")
}
