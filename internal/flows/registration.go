package flows

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goSignup/internal/stores"
)

// RegistrationSessionStore is the subset of stores.RegistrationStore the
// registration flows use.
type RegistrationSessionStore interface {
	Create(ctx context.Context, tenantID, sessionID string, record *stores.RegistrationRecord, ttl time.Duration) error
	Get(ctx context.Context, tenantID, sessionID string) (*stores.RegistrationRecord, error)
	Delete(ctx context.Context, tenantID, sessionID string) error
	RemainingTTL(ctx context.Context, tenantID, sessionID string) (time.Duration, error)
	CooldownRemaining(ctx context.Context, tenantID, sessionID string) (time.Duration, error)
	Verify(ctx context.Context, tenantID, sessionID string, codeHash [32]byte, maxAttempts int) (stores.VerifyResult, error)
	Rotate(ctx context.Context, tenantID, sessionID string, codeHash [32]byte, ttl, cooldown time.Duration, maxResends int) (stores.ResendStatus, *stores.RegistrationRecord, error)
	Release(ctx context.Context, tenantID, sessionID string) (bool, error)
}

type RegistrationFields struct {
	Email    string
	Username string
	Phone    string
	FullName string
	Role     string
	Password string
}

// RegistrationAccount is what gets written to the durable account store.
type RegistrationAccount struct {
	TenantID       string
	SessionID      string
	Email          string
	Username       string
	Phone          string
	FullName       string
	Role           string
	CredentialHash string
	EmailVerified  bool
}

// RegistrationNotice asks the notifier to send a code.
type RegistrationNotice struct {
	TenantID  string
	SessionID string
	Email     string
	Phone     string
	Code      string
	TTL       time.Duration
	Resend    bool
}

type RegistrationOutcome int

const (
	RegistrationSuccess RegistrationOutcome = iota + 1
	RegistrationInvalidCode
	RegistrationExpired
	RegistrationAttemptsExceeded
	RegistrationConflict
	RegistrationUncertain
	RegistrationRetryLater
)

func (o RegistrationOutcome) String() string {
	switch o {
	case RegistrationSuccess:
		return "success"
	case RegistrationInvalidCode:
		return "invalid_code"
	case RegistrationExpired:
		return "expired"
	case RegistrationAttemptsExceeded:
		return "attempts_exceeded"
	case RegistrationConflict:
		return "conflict"
	case RegistrationUncertain:
		return "uncertain"
	case RegistrationRetryLater:
		return "retry_later"
	default:
		return "unknown"
	}
}

type RegistrationVerifyResult struct {
	Outcome           RegistrationOutcome
	AccountID         string
	RemainingAttempts int
}

type ResendOutcome int

const (
	ResendSent ResendOutcome = iota + 1
	ResendNoActiveSession
	ResendCooldown
	ResendLimitReached
)

func (o ResendOutcome) String() string {
	switch o {
	case ResendSent:
		return "resent"
	case ResendNoActiveSession:
		return "no_active_session"
	case ResendCooldown:
		return "cooldown"
	case ResendLimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

type RegistrationResendResult struct {
	Outcome    ResendOutcome
	RetryAfter time.Duration
}

type RegistrationStartResult struct {
	SessionID string
	ExpiresIn time.Duration
}

type RegistrationStatus struct {
	RemainingTTL      time.Duration
	AttemptsLeft      int
	ResendsLeft       int
	CooldownRemaining time.Duration
}

type RegistrationMetrics struct {
	Started          int
	StartFailed      int
	CodeInvalid      int
	Expired          int
	AttemptsExceeded int
	Completed        int
	Conflict         int
	Uncertain        int
	RetryLater       int
	Resent           int
	ResendRejected   int
	RateLimited      int
	EnqueueFailed    int
	Reconciled       int
}

type RegistrationEvents struct {
	Start     string
	Verify    string
	Resend    string
	Reconcile string
}

type RegistrationErrors struct {
	EngineNotReady       error
	Invalid              error
	RateLimited          error
	Unavailable          error
	NotFound             error
	PasswordPolicy       error
	ReconcileUnsupported error
}

type RegistrationDeps struct {
	OTPTTL             time.Duration
	MaxAttempts        int
	ResendCooldown     time.Duration
	MaxResends         int
	CodeLength         int
	CodeAlphabet       string
	MaterializeTimeout time.Duration
	AllowedRoles       []string

	TenantIDFromContext func(context.Context) string
	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	Store RegistrationSessionStore

	CheckStartLimiter  func(context.Context, string, string, string) error
	CheckVerifyLimiter func(context.Context, string, string) error
	CheckResendLimiter func(context.Context, string, string) error
	IsRateLimited      func(error) bool
	MapLimiterError    func(error) error
	MapStoreError      func(error) error

	HashCredential func(string) (string, error)
	NewSessionID   func() (string, error)
	ValidSessionID func(string) bool
	NewCode        func(int, string) (string, error)
	NormalizeCode  func(string) string
	HashCode       func(string, string) [32]byte

	Materialize func(context.Context, RegistrationAccount) (string, error)
	IsConflict  func(error) bool
	// FindAccount is nil when the account store cannot look accounts up.
	FindAccount func(context.Context, RegistrationAccount) (string, bool, error)

	Notify func(context.Context, RegistrationNotice) error

	Logger        *slog.Logger
	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, string, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, string, func() map[string]string)

	Metrics RegistrationMetrics
	Events  RegistrationEvents
	Errors  RegistrationErrors
}

// NormalizeRegistrationFields trims every field and lower-cases email,
// username and role. The password is left untouched.
func NormalizeRegistrationFields(fields RegistrationFields) RegistrationFields {
	return RegistrationFields{
		Email:    strings.ToLower(strings.TrimSpace(fields.Email)),
		Username: strings.ToLower(strings.TrimSpace(fields.Username)),
		Phone:    strings.TrimSpace(fields.Phone),
		FullName: strings.TrimSpace(fields.FullName),
		Role:     strings.ToLower(strings.TrimSpace(fields.Role)),
		Password: fields.Password,
	}
}

func RunStartRegistration(ctx context.Context, fields RegistrationFields, deps RegistrationDeps) (RegistrationStartResult, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Store == nil || deps.HashCredential == nil || deps.NewSessionID == nil || deps.NewCode == nil || deps.HashCode == nil {
		return RegistrationStartResult{}, deps.Errors.EngineNotReady
	}

	tenantID := deps.TenantIDFromContext(ctx)
	fields = NormalizeRegistrationFields(fields)

	if reason := invalidRegistrationReason(fields, deps.AllowedRoles); reason != "" {
		deps.MetricInc(deps.Metrics.StartFailed)
		deps.EmitAudit(ctx, deps.Events.Start, false, "", tenantID, "", deps.Errors.Invalid, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return RegistrationStartResult{}, deps.Errors.Invalid
	}

	if deps.CheckStartLimiter != nil {
		if err := deps.CheckStartLimiter(ctx, tenantID, fields.Email, deps.ClientIPFromContext(ctx)); err != nil {
			return RegistrationStartResult{}, limiterFailure(ctx, deps, err, deps.Events.Start, "registration_start", tenantID, "")
		}
	}

	credential, err := deps.HashCredential(fields.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.StartFailed)
		deps.EmitAudit(ctx, deps.Events.Start, false, "", tenantID, "", deps.Errors.PasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "credential_hash_failed",
			}
		})
		return RegistrationStartResult{}, deps.Errors.PasswordPolicy
	}

	sessionID, err := deps.NewSessionID()
	if err != nil {
		deps.MetricInc(deps.Metrics.StartFailed)
		return RegistrationStartResult{}, deps.Errors.Unavailable
	}
	code, err := deps.NewCode(deps.CodeLength, deps.CodeAlphabet)
	if err != nil {
		deps.MetricInc(deps.Metrics.StartFailed)
		return RegistrationStartResult{}, deps.Errors.Unavailable
	}

	record := &stores.RegistrationRecord{
		State:      stores.StateActive,
		CreatedAt:  deps.Now().Unix(),
		CodeHash:   deps.HashCode(sessionID, code),
		Email:      fields.Email,
		Username:   fields.Username,
		Phone:      fields.Phone,
		FullName:   fields.FullName,
		Role:       fields.Role,
		Credential: credential,
	}

	if err := deps.Store.Create(ctx, tenantID, sessionID, record, deps.OTPTTL); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.StartFailed)
		deps.EmitAudit(ctx, deps.Events.Start, false, "", tenantID, sessionID, mapped, nil)
		return RegistrationStartResult{}, mapped
	}

	notify(ctx, deps, RegistrationNotice{
		TenantID:  tenantID,
		SessionID: sessionID,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Code:      code,
		TTL:       deps.OTPTTL,
	})

	deps.MetricInc(deps.Metrics.Started)
	deps.EmitAudit(ctx, deps.Events.Start, true, "", tenantID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"role": fields.Role,
		}
	})

	return RegistrationStartResult{SessionID: sessionID, ExpiresIn: deps.OTPTTL}, nil
}

func RunSubmitRegistrationCode(ctx context.Context, sessionID, code string, deps RegistrationDeps) (RegistrationVerifyResult, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Store == nil || deps.HashCode == nil || deps.Materialize == nil {
		return RegistrationVerifyResult{}, deps.Errors.EngineNotReady
	}

	tenantID := deps.TenantIDFromContext(ctx)
	sessionID = strings.TrimSpace(sessionID)
	code = deps.NormalizeCode(code)

	if sessionID == "" || code == "" || !deps.ValidSessionID(sessionID) {
		deps.EmitAudit(ctx, deps.Events.Verify, false, "", tenantID, "", deps.Errors.Invalid, func() map[string]string {
			return map[string]string{
				"reason": "malformed_input",
			}
		})
		return RegistrationVerifyResult{}, deps.Errors.Invalid
	}

	if deps.CheckVerifyLimiter != nil {
		if err := deps.CheckVerifyLimiter(ctx, tenantID, deps.ClientIPFromContext(ctx)); err != nil {
			return RegistrationVerifyResult{}, limiterFailure(ctx, deps, err, deps.Events.Verify, "registration_verify", tenantID, sessionID)
		}
	}

	res, err := deps.Store.Verify(ctx, tenantID, sessionID, deps.HashCode(sessionID, code), deps.MaxAttempts)
	if err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.Verify, false, "", tenantID, sessionID, mapped, nil)
		return RegistrationVerifyResult{}, mapped
	}

	switch res.Status {
	case stores.VerifyMismatch:
		remaining := deps.MaxAttempts - res.Attempts
		deps.MetricInc(deps.Metrics.CodeInvalid)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationInvalidCode)
		return RegistrationVerifyResult{Outcome: RegistrationInvalidCode, RemainingAttempts: remaining}, nil
	case stores.VerifyExhausted:
		deps.MetricInc(deps.Metrics.AttemptsExceeded)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationAttemptsExceeded)
		return RegistrationVerifyResult{Outcome: RegistrationAttemptsExceeded}, nil
	case stores.VerifyClaimed:
		return materializeRegistration(ctx, deps, tenantID, sessionID, res.Record), nil
	default:
		deps.MetricInc(deps.Metrics.Expired)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationExpired)
		return RegistrationVerifyResult{Outcome: RegistrationExpired}, nil
	}
}

// materializeRegistration writes the account for a claimed session. Only
// the caller that claimed the session reaches this point.
func materializeRegistration(
	ctx context.Context,
	deps RegistrationDeps,
	tenantID, sessionID string,
	record *stores.RegistrationRecord,
) RegistrationVerifyResult {
	account := accountFromRecord(tenantID, sessionID, record)

	mctx, cancel := context.WithTimeout(ctx, deps.MaterializeTimeout)
	accountID, err := deps.Materialize(mctx, account)
	timedOut := mctx.Err() != nil
	cancel()

	// Cleanup must not be skipped because the request context ended.
	cleanupCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		if delErr := deps.Store.Delete(cleanupCtx, tenantID, sessionID); delErr != nil {
			deps.Logger.WarnContext(ctx, "registration session cleanup failed",
				slog.String("session_id", sessionID),
				slog.Any("error", delErr),
			)
		}
		deps.MetricInc(deps.Metrics.Completed)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, accountID, RegistrationSuccess)
		return RegistrationVerifyResult{Outcome: RegistrationSuccess, AccountID: accountID}

	case deps.IsConflict(err):
		if delErr := deps.Store.Delete(cleanupCtx, tenantID, sessionID); delErr != nil {
			deps.Logger.WarnContext(ctx, "registration session cleanup failed",
				slog.String("session_id", sessionID),
				slog.Any("error", delErr),
			)
		}
		deps.MetricInc(deps.Metrics.Conflict)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationConflict)
		return RegistrationVerifyResult{Outcome: RegistrationConflict}

	case timedOut || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// The write may or may not have committed. The session stays claimed
		// until reconciled or expired.
		deps.Logger.WarnContext(ctx, "registration materialization outcome unknown",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		deps.MetricInc(deps.Metrics.Uncertain)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationUncertain)
		return RegistrationVerifyResult{Outcome: RegistrationUncertain}

	default:
		if _, relErr := deps.Store.Release(cleanupCtx, tenantID, sessionID); relErr != nil {
			deps.Logger.WarnContext(ctx, "registration session release failed",
				slog.String("session_id", sessionID),
				slog.Any("error", relErr),
			)
		}
		deps.Logger.WarnContext(ctx, "registration materialization failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		deps.MetricInc(deps.Metrics.RetryLater)
		emitVerifyOutcome(ctx, deps, tenantID, sessionID, "", RegistrationRetryLater)
		return RegistrationVerifyResult{Outcome: RegistrationRetryLater}
	}
}

func RunResendRegistrationCode(ctx context.Context, sessionID string, deps RegistrationDeps) (RegistrationResendResult, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Store == nil || deps.NewCode == nil || deps.HashCode == nil {
		return RegistrationResendResult{}, deps.Errors.EngineNotReady
	}

	tenantID := deps.TenantIDFromContext(ctx)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || !deps.ValidSessionID(sessionID) {
		deps.EmitAudit(ctx, deps.Events.Resend, false, "", tenantID, "", deps.Errors.Invalid, func() map[string]string {
			return map[string]string{
				"reason": "malformed_input",
			}
		})
		return RegistrationResendResult{}, deps.Errors.Invalid
	}

	if deps.CheckResendLimiter != nil {
		if err := deps.CheckResendLimiter(ctx, tenantID, deps.ClientIPFromContext(ctx)); err != nil {
			return RegistrationResendResult{}, limiterFailure(ctx, deps, err, deps.Events.Resend, "registration_resend", tenantID, sessionID)
		}
	}

	code, err := deps.NewCode(deps.CodeLength, deps.CodeAlphabet)
	if err != nil {
		return RegistrationResendResult{}, deps.Errors.Unavailable
	}

	status, record, err := deps.Store.Rotate(
		ctx,
		tenantID,
		sessionID,
		deps.HashCode(sessionID, code),
		deps.OTPTTL,
		deps.ResendCooldown,
		deps.MaxResends,
	)
	if err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.Resend, false, "", tenantID, sessionID, mapped, nil)
		return RegistrationResendResult{}, mapped
	}

	var result RegistrationResendResult
	switch status {
	case stores.ResendRotated:
		notify(ctx, deps, RegistrationNotice{
			TenantID:  tenantID,
			SessionID: sessionID,
			Email:     record.Email,
			Phone:     record.Phone,
			Code:      code,
			TTL:       deps.OTPTTL,
			Resend:    true,
		})
		deps.MetricInc(deps.Metrics.Resent)
		result = RegistrationResendResult{Outcome: ResendSent}
	case stores.ResendCoolingDown:
		retryAfter, cdErr := deps.Store.CooldownRemaining(ctx, tenantID, sessionID)
		if cdErr != nil {
			retryAfter = deps.ResendCooldown
		}
		deps.MetricInc(deps.Metrics.ResendRejected)
		result = RegistrationResendResult{Outcome: ResendCooldown, RetryAfter: retryAfter}
	case stores.ResendLimitReached:
		deps.MetricInc(deps.Metrics.ResendRejected)
		result = RegistrationResendResult{Outcome: ResendLimitReached}
	default:
		deps.MetricInc(deps.Metrics.ResendRejected)
		result = RegistrationResendResult{Outcome: ResendNoActiveSession}
	}

	deps.EmitAudit(ctx, deps.Events.Resend, result.Outcome == ResendSent, "", tenantID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"outcome": result.Outcome.String(),
		}
	})
	return result, nil
}

// RunReconcileRegistration resolves a session left claimed by an uncertain
// materialization by asking the account store whether the account exists.
func RunReconcileRegistration(ctx context.Context, sessionID string, deps RegistrationDeps) (RegistrationVerifyResult, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Store == nil {
		return RegistrationVerifyResult{}, deps.Errors.EngineNotReady
	}
	if deps.FindAccount == nil {
		return RegistrationVerifyResult{}, deps.Errors.ReconcileUnsupported
	}

	tenantID := deps.TenantIDFromContext(ctx)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || !deps.ValidSessionID(sessionID) {
		return RegistrationVerifyResult{}, deps.Errors.Invalid
	}

	record, err := deps.Store.Get(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, stores.ErrRegistrationNotFound) {
			return RegistrationVerifyResult{Outcome: RegistrationExpired}, nil
		}
		return RegistrationVerifyResult{}, deps.MapStoreError(err)
	}
	if record.State != stores.StateMaterializing {
		return RegistrationVerifyResult{Outcome: RegistrationRetryLater}, nil
	}

	accountID, found, err := deps.FindAccount(ctx, accountFromRecord(tenantID, sessionID, record))
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Reconcile, false, "", tenantID, sessionID, deps.Errors.Unavailable, nil)
		return RegistrationVerifyResult{}, deps.Errors.Unavailable
	}

	var result RegistrationVerifyResult
	if found {
		if err := deps.Store.Delete(ctx, tenantID, sessionID); err != nil {
			return RegistrationVerifyResult{}, deps.MapStoreError(err)
		}
		deps.MetricInc(deps.Metrics.Completed)
		result = RegistrationVerifyResult{Outcome: RegistrationSuccess, AccountID: accountID}
	} else {
		if _, err := deps.Store.Release(ctx, tenantID, sessionID); err != nil {
			return RegistrationVerifyResult{}, deps.MapStoreError(err)
		}
		result = RegistrationVerifyResult{Outcome: RegistrationRetryLater}
	}

	deps.MetricInc(deps.Metrics.Reconciled)
	deps.EmitAudit(ctx, deps.Events.Reconcile, found, result.AccountID, tenantID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"outcome": result.Outcome.String(),
		}
	})
	return result, nil
}

// RunRegistrationStatus reports a session that is waiting for its code.
// Claimed sessions are reported as not found, like expired ones.
func RunRegistrationStatus(ctx context.Context, sessionID string, deps RegistrationDeps) (RegistrationStatus, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Store == nil {
		return RegistrationStatus{}, deps.Errors.EngineNotReady
	}

	tenantID := deps.TenantIDFromContext(ctx)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || !deps.ValidSessionID(sessionID) {
		return RegistrationStatus{}, deps.Errors.Invalid
	}

	record, err := deps.Store.Get(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, stores.ErrRegistrationNotFound) {
			return RegistrationStatus{}, deps.Errors.NotFound
		}
		return RegistrationStatus{}, deps.MapStoreError(err)
	}
	if record.State != stores.StateActive {
		return RegistrationStatus{}, deps.Errors.NotFound
	}

	ttl, err := deps.Store.RemainingTTL(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, stores.ErrRegistrationNotFound) {
			return RegistrationStatus{}, deps.Errors.NotFound
		}
		return RegistrationStatus{}, deps.MapStoreError(err)
	}
	cooldown, err := deps.Store.CooldownRemaining(ctx, tenantID, sessionID)
	if err != nil {
		return RegistrationStatus{}, deps.MapStoreError(err)
	}

	status := RegistrationStatus{
		RemainingTTL:      ttl,
		AttemptsLeft:      deps.MaxAttempts - int(record.Attempts),
		ResendsLeft:       -1,
		CooldownRemaining: cooldown,
	}
	if deps.MaxResends > 0 {
		status.ResendsLeft = deps.MaxResends - int(record.Resends)
	}
	return status, nil
}

func accountFromRecord(tenantID, sessionID string, record *stores.RegistrationRecord) RegistrationAccount {
	return RegistrationAccount{
		TenantID:       tenantID,
		SessionID:      sessionID,
		Email:          record.Email,
		Username:       record.Username,
		Phone:          record.Phone,
		FullName:       record.FullName,
		Role:           record.Role,
		CredentialHash: record.Credential,
		EmailVerified:  true,
	}
}

func invalidRegistrationReason(fields RegistrationFields, allowedRoles []string) string {
	switch {
	case fields.Email == "" || !strings.Contains(fields.Email, "@"):
		return "invalid_email"
	case fields.Username == "":
		return "empty_username"
	case fields.Phone == "":
		return "empty_phone"
	case fields.Password == "":
		return "empty_password"
	case fields.Role == "":
		return "empty_role"
	}
	if len(allowedRoles) > 0 {
		for _, role := range allowedRoles {
			if role == fields.Role {
				return ""
			}
		}
		return "role_not_allowed"
	}
	return ""
}

func limiterFailure(
	ctx context.Context,
	deps RegistrationDeps,
	err error,
	event, scope, tenantID, sessionID string,
) error {
	mapped := deps.MapLimiterError(err)
	if deps.IsRateLimited(err) {
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitRateLimit(ctx, scope, tenantID, nil)
	}
	deps.EmitAudit(ctx, event, false, "", tenantID, sessionID, mapped, nil)
	return mapped
}

// notify hands the code to the notifier. Enqueue failures never undo the
// session: the user can ask for a resend.
func notify(ctx context.Context, deps RegistrationDeps, notice RegistrationNotice) {
	if deps.Notify == nil {
		return
	}
	if err := deps.Notify(ctx, notice); err != nil {
		deps.Logger.WarnContext(ctx, "registration code enqueue failed",
			slog.String("session_id", notice.SessionID),
			slog.Bool("resend", notice.Resend),
			slog.Any("error", err),
		)
		deps.MetricInc(deps.Metrics.EnqueueFailed)
	}
}

func emitVerifyOutcome(ctx context.Context, deps RegistrationDeps, tenantID, sessionID, accountID string, outcome RegistrationOutcome) {
	deps.EmitAudit(ctx, deps.Events.Verify, outcome == RegistrationSuccess, accountID, tenantID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"outcome": outcome.String(),
		}
	})
}

func normalizeRegistrationDeps(deps *RegistrationDeps) {
	if deps.TenantIDFromContext == nil {
		deps.TenantIDFromContext = func(context.Context) string { return "0" }
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaterializeTimeout <= 0 {
		deps.MaterializeTimeout = 10 * time.Second
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.ValidSessionID == nil {
		deps.ValidSessionID = func(string) bool { return true }
	}
	if deps.NormalizeCode == nil {
		deps.NormalizeCode = strings.TrimSpace
	}
	if deps.IsConflict == nil {
		deps.IsConflict = func(error) bool { return false }
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, string, func() map[string]string) {}
	}
}
