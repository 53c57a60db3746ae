package goSignup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSignup/internal"
	internalflows "github.com/MrEthical07/goSignup/internal/flows"
	"github.com/MrEthical07/goSignup/internal/limiters"
	"github.com/MrEthical07/goSignup/internal/stores"
)

// StartRegistration opens a registration session and queues the code for
// delivery. It returns as soon as the session is stored: a failure to queue
// the notification is logged and counted, and the registrant can ask for a
// resend.
//
// Empty required fields and disallowed roles return ErrRegistrationInvalid
// without touching the store.
func (e *Engine) StartRegistration(ctx context.Context, req RegistrationRequest) (StartResult, error) {
	res, err := internalflows.RunStartRegistration(ctx, internalflows.RegistrationFields{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		FullName: req.FullName,
		Role:     req.Role,
		Password: req.Password,
	}, e.registrationFlowDeps())
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{SessionID: res.SessionID, ExpiresIn: res.ExpiresIn}, nil
}

// SubmitCode checks code against the session. Exactly one caller can ever
// observe a matching code; that caller creates the account. Session-state
// results are reported through VerifyResult.Outcome, not as errors.
func (e *Engine) SubmitCode(ctx context.Context, sessionID, code string) (VerifyResult, error) {
	res, err := internalflows.RunSubmitRegistrationCode(ctx, sessionID, code, e.registrationFlowDeps())
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyResultFromFlow(res), nil
}

// RequestResend rotates the session's code, resets its attempts and renews
// its TTL, unless the resend cooldown is still running. The previous code
// stops matching immediately.
func (e *Engine) RequestResend(ctx context.Context, sessionID string) (ResendResult, error) {
	res, err := internalflows.RunResendRegistrationCode(ctx, sessionID, e.registrationFlowDeps())
	if err != nil {
		return ResendResult{}, err
	}
	return ResendResult{Outcome: ResendOutcome(res.Outcome), RetryAfter: res.RetryAfter}, nil
}

// ReconcileRegistration resolves a session left behind by OutcomeUncertain.
// It returns OutcomeSuccess when the account turns out to exist,
// OutcomeRetryLater (session restored) when it does not, and
// OutcomeExpired when the session is gone.
func (e *Engine) ReconcileRegistration(ctx context.Context, sessionID string) (VerifyResult, error) {
	res, err := internalflows.RunReconcileRegistration(ctx, sessionID, e.registrationFlowDeps())
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyResultFromFlow(res), nil
}

// SessionStatus reports a session that is waiting for its code. Expired,
// consumed and unknown sessions return ErrRegistrationNotFound.
func (e *Engine) SessionStatus(ctx context.Context, sessionID string) (SessionInfo, error) {
	res, err := internalflows.RunRegistrationStatus(ctx, sessionID, e.registrationFlowDeps())
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		RemainingTTL:      res.RemainingTTL,
		AttemptsLeft:      res.AttemptsLeft,
		ResendsLeft:       res.ResendsLeft,
		CooldownRemaining: res.CooldownRemaining,
	}, nil
}

func verifyResultFromFlow(res internalflows.RegistrationVerifyResult) VerifyResult {
	return VerifyResult{
		Outcome:           VerifyOutcome(res.Outcome),
		AccountID:         res.AccountID,
		RemainingAttempts: res.RemainingAttempts,
	}
}

func (e *Engine) registrationFlowDeps() internalflows.RegistrationDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.RegistrationDeps{
		OTPTTL:             cfg.Registration.OTPTTL,
		MaxAttempts:        cfg.Registration.MaxAttempts,
		ResendCooldown:     cfg.Registration.ResendCooldown,
		MaxResends:         cfg.Registration.MaxResends,
		CodeLength:         cfg.Registration.CodeLength,
		CodeAlphabet:       cfg.Registration.CodeAlphabet,
		MaterializeTimeout: cfg.Registration.MaterializeTimeout,
		AllowedRoles:       cfg.Registration.AllowedRoles,

		TenantIDFromContext: tenantIDFromContext,
		ClientIPFromContext: clientIPFromContext,

		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrRegistrationRateLimited)
		},
		MapLimiterError: mapRegistrationLimiterError,
		MapStoreError:   mapRegistrationStoreError,

		NewSessionID: func() (string, error) {
			sid, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return sid.String(), nil
		},
		ValidSessionID: func(sessionID string) bool {
			_, err := internal.ParseSessionID(sessionID)
			return err == nil
		},
		NewCode:       internal.NewCode,
		NormalizeCode: internal.NormalizeCode,
		HashCode:      internal.HashCode,

		IsConflict: func(err error) bool {
			return errors.Is(err, ErrAccountConflict)
		},

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,

		Metrics: internalflows.RegistrationMetrics{
			Started:          int(MetricRegistrationStarted),
			StartFailed:      int(MetricRegistrationStartFailed),
			CodeInvalid:      int(MetricRegistrationCodeInvalid),
			Expired:          int(MetricRegistrationExpired),
			AttemptsExceeded: int(MetricRegistrationAttemptsExceeded),
			Completed:        int(MetricRegistrationCompleted),
			Conflict:         int(MetricRegistrationConflict),
			Uncertain:        int(MetricRegistrationUncertain),
			RetryLater:       int(MetricRegistrationRetryLater),
			Resent:           int(MetricResendSent),
			ResendRejected:   int(MetricResendRejected),
			RateLimited:      int(MetricRateLimitHit),
			EnqueueFailed:    int(MetricNotificationEnqueueFailed),
			Reconciled:       int(MetricRegistrationReconciled),
		},
		Events: internalflows.RegistrationEvents{
			Start:     auditEventRegistrationStarted,
			Verify:    auditEventRegistrationVerify,
			Resend:    auditEventRegistrationResend,
			Reconcile: auditEventRegistrationReconcile,
		},
		Errors: internalflows.RegistrationErrors{
			EngineNotReady:       ErrEngineNotReady,
			Invalid:              ErrRegistrationInvalid,
			RateLimited:          ErrRegistrationRateLimited,
			Unavailable:          ErrRegistrationUnavailable,
			NotFound:             ErrRegistrationNotFound,
			PasswordPolicy:       ErrPasswordPolicy,
			ReconcileUnsupported: ErrReconcileUnsupported,
		},
	}

	if e == nil {
		return deps
	}

	deps.Logger = e.logger
	if e.store != nil {
		deps.Store = e.store
	}
	if e.limiter != nil {
		deps.CheckStartLimiter = e.limiter.CheckStart
		deps.CheckVerifyLimiter = e.limiter.CheckVerify
		deps.CheckResendLimiter = e.limiter.CheckResend
	}
	if e.hasher != nil {
		deps.HashCredential = e.hasher.Hash
	}
	if e.materializer != nil {
		deps.Materialize = e.materializeAccount
	}
	if e.reconciler != nil {
		deps.FindAccount = func(ctx context.Context, account internalflows.RegistrationAccount) (string, bool, error) {
			return e.reconciler.FindAccount(ctx, accountFieldsFromFlow(account))
		}
	}
	if e.dispatcher != nil {
		deps.Notify = e.notifyRegistration
	}

	return deps
}

func (e *Engine) materializeAccount(ctx context.Context, account internalflows.RegistrationAccount) (string, error) {
	start := time.Now()
	accountID, err := e.materializer.CreateAccount(ctx, accountFieldsFromFlow(account))
	e.metricObserve(MetricMaterializeLatency, time.Since(start))
	return accountID, err
}

func accountFieldsFromFlow(account internalflows.RegistrationAccount) AccountFields {
	return AccountFields{
		TenantID:       account.TenantID,
		SessionID:      account.SessionID,
		Email:          account.Email,
		Username:       account.Username,
		Phone:          account.Phone,
		FullName:       account.FullName,
		Role:           account.Role,
		CredentialHash: account.CredentialHash,
		EmailVerified:  account.EmailVerified,
	}
}

func mapRegistrationStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrRegistrationNotFound):
		return ErrRegistrationNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}
}

func mapRegistrationLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRegistrationRateLimited):
		return ErrRegistrationRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}
}
