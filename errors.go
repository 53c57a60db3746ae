package goSignup

import "errors"

var (
	// ErrEngineNotReady is returned when a required collaborator was not wired
	// through the Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRegistrationInvalid reports malformed client input. The session store
	// is never touched when it is returned.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrRegistrationRateLimited is returned when a start, verify or resend
	// throttle denies the request.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrRegistrationUnavailable wraps session store or limiter failures.
	ErrRegistrationUnavailable = errors.New("registration backend unavailable")
	// ErrRegistrationNotFound is returned by SessionStatus for sessions that
	// are expired, consumed or never existed.
	ErrRegistrationNotFound = errors.New("registration session not found")
	// ErrPasswordPolicy is returned when the credential hasher rejects the
	// password.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrReconcileUnsupported is returned by ReconcileRegistration when the
	// account materializer cannot look accounts up.
	ErrReconcileUnsupported = errors.New("account materializer does not support reconciliation")
	// ErrLinkInvalid is returned by SubmitLink for tokens that fail signature,
	// expiry or claim checks.
	ErrLinkInvalid = errors.New("verification link invalid")
	// ErrLinkDisabled is returned by SubmitLink when no link secret is
	// configured.
	ErrLinkDisabled = errors.New("verification links disabled")
	// ErrAccountConflict must be returned (or wrapped) by an
	// AccountMaterializer when a unique field is already taken.
	ErrAccountConflict = errors.New("account already exists")
)
