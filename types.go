package goSignup

import (
	"context"
	"time"

	"github.com/MrEthical07/goSignup/internal/flows"
)

// RegistrationRequest carries the registrant's fields. Input is expected to
// be validated by the transport layer; the engine only rejects empty
// required fields and roles outside RegistrationConfig.AllowedRoles.
type RegistrationRequest struct {
	Email    string
	Username string
	Phone    string
	FullName string
	Role     string
	// Password is hashed before the session is stored and never persisted
	// in plaintext.
	Password string
}

// StartResult is returned by StartRegistration.
type StartResult struct {
	SessionID string
	ExpiresIn time.Duration
}

// VerifyOutcome is the state-machine result of a code submission. Outcomes
// are values, not errors: only malformed input and backend failures are
// reported through the error return.
type VerifyOutcome int

const (
	// OutcomeSuccess means the account was created. VerifyResult.AccountID
	// is set.
	OutcomeSuccess VerifyOutcome = VerifyOutcome(flows.RegistrationSuccess)
	// OutcomeInvalidCode means the code did not match and the session is
	// still alive. VerifyResult.RemainingAttempts is set.
	OutcomeInvalidCode VerifyOutcome = VerifyOutcome(flows.RegistrationInvalidCode)
	// OutcomeExpired covers sessions that expired, were consumed, or never
	// existed. The three cases are deliberately indistinguishable.
	OutcomeExpired VerifyOutcome = VerifyOutcome(flows.RegistrationExpired)
	// OutcomeAttemptsExceeded means the last allowed attempt failed and the
	// session was deleted.
	OutcomeAttemptsExceeded VerifyOutcome = VerifyOutcome(flows.RegistrationAttemptsExceeded)
	// OutcomeConflict means the account store rejected a duplicate unique
	// field. The session was deleted.
	OutcomeConflict VerifyOutcome = VerifyOutcome(flows.RegistrationConflict)
	// OutcomeUncertain means the account write timed out and may or may not
	// have committed. Call ReconcileRegistration to resolve it.
	OutcomeUncertain VerifyOutcome = VerifyOutcome(flows.RegistrationUncertain)
	// OutcomeRetryLater means the account store failed transiently. The
	// session was restored and the same code can be submitted again.
	OutcomeRetryLater VerifyOutcome = VerifyOutcome(flows.RegistrationRetryLater)
)

func (o VerifyOutcome) String() string {
	return flows.RegistrationOutcome(o).String()
}

type VerifyResult struct {
	Outcome           VerifyOutcome
	AccountID         string
	RemainingAttempts int
}

// ResendOutcome is the result of RequestResend.
type ResendOutcome int

const (
	ResendOK              ResendOutcome = ResendOutcome(flows.ResendSent)
	ResendNoActiveSession ResendOutcome = ResendOutcome(flows.ResendNoActiveSession)
	// ResendCooldown leaves the current code valid. ResendResult.RetryAfter
	// reports the remaining cooldown.
	ResendCooldown     ResendOutcome = ResendOutcome(flows.ResendCooldown)
	ResendLimitReached ResendOutcome = ResendOutcome(flows.ResendLimitReached)
)

func (o ResendOutcome) String() string {
	return flows.ResendOutcome(o).String()
}

type ResendResult struct {
	Outcome    ResendOutcome
	RetryAfter time.Duration
}

// SessionInfo describes a session that is waiting for its code.
type SessionInfo struct {
	RemainingTTL time.Duration
	AttemptsLeft int
	// ResendsLeft is -1 when resends are unlimited.
	ResendsLeft       int
	CooldownRemaining time.Duration
}

// AccountFields is what an AccountMaterializer persists. EmailVerified is
// always true: a matching code proves control of the address.
type AccountFields struct {
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

// AccountMaterializer creates the durable account once a code matched. It
// must return (or wrap) ErrAccountConflict when a unique field is taken and
// should honor ctx cancellation.
type AccountMaterializer interface {
	CreateAccount(ctx context.Context, fields AccountFields) (accountID string, err error)
}

// AccountReconciler is optionally implemented by an AccountMaterializer to
// resolve OutcomeUncertain sessions. FindAccount reports whether an account
// matching fields exists.
type AccountReconciler interface {
	FindAccount(ctx context.Context, fields AccountFields) (accountID string, found bool, err error)
}

// CredentialHasher turns a plaintext password into an opaque credential.
// The default is Argon2id from the password package.
type CredentialHasher interface {
	Hash(password string) (string, error)
}

// AccountMaterializerFunc adapts a function to AccountMaterializer.
type AccountMaterializerFunc func(ctx context.Context, fields AccountFields) (string, error)

func (f AccountMaterializerFunc) CreateAccount(ctx context.Context, fields AccountFields) (string, error) {
	return f(ctx, fields)
}
