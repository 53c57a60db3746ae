package goSignup

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSignup/internal"
)

// Config groups every tunable of the registration engine. Obtain one from
// DefaultConfig or ConfigFromEnv, adjust it, and pass it to
// Builder.WithConfig. The engine keeps its own copy.
type Config struct {
	Registration RegistrationConfig
	Store        StoreConfig
	Limiter      LimiterConfig
	Dispatch     DispatchConfig
	Notification NotificationConfig
	Password     PasswordConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

const (
	// CodeAlphabetNumeric produces decimal codes.
	CodeAlphabetNumeric = internal.AlphabetNumeric
	// CodeAlphabetAlphanumeric produces upper-case codes without ambiguous
	// glyphs. Submitted codes are matched case-insensitively.
	CodeAlphabetAlphanumeric = internal.AlphabetAlphanumeric
)

// RegistrationConfig holds the OTP session parameters.
type RegistrationConfig struct {
	OTPTTL         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	// MaxResends caps code rotations per session. 0 means unlimited.
	MaxResends   int
	CodeLength   int
	CodeAlphabet string
	// MaterializeTimeout bounds the AccountMaterializer call. Exceeding it
	// yields OutcomeUncertain.
	MaterializeTimeout time.Duration
	// AllowedRoles restricts RegistrationRequest.Role. Empty allows any
	// non-empty role.
	AllowedRoles []string
}

/*
====================================
STORE CONFIG
====================================
*/

// AtomicMode selects the Redis primitive used for code verification.
type AtomicMode string

const (
	// AtomicLua verifies with a single server-side script.
	AtomicLua AtomicMode = "lua"
	// AtomicWatch verifies with an optimistic WATCH/MULTI transaction.
	AtomicWatch AtomicMode = "watch"
)

type StoreConfig struct {
	RedisPrefix string
	AtomicMode  AtomicMode
}

/*
====================================
LIMITER CONFIG
====================================
*/

// LimiterConfig bounds requests per email address and per client IP within
// a fixed Window. A Max value of 0 disables that particular check.
type LimiterConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxStarts                int
	MaxVerifies              int
	MaxResends               int
}

/*
====================================
DISPATCH CONFIG
====================================
*/

// RetryPolicy controls redelivery of failed notifications. Errors wrapped
// with notify.Permanent are never retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
	Jitter         float64
	// Retryable overrides the default permanent/transient classification.
	Retryable func(error) bool
}

type DispatchConfig struct {
	Workers        int
	QueueSize      int
	DropIfFull     bool
	AttemptTimeout time.Duration
	// RatePerSecond caps outbound deliveries. 0 disables the cap.
	RatePerSecond float64
	Burst         int
	Retry         RetryPolicy
	// ShutdownTimeout bounds how long Close waits for queued deliveries.
	ShutdownTimeout time.Duration
}

/*
====================================
NOTIFICATION CONFIG
====================================
*/

type NotificationConfig struct {
	// SMSEnabled also sends the code to the registrant's phone.
	SMSEnabled bool
	// LinkBaseURL enables one-click verification links in emails when set
	// together with LinkSecret. The token is appended as ?token=.
	LinkBaseURL string
	LinkSecret  []byte
	LinkIssuer  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the default Argon2id credential hasher. It is
// ignored when Builder.WithHasher supplies another implementation.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: a six digit code valid for
// five minutes, five attempts and a one minute resend cooldown.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Registration: RegistrationConfig{
			OTPTTL:             300 * time.Second,
			MaxAttempts:        5,
			ResendCooldown:     60 * time.Second,
			MaxResends:         0,
			CodeLength:         6,
			CodeAlphabet:       CodeAlphabetNumeric,
			MaterializeTimeout: 10 * time.Second,
			AllowedRoles:       []string{"developer", "mentor"},
		},
		Store: StoreConfig{
			RedisPrefix: "sgr",
			AtomicMode:  AtomicLua,
		},
		Limiter: LimiterConfig{
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			Window:                   15 * time.Minute,
			MaxStarts:                5,
			MaxVerifies:              50,
			MaxResends:               10,
		},
		Dispatch: DispatchConfig{
			Workers:        4,
			QueueSize:      1024,
			DropIfFull:     true,
			AttemptTimeout: 15 * time.Second,
			RatePerSecond:  0,
			Burst:          1,
			Retry: RetryPolicy{
				MaxRetries:     3,
				InitialBackoff: 5 * time.Second,
				Multiplier:     2,
				MaxBackoff:     time.Minute,
				Jitter:         0.2,
			},
			ShutdownTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{
			SMSEnabled: false,
			LinkIssuer: "goSignup",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Registration.AllowedRoles = append([]string(nil), cfg.Registration.AllowedRoles...)
	out.Notification.LinkSecret = cloneBytes(cfg.Notification.LinkSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// maxGuessProbability bounds MaxAttempts / code space: an attacker that
// uses every attempt must have at most this chance of hitting the code.
const maxGuessProbability = 1e-4

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	r := c.Registration
	if r.OTPTTL <= 0 {
		return errors.New("Registration OTPTTL must be > 0")
	}
	if r.MaxAttempts <= 0 {
		return errors.New("Registration MaxAttempts must be > 0")
	}
	if r.MaxAttempts > 0xFFFF {
		return errors.New("Registration MaxAttempts must be <= 65535")
	}
	if r.ResendCooldown < 0 {
		return errors.New("Registration ResendCooldown must be >= 0")
	}
	if r.ResendCooldown >= r.OTPTTL {
		return errors.New("Registration ResendCooldown must be shorter than OTPTTL")
	}
	if r.MaxResends < 0 || r.MaxResends > 0xFFFF {
		return errors.New("Registration MaxResends must be between 0 and 65535")
	}
	if r.CodeLength < internal.MinCodeLength || r.CodeLength > internal.MaxCodeLength {
		return errors.New("Registration CodeLength must be between 4 and 12")
	}
	if r.CodeAlphabet != CodeAlphabetNumeric && r.CodeAlphabet != CodeAlphabetAlphanumeric {
		return errors.New("Registration CodeAlphabet must be numeric or alphanumeric")
	}
	if float64(r.MaxAttempts)/internal.CodeSpace(r.CodeLength, r.CodeAlphabet) > maxGuessProbability {
		return errors.New("Registration MaxAttempts is too large for the code space")
	}
	if r.MaterializeTimeout <= 0 {
		return errors.New("Registration MaterializeTimeout must be > 0")
	}
	for _, role := range r.AllowedRoles {
		if strings.TrimSpace(role) == "" {
			return errors.New("Registration AllowedRoles must not contain empty roles")
		}
	}

	switch c.Store.AtomicMode {
	case AtomicLua, AtomicWatch:
	default:
		return errors.New("Store AtomicMode must be 'lua' or 'watch'")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, ": ") {
		return errors.New("Store RedisPrefix must not contain ':' or spaces")
	}

	if c.Limiter.EnableIdentifierThrottle || c.Limiter.EnableIPThrottle {
		if c.Limiter.Window <= 0 {
			return errors.New("Limiter Window must be > 0 when throttling is enabled")
		}
		if c.Limiter.MaxStarts < 0 || c.Limiter.MaxVerifies < 0 || c.Limiter.MaxResends < 0 {
			return errors.New("Limiter maximums must be >= 0")
		}
	}

	d := c.Dispatch
	if d.Workers <= 0 {
		return errors.New("Dispatch Workers must be > 0")
	}
	if d.QueueSize <= 0 {
		return errors.New("Dispatch QueueSize must be > 0")
	}
	if d.AttemptTimeout < 0 {
		return errors.New("Dispatch AttemptTimeout must be >= 0")
	}
	if d.RatePerSecond < 0 {
		return errors.New("Dispatch RatePerSecond must be >= 0")
	}
	if d.Retry.MaxRetries < 0 {
		return errors.New("Dispatch Retry MaxRetries must be >= 0")
	}
	if d.Retry.MaxRetries > 0 && d.Retry.InitialBackoff <= 0 {
		return errors.New("Dispatch Retry InitialBackoff must be > 0 when retries are enabled")
	}
	if d.Retry.Jitter < 0 || d.Retry.Jitter >= 1 {
		return errors.New("Dispatch Retry Jitter must be in [0, 1)")
	}

	n := c.Notification
	if n.LinkBaseURL != "" && len(n.LinkSecret) < 32 {
		return errors.New("Notification LinkSecret must be at least 32 bytes when LinkBaseURL is set")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
