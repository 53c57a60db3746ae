package goSignup

import (
	"time"

	"github.com/MrEthical07/goSignup/internal"
)

// SecurityReport summarizes the effective registration security posture.
type SecurityReport struct {
	CodeLength         int
	CodeAlphabet       string
	CodeSpace          float64
	GuessProbability   float64
	MaxAttempts        int
	OTPTTL             time.Duration
	ResendCooldown     time.Duration
	MaxResends         int
	AtomicMode         AtomicMode
	IdentifierThrottle bool
	IPThrottle         bool
	LinksEnabled       bool
	SMSEnabled         bool
	Argon2             PasswordConfigReport
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport reports the configuration the engine was built with.
// GuessProbability is the chance that one session is broken by MaxAttempts
// uniformly random guesses, ignoring resends.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	reg := e.config.Registration
	space := internal.CodeSpace(reg.CodeLength, reg.CodeAlphabet)
	var p float64
	if space > 0 {
		p = float64(reg.MaxAttempts) / float64(space)
	}

	return SecurityReport{
		CodeLength:         reg.CodeLength,
		CodeAlphabet:       reg.CodeAlphabet,
		CodeSpace:          space,
		GuessProbability:   p,
		MaxAttempts:        reg.MaxAttempts,
		OTPTTL:             reg.OTPTTL,
		ResendCooldown:     reg.ResendCooldown,
		MaxResends:         reg.MaxResends,
		AtomicMode:         e.config.Store.AtomicMode,
		IdentifierThrottle: e.config.Limiter.EnableIdentifierThrottle,
		IPThrottle:         e.config.Limiter.EnableIPThrottle,
		LinksEnabled:       e.links != nil && e.config.Notification.LinkBaseURL != "",
		SMSEnabled:         e.config.Notification.SMSEnabled,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
	}
}
