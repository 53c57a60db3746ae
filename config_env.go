package goSignup

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv starts from DefaultConfig and overrides the engine settings
// found in SIGNUP_* environment variables. Unparseable values keep the
// default. The result still has to pass Validate.
func ConfigFromEnv() Config {
	cfg := defaultConfig()

	r := &cfg.Registration
	r.OTPTTL = getEnvDuration("SIGNUP_OTP_TTL", r.OTPTTL)
	r.MaxAttempts = getEnvInt("SIGNUP_MAX_ATTEMPTS", r.MaxAttempts)
	r.ResendCooldown = getEnvDuration("SIGNUP_RESEND_COOLDOWN", r.ResendCooldown)
	r.MaxResends = getEnvInt("SIGNUP_MAX_RESENDS", r.MaxResends)
	r.CodeLength = getEnvInt("SIGNUP_CODE_LENGTH", r.CodeLength)
	if getEnv("SIGNUP_CODE_ALPHABET", "numeric") == "alphanumeric" {
		r.CodeAlphabet = CodeAlphabetAlphanumeric
	}
	r.MaterializeTimeout = getEnvDuration("SIGNUP_MATERIALIZE_TIMEOUT", r.MaterializeTimeout)
	if roles := getEnv("SIGNUP_ALLOWED_ROLES", ""); roles != "" {
		r.AllowedRoles = splitList(roles)
	}

	cfg.Store.RedisPrefix = getEnv("SIGNUP_REDIS_PREFIX", cfg.Store.RedisPrefix)
	cfg.Store.AtomicMode = AtomicMode(getEnv("SIGNUP_ATOMIC_MODE", string(cfg.Store.AtomicMode)))

	cfg.Limiter.EnableIdentifierThrottle = getEnvBool("SIGNUP_THROTTLE_IDENTIFIER", cfg.Limiter.EnableIdentifierThrottle)
	cfg.Limiter.EnableIPThrottle = getEnvBool("SIGNUP_THROTTLE_IP", cfg.Limiter.EnableIPThrottle)
	cfg.Limiter.Window = getEnvDuration("SIGNUP_THROTTLE_WINDOW", cfg.Limiter.Window)
	cfg.Limiter.MaxStarts = getEnvInt("SIGNUP_THROTTLE_MAX_STARTS", cfg.Limiter.MaxStarts)
	cfg.Limiter.MaxVerifies = getEnvInt("SIGNUP_THROTTLE_MAX_VERIFIES", cfg.Limiter.MaxVerifies)
	cfg.Limiter.MaxResends = getEnvInt("SIGNUP_THROTTLE_MAX_RESENDS", cfg.Limiter.MaxResends)

	d := &cfg.Dispatch
	d.Workers = getEnvInt("SIGNUP_DISPATCH_WORKERS", d.Workers)
	d.QueueSize = getEnvInt("SIGNUP_DISPATCH_QUEUE", d.QueueSize)
	d.AttemptTimeout = getEnvDuration("SIGNUP_DISPATCH_ATTEMPT_TIMEOUT", d.AttemptTimeout)
	d.RatePerSecond = getEnvFloat("SIGNUP_DISPATCH_RATE", d.RatePerSecond)
	d.Burst = getEnvInt("SIGNUP_DISPATCH_BURST", d.Burst)
	d.Retry.MaxRetries = getEnvInt("SIGNUP_DISPATCH_MAX_RETRIES", d.Retry.MaxRetries)
	d.Retry.InitialBackoff = getEnvDuration("SIGNUP_DISPATCH_BACKOFF", d.Retry.InitialBackoff)
	d.Retry.MaxBackoff = getEnvDuration("SIGNUP_DISPATCH_MAX_BACKOFF", d.Retry.MaxBackoff)

	cfg.Notification.SMSEnabled = getEnvBool("SIGNUP_SMS_ENABLED", cfg.Notification.SMSEnabled)
	cfg.Notification.LinkBaseURL = getEnv("SIGNUP_LINK_BASE_URL", "")
	if secret := getEnv("SIGNUP_LINK_SECRET", ""); secret != "" {
		cfg.Notification.LinkSecret = []byte(secret)
	}

	cfg.Audit.Enabled = getEnvBool("SIGNUP_AUDIT", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = getEnvBool("SIGNUP_METRICS", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = getEnvBool("SIGNUP_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
