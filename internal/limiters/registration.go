package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited        = errors.New("registration rate limited")
	ErrRegistrationLimiterUnavailable = errors.New("registration limiter unavailable")
)

// RegistrationConfig bounds how often one address or one client IP may
// start, verify or resend within Window.
type RegistrationConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxStarts                int
	MaxVerifies              int
	MaxResends               int
}

type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckStart counts a registration start for email and ip.
func (l *RegistrationLimiter) CheckStart(ctx context.Context, tenantID, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && email != "" {
		if err := l.enforceFixedWindow(ctx, registrationKey("sgls", tenantID, strings.ToLower(email)), l.config.MaxStarts); err != nil {
			return err
		}
	}
	return l.checkIP(ctx, "sglsip", tenantID, ip, l.config.MaxStarts)
}

// CheckVerify counts a code submission. Per-session attempts are capped by
// the session itself, so only the client IP is throttled here.
func (l *RegistrationLimiter) CheckVerify(ctx context.Context, tenantID, ip string) error {
	if l == nil {
		return nil
	}
	return l.checkIP(ctx, "sglvip", tenantID, ip, l.config.MaxVerifies)
}

func (l *RegistrationLimiter) CheckResend(ctx context.Context, tenantID, ip string) error {
	if l == nil {
		return nil
	}
	return l.checkIP(ctx, "sglrip", tenantID, ip, l.config.MaxResends)
}

func (l *RegistrationLimiter) checkIP(ctx context.Context, prefix, tenantID, ip string, limit int) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, registrationKey(prefix, tenantID, ip), limit)
}

func (l *RegistrationLimiter) enforceFixedWindow(ctx context.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRegistrationLimiterUnavailable, err)
		}
	}

	if count > int64(limit) {
		return ErrRegistrationRateLimited
	}

	return nil
}

func registrationKey(prefix, tenantID, value string) string {
	return prefix + ":" + normalizeTenantID(tenantID) + ":" + value
}

func normalizeTenantID(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
