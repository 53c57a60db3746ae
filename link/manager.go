package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	minSecretBytes = 32
	audience       = "registration-link"
)

var ErrInvalidToken = errors.New("invalid verification link token")

type Config struct {
	Secret []byte
	Issuer string
	// Leeway tolerates clock skew between issuer and verifier.
	Leeway time.Duration
}

// Claims is the payload of a verification link.
type Claims struct {
	SessionID string `json:"sid"`
	TenantID  string `json:"tid,omitempty"`
	Code      string `json:"otp"`
	jwt.RegisteredClaims
}

type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("link secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg, now: time.Now}, nil
}

// Issue signs a token for sessionID and code that expires after ttl. ttl
// should match the code's own validity.
func (m *Manager) Issue(tenantID, sessionID, code string, ttl time.Duration) (string, error) {
	if sessionID == "" || code == "" {
		return "", errors.New("session id and code are required")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL")
	}

	now := m.now()
	claims := Claims{
		SessionID: sessionID,
		TenantID:  tenantID,
		Code:      code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies signature, algorithm, audience, issuer and expiry. Every
// failure is reported as ErrInvalidToken wrapping the parser's reason.
func (m *Manager) Parse(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Code == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return claims, nil
}
