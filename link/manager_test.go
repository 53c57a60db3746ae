package link

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: testSecret, Issuer: "goSignup"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Issue("t1", "sid-1", "123456", 5*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID != "sid-1" || claims.TenantID != "t1" || claims.Code != "123456" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	token, err := m.Issue("", "sid-1", "123456", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Issue("", "sid-1", "123456", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, err := newTestManagerWithSecret(t, []byte("ffffffffffffffffffffffffffffffff")).Issue("", "sid-1", "000000", time.Minute)
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}
	forgedParts := strings.Split(forged, ".")

	// payload from the forger, signature from the original
	mixed := parts[0] + "." + forgedParts[1] + "." + parts[2]
	if _, err := m.Parse(mixed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := m.Parse(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token signed with another secret to fail, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t)

	claims := Claims{
		SessionID: "sid-1",
		Code:      "123456",
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    "goSignup",
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(none); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	other, err := NewManager(Config{Secret: testSecret, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := other.Issue("", "sid-1", "123456", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := newTestManager(t).Parse(token); err == nil {
		t.Fatal("expected foreign issuer to be rejected")
	}
}

func TestIssueRequiresSessionAndCode(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Issue("", "", "123456", time.Minute); err == nil {
		t.Fatal("expected empty session id to fail")
	}
	if _, err := m.Issue("", "sid", "", time.Minute); err == nil {
		t.Fatal("expected empty code to fail")
	}
}

func newTestManagerWithSecret(t *testing.T, secret []byte) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: secret, Issuer: "goSignup"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}
