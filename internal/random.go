package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math"
	"math/big"
	"strings"
)

type SessionID [16]byte

const (
	// AlphabetNumeric is the decimal code alphabet.
	AlphabetNumeric = "0123456789"
	// AlphabetAlphanumeric drops glyphs that are easy to misread (0/O, 1/I/L, U).
	AlphabetAlphanumeric = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

	MinCodeLength = 4
	MaxCodeLength = 12
)

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewCode draws length symbols uniformly from alphabet using crypto/rand.
func NewCode(length int, alphabet string) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", errors.New("invalid code length")
	}
	if len(alphabet) < 2 {
		return "", errors.New("invalid code alphabet")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeCode upper-cases and trims a submitted code so alphanumeric codes
// are case-insensitive. Decimal codes are unaffected.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashCode binds a code to its session so a stored hash cannot be replayed
// against another session.
func HashCode(sessionID, code string) [32]byte {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeCode(code)))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CodeSpace returns the number of distinct codes for the given shape.
func CodeSpace(length int, alphabet string) float64 {
	if length <= 0 || len(alphabet) == 0 {
		return 0
	}
	return math.Pow(float64(len(alphabet)), float64(length))
}
