package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 8

var (
	ErrRegistrationNotFound         = errors.New("registration session not found")
	ErrRegistrationExists           = errors.New("registration session already exists")
	ErrRegistrationNotClaimed       = errors.New("registration session not claimed")
	ErrRegistrationContention       = errors.New("registration session update contention")
	ErrRegistrationRedisUnavailable = errors.New("registration redis unavailable")
)

// RegistrationState distinguishes a session waiting for its code from one
// whose code matched and whose account write is in flight.
type RegistrationState uint8

const (
	StateActive        RegistrationState = 1
	StateMaterializing RegistrationState = 2
)

// AtomicMode selects the primitive used for code verification.
type AtomicMode string

const (
	AtomicLua   AtomicMode = "lua"
	AtomicWatch AtomicMode = "watch"
)

type RegistrationRecord struct {
	State     RegistrationState
	Attempts  uint16
	Resends   uint16
	CreatedAt int64
	CodeHash  [32]byte

	Email      string
	Username   string
	Phone      string
	FullName   string
	Role       string
	Credential string
}

// UpdateOp is the write an UpdateFunc asks Update to perform.
type UpdateOp uint8

const (
	UpdateKeep UpdateOp = iota
	UpdateRewrite
	UpdateDelete
)

// Mutation describes the outcome of an UpdateFunc.
type Mutation struct {
	Op     UpdateOp
	Record *RegistrationRecord
	// TTL applied on rewrite. Zero keeps the remaining TTL.
	TTL time.Duration
	// Cooldown sets the resend cooldown marker when > 0.
	Cooldown time.Duration
}

// Snapshot is what an UpdateFunc sees. Record is nil when the session is
// absent or its stored bytes could not be decoded.
type Snapshot struct {
	Record         *RegistrationRecord
	RemainingTTL   time.Duration
	CooldownActive bool
}

type UpdateFunc func(Snapshot) (Mutation, error)

type RegistrationStore struct {
	redis          redis.UniversalClient
	prefix         string
	cooldownPrefix string
	mode           AtomicMode
}

func NewRegistrationStore(redisClient redis.UniversalClient, prefix string, mode AtomicMode) *RegistrationStore {
	if prefix == "" {
		prefix = "sgr"
	}
	if mode != AtomicWatch {
		mode = AtomicLua
	}
	return &RegistrationStore{
		redis:          redisClient,
		prefix:         prefix,
		cooldownPrefix: prefix + "c",
		mode:           mode,
	}
}

func (s *RegistrationStore) key(tenantID, sessionID string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + sessionID
}

func (s *RegistrationStore) cooldownKey(tenantID, sessionID string) string {
	return s.cooldownPrefix + ":" + normalizeTenantID(tenantID) + ":" + sessionID
}

// Create stores a new session. It never overwrites an existing key.
func (s *RegistrationStore) Create(
	ctx context.Context,
	tenantID, sessionID string,
	record *RegistrationRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeRegistrationRecord(record)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(tenantID, sessionID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	if !ok {
		return ErrRegistrationExists
	}
	return nil
}

// Get returns the stored session. Records that fail to decode are deleted
// and reported as not found.
func (s *RegistrationStore) Get(ctx context.Context, tenantID, sessionID string) (*RegistrationRecord, error) {
	key := s.key(tenantID, sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}

	record, decErr := decodeRegistrationRecord(data)
	if decErr != nil {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
		}
		return nil, ErrRegistrationNotFound
	}
	return record, nil
}

func (s *RegistrationStore) Delete(ctx context.Context, tenantID, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(tenantID, sessionID), s.cooldownKey(tenantID, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	return nil
}

func (s *RegistrationStore) Exists(ctx context.Context, tenantID, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tenantID, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	return n == 1, nil
}

// RemainingTTL reports the session's time to live, or ErrRegistrationNotFound.
func (s *RegistrationStore) RemainingTTL(ctx context.Context, tenantID, sessionID string) (time.Duration, error) {
	return s.pttl(ctx, s.key(tenantID, sessionID))
}

// CooldownRemaining reports how long a resend stays blocked. Zero means none.
func (s *RegistrationStore) CooldownRemaining(ctx context.Context, tenantID, sessionID string) (time.Duration, error) {
	ttl, err := s.pttl(ctx, s.cooldownKey(tenantID, sessionID))
	if errors.Is(err, ErrRegistrationNotFound) {
		return 0, nil
	}
	return ttl, err
}

func (s *RegistrationStore) pttl(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	// -2: missing key, -1: no expiry. Sessions always carry a TTL.
	if ttl < 0 {
		return 0, ErrRegistrationNotFound
	}
	return ttl, nil
}

// Update runs fn inside a WATCH/MULTI transaction over the session and its
// cooldown marker and applies the returned Mutation. Conflicting writers
// cause fn to run again against fresh state. Errors returned by fn abort the
// transaction and are passed through unchanged.
func (s *RegistrationStore) Update(ctx context.Context, tenantID, sessionID string, fn UpdateFunc) error {
	key := s.key(tenantID, sessionID)
	cdKey := s.cooldownKey(tenantID, sessionID)

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			snap, corrupt, err := s.snapshot(ctx, tx, key, cdKey)
			if err != nil {
				return err
			}

			m, err := fn(snap)
			if err != nil {
				return err
			}
			if corrupt && m.Op == UpdateKeep {
				m.Op = UpdateDelete
			}

			var encoded []byte
			ttl := m.TTL
			if m.Op == UpdateRewrite {
				if m.Record == nil {
					return errors.New("registration rewrite without record")
				}
				if ttl <= 0 {
					ttl = snap.RemainingTTL
				}
				if ttl <= 0 {
					m.Op = UpdateDelete
				} else if encoded, err = encodeRegistrationRecord(m.Record); err != nil {
					return err
				}
			}

			if m.Op == UpdateKeep && m.Cooldown <= 0 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				switch m.Op {
				case UpdateRewrite:
					pipe.Set(ctx, key, encoded, ttl)
				case UpdateDelete:
					pipe.Del(ctx, key, cdKey)
				}
				if m.Cooldown > 0 && m.Op != UpdateDelete {
					pipe.Set(ctx, cdKey, "1", m.Cooldown)
				}
				return nil
			})
			if err != nil && !errors.Is(err, redis.TxFailedErr) {
				return fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
			}
			return err
		}, key, cdKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrRegistrationContention
}

func (s *RegistrationStore) snapshot(ctx context.Context, tx *redis.Tx, key, cdKey string) (Snapshot, bool, error) {
	var snap Snapshot

	data, err := tx.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		data = nil
	case err != nil:
		return snap, false, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}

	cooldown, err := tx.Exists(ctx, cdKey).Result()
	if err != nil {
		return snap, false, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	snap.CooldownActive = cooldown == 1

	if data == nil {
		return snap, false, nil
	}

	record, decErr := decodeRegistrationRecord(data)
	if decErr != nil {
		return snap, true, nil
	}

	ttl, err := tx.PTTL(ctx, key).Result()
	if err != nil {
		return snap, false, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	if ttl <= 0 {
		return snap, false, nil
	}

	snap.Record = record
	snap.RemainingTTL = ttl
	return snap, false, nil
}

func normalizeTenantID(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
