package stores

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerifyStatus is the result of one code check against a session.
type VerifyStatus int

const (
	VerifyAbsent VerifyStatus = iota
	VerifyMismatch
	VerifyExhausted
	VerifyClaimed
)

type VerifyResult struct {
	Status   VerifyStatus
	Attempts int
	// Record is set on VerifyClaimed and carries the registration fields.
	Record *RegistrationRecord
}

// ResendStatus is the result of a code rotation.
type ResendStatus int

const (
	ResendAbsent ResendStatus = iota
	ResendCoolingDown
	ResendLimitReached
	ResendRotated
)

// verifyRegistrationLua performs GET→validate→DEL/SET on a registration record.
// KEYS[1] = record key
// ARGV[1] = provided code hash (32 bytes)
// ARGV[2] = max attempts
//
// Returns {status, attempts[, record]} with status one of
// "absent", "mismatch", "exhausted", "claimed".
var verifyRegistrationLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {'absent', 0}
end

-- header: version(1) state(1) attempts(2) resends(2) createdAt(8) codeHash(32)
if string.len(data) < 46 or string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return {'absent', 0}
end
local state = string.byte(data, 2)
if state ~= 1 then
  if state ~= 2 then
    redis.call('DEL', KEYS[1])
  end
  return {'absent', 0}
end

local maxAttempts = tonumber(ARGV[2])
local attempts = string.byte(data, 3) * 256 + string.byte(data, 4)
if attempts >= maxAttempts then
  redis.call('DEL', KEYS[1])
  return {'exhausted', attempts}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  return {'absent', 0}
end

if string.sub(data, 15, 46) ~= ARGV[1] then
  attempts = attempts + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {'exhausted', attempts}
  end
  local newData = string.sub(data, 1, 2) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 5)
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {'mismatch', attempts}
end

local claimed = string.sub(data, 1, 1) .. string.char(2) .. string.sub(data, 3)
redis.call('SET', KEYS[1], claimed, 'PX', ttlMs)
return {'claimed', attempts, claimed}
`)

// Verify checks a code hash against the session. A match moves the session
// to StateMaterializing so no concurrent caller can match it again. A
// mismatch increments attempts and keeps the remaining TTL. Reaching
// maxAttempts deletes the session.
func (s *RegistrationStore) Verify(
	ctx context.Context,
	tenantID, sessionID string,
	codeHash [32]byte,
	maxAttempts int,
) (VerifyResult, error) {
	if s.mode == AtomicWatch {
		return s.verifyWatch(ctx, tenantID, sessionID, codeHash, maxAttempts)
	}
	return s.verifyScript(ctx, tenantID, sessionID, codeHash, maxAttempts)
}

func (s *RegistrationStore) verifyScript(
	ctx context.Context,
	tenantID, sessionID string,
	codeHash [32]byte,
	maxAttempts int,
) (VerifyResult, error) {
	raw, err := verifyRegistrationLua.Run(ctx, s.redis,
		[]string{s.key(tenantID, sessionID)},
		string(codeHash[:]),
		maxAttempts,
	).Slice()
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	if len(raw) < 2 {
		return VerifyResult{}, fmt.Errorf("%w: unexpected lua result length", ErrRegistrationRedisUnavailable)
	}

	status, _ := raw[0].(string)
	attempts, _ := raw[1].(int64)
	result := VerifyResult{Attempts: int(attempts)}

	switch status {
	case "absent":
		result.Status = VerifyAbsent
	case "mismatch":
		result.Status = VerifyMismatch
	case "exhausted":
		result.Status = VerifyExhausted
	case "claimed":
		if len(raw) < 3 {
			return VerifyResult{}, fmt.Errorf("%w: missing claimed record", ErrRegistrationRedisUnavailable)
		}
		data, _ := raw[2].(string)
		record, decErr := decodeRegistrationRecord([]byte(data))
		if decErr != nil {
			return VerifyResult{}, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, decErr)
		}
		// Lua string equality is not constant-time; confirm in Go.
		if subtle.ConstantTimeCompare(record.CodeHash[:], codeHash[:]) != 1 {
			return VerifyResult{}, fmt.Errorf("%w: claimed record hash mismatch", ErrRegistrationRedisUnavailable)
		}
		result.Status = VerifyClaimed
		result.Record = record
	default:
		return VerifyResult{}, fmt.Errorf("%w: unexpected lua status %q", ErrRegistrationRedisUnavailable, status)
	}

	return result, nil
}

func (s *RegistrationStore) verifyWatch(
	ctx context.Context,
	tenantID, sessionID string,
	codeHash [32]byte,
	maxAttempts int,
) (VerifyResult, error) {
	var result VerifyResult

	err := s.Update(ctx, tenantID, sessionID, func(snap Snapshot) (Mutation, error) {
		result = VerifyResult{Status: VerifyAbsent}

		record := snap.Record
		if record == nil || record.State != StateActive {
			return Mutation{Op: UpdateKeep}, nil
		}

		if int(record.Attempts) >= maxAttempts {
			result.Status = VerifyExhausted
			result.Attempts = int(record.Attempts)
			return Mutation{Op: UpdateDelete}, nil
		}

		if subtle.ConstantTimeCompare(record.CodeHash[:], codeHash[:]) != 1 {
			record.Attempts++
			result.Attempts = int(record.Attempts)
			if int(record.Attempts) >= maxAttempts {
				result.Status = VerifyExhausted
				return Mutation{Op: UpdateDelete}, nil
			}
			result.Status = VerifyMismatch
			return Mutation{Op: UpdateRewrite, Record: record}, nil
		}

		record.State = StateMaterializing
		result.Status = VerifyClaimed
		result.Attempts = int(record.Attempts)
		result.Record = record
		return Mutation{Op: UpdateRewrite, Record: record}, nil
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return result, nil
}

// Rotate replaces the session's code, resets attempts, renews the full TTL
// and starts the resend cooldown. maxResends <= 0 means unlimited.
func (s *RegistrationStore) Rotate(
	ctx context.Context,
	tenantID, sessionID string,
	codeHash [32]byte,
	ttl, cooldown time.Duration,
	maxResends int,
) (ResendStatus, *RegistrationRecord, error) {
	var (
		status  ResendStatus
		rotated *RegistrationRecord
	)

	err := s.Update(ctx, tenantID, sessionID, func(snap Snapshot) (Mutation, error) {
		status, rotated = ResendAbsent, nil

		record := snap.Record
		if record == nil || record.State != StateActive {
			return Mutation{Op: UpdateKeep}, nil
		}
		if snap.CooldownActive {
			status = ResendCoolingDown
			return Mutation{Op: UpdateKeep}, nil
		}
		if maxResends > 0 && int(record.Resends) >= maxResends {
			status = ResendLimitReached
			return Mutation{Op: UpdateKeep}, nil
		}

		record.CodeHash = codeHash
		record.Attempts = 0
		record.Resends++

		status, rotated = ResendRotated, record
		return Mutation{
			Op:       UpdateRewrite,
			Record:   record,
			TTL:      ttl,
			Cooldown: cooldown,
		}, nil
	})
	if err != nil {
		return ResendAbsent, nil, err
	}
	return status, rotated, nil
}

// Release returns a claimed session to StateActive with its attempts and
// remaining TTL untouched. It reports false when there was nothing to release.
func (s *RegistrationStore) Release(ctx context.Context, tenantID, sessionID string) (bool, error) {
	var released bool

	err := s.Update(ctx, tenantID, sessionID, func(snap Snapshot) (Mutation, error) {
		released = false
		if snap.Record == nil || snap.Record.State != StateMaterializing {
			return Mutation{Op: UpdateKeep}, nil
		}
		snap.Record.State = StateActive
		released = true
		return Mutation{Op: UpdateRewrite, Record: snap.Record}, nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// Claimed returns the session only while it is in StateMaterializing.
func (s *RegistrationStore) Claimed(ctx context.Context, tenantID, sessionID string) (*RegistrationRecord, error) {
	record, err := s.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if record.State != StateMaterializing {
		return nil, ErrRegistrationNotClaimed
	}
	return record, nil
}
