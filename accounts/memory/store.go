// Package memory is an in-process account store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	goSignup "github.com/MrEthical07/goSignup"
)

// Account is a stored account.
type Account struct {
	ID     string
	Fields goSignup.AccountFields
}

// Store keeps accounts in a map. The zero value is not usable; call New.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]Account
	byEmail   map[string]string
	byUser    map[string]string
	bySession map[string]string
}

func New() *Store {
	return &Store{
		byID:      map[string]Account{},
		byEmail:   map[string]string{},
		byUser:    map[string]string{},
		bySession: map[string]string{},
	}
}

func key(tenantID, value string) string {
	return tenantID + "\x00" + value
}

// CreateAccount stores the account. A second call for the same
// registration session returns the account it already created.
func (s *Store) CreateAccount(ctx context.Context, f goSignup.AccountFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.SessionID != "" {
		if id, ok := s.bySession[key(f.TenantID, f.SessionID)]; ok {
			return id, nil
		}
	}
	if _, ok := s.byEmail[key(f.TenantID, f.Email)]; ok {
		return "", fmt.Errorf("%w: email", goSignup.ErrAccountConflict)
	}
	if _, ok := s.byUser[key(f.TenantID, f.Username)]; ok {
		return "", fmt.Errorf("%w: username", goSignup.ErrAccountConflict)
	}

	id := uuid.NewString()
	s.byID[id] = Account{ID: id, Fields: f}
	s.byEmail[key(f.TenantID, f.Email)] = id
	s.byUser[key(f.TenantID, f.Username)] = id
	if f.SessionID != "" {
		s.bySession[key(f.TenantID, f.SessionID)] = id
	}
	return id, nil
}

// FindAccount looks the account up by the session that created it.
func (s *Store) FindAccount(_ context.Context, f goSignup.AccountFields) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySession[key(f.TenantID, f.SessionID)]
	return id, ok, nil
}

// Get returns a copy of the account with the given ID.
func (s *Store) Get(id string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	return a, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
