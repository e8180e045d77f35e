package quota

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process SubscriptionStore. Used in tests and when the
// service runs without a Postgres DSN.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	used      map[string]int // accountID|period
	committed map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  map[string]Account{},
		used:      map[string]int{},
		committed: map[string]struct{}{},
	}
}

func (s *MemoryStore) SetAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *MemoryStore) Account(_ context.Context, accountID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", accountID, ErrAccountNotFound)
	}
	return a, nil
}

func (s *MemoryStore) Usage(_ context.Context, accountID, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[accountID+"|"+period], nil
}

func (s *MemoryStore) CommitAuthorization(_ context.Context, accountID, period, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.committed[token]; dup {
		return false, nil
	}
	s.committed[token] = struct{}{}
	s.used[accountID+"|"+period]++
	return true, nil
}
