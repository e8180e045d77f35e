package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/presentation-api/internal/tier"
)

// Account is the subscription record the manager authorizes against.
type Account struct {
	ID   string
	Tier tier.Tier
}

// SubscriptionStore is the source of truth for tiers and usage counts. The
// Postgres implementation lives in internal/store; an in-memory one below.
type SubscriptionStore interface {
	Account(ctx context.Context, accountID string) (Account, error)
	Usage(ctx context.Context, accountID, period string) (int, error)
	// CommitAuthorization durably records the token and increments the usage
	// counter. It reports false without incrementing when the token was
	// already committed, which is what makes Commit idempotent across
	// retries and restarts.
	CommitAuthorization(ctx context.Context, accountID, period, token string) (bool, error)
}

// Authorization is a single-use permit for one export. The token is the
// idempotency key for Commit.
type Authorization struct {
	Token     string
	AccountID string
	Period    string
	Limit     int
}

// ErrAccountNotFound marks an unknown account id, as opposed to a store
// failure. Stores wrap it so handlers can map it to a 404.
var ErrAccountNotFound = errors.New("account not found")

// ExceededError is returned when an account is out of exports for the period.
type ExceededError struct {
	Used  int
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: used %d of %d", e.Used, e.Limit)
}

// Manager authorizes and records exports against tier limits. TryConsume and
// Commit are split so a failed render or dispatch never consumes quota, and a
// retry after a crash between render and commit cannot double-charge.
type Manager struct {
	store SubscriptionStore
	now   func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	pending  map[string]int      // accountID -> open reservations this process
	reserved map[string]struct{} // outstanding authorization tokens
}

func NewManager(store SubscriptionStore) *Manager {
	return &Manager{
		store:    store,
		now:      time.Now,
		locks:    map[string]*sync.Mutex{},
		pending:  map[string]int{},
		reserved: map[string]struct{}{},
	}
}

// Period returns the current UTC billing period key, e.g. "2026-08".
func (m *Manager) Period() string { return m.now().UTC().Format("2006-01") }

// Account exposes the stored account record (the pipeline needs the tier for
// capability checks before consuming quota).
func (m *Manager) Account(ctx context.Context, accountID string) (Account, error) {
	return m.store.Account(ctx, accountID)
}

// TryConsume reserves one export slot for the account's current period.
// Reservations from this process count against the limit immediately, so two
// concurrent requests cannot both pass the check and exceed the cap.
func (m *Manager) TryConsume(ctx context.Context, accountID string) (*Authorization, error) {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := m.store.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	period := m.Period()
	limit := tier.MonthlyLimit(acct.Tier)

	auth := &Authorization{
		Token:     uuid.NewString(),
		AccountID: accountID,
		Period:    period,
		Limit:     limit,
	}
	if limit == tier.UnlimitedExports {
		return auth, nil
	}

	used, err := m.store.Usage(ctx, accountID, period)
	if err != nil {
		return nil, fmt.Errorf("load usage %s/%s: %w", accountID, period, err)
	}
	m.mu.Lock()
	open := m.pending[accountID]
	if used+open >= limit {
		m.mu.Unlock()
		return nil, &ExceededError{Used: used, Limit: limit}
	}
	m.pending[accountID]++
	m.reserved[auth.Token] = struct{}{}
	m.mu.Unlock()
	return auth, nil
}

// Commit records a successful export. Idempotent on the authorization token:
// a second Commit with the same token increments usage exactly zero times.
func (m *Manager) Commit(ctx context.Context, auth *Authorization) error {
	lock := m.accountLock(auth.AccountID)
	lock.Lock()
	defer lock.Unlock()

	committed, err := m.store.CommitAuthorization(ctx, auth.AccountID, auth.Period, auth.Token)
	if err != nil {
		return fmt.Errorf("commit authorization %s: %w", auth.Token, err)
	}
	if committed {
		m.closeReservation(auth)
	}
	return nil
}

// Release returns an uncommitted reservation after a failed render, failed
// dispatch or cancellation. Safe to call after Commit and more than once.
func (m *Manager) Release(auth *Authorization) {
	if auth == nil {
		return
	}
	m.closeReservation(auth)
}

// Usage reports the committed count and limit for display.
func (m *Manager) Usage(ctx context.Context, accountID string) (used, limit int, err error) {
	acct, err := m.store.Account(ctx, accountID)
	if err != nil {
		return 0, 0, err
	}
	used, err = m.store.Usage(ctx, accountID, m.Period())
	if err != nil {
		return 0, 0, err
	}
	return used, tier.MonthlyLimit(acct.Tier), nil
}

func (m *Manager) closeReservation(auth *Authorization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, open := m.reserved[auth.Token]; !open {
		return
	}
	delete(m.reserved, auth.Token)
	if m.pending[auth.AccountID] > 0 {
		m.pending[auth.AccountID]--
	}
	if m.pending[auth.AccountID] == 0 {
		delete(m.pending, auth.AccountID)
	}
}

func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	return l
}
