package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/presentation-api/internal/tier"
)

func fixedManager(store SubscriptionStore) *Manager {
	m := NewManager(store)
	m.now = func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestPeriodIsUTCMonth(t *testing.T) {
	m := fixedManager(NewMemoryStore())
	assert.Equal(t, "2026-08", m.Period())
}

func TestConsumeCommitIncrementsOnce(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Pro})
	m := fixedManager(store)
	ctx := context.Background()

	auth, err := m.TryConsume(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, auth))

	used, limit, err := m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
	assert.Equal(t, 50, limit)

	// A retried commit with the same token must not double-charge.
	require.NoError(t, m.Commit(ctx, auth))
	used, _, err = m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestBasicTierSecondConsumeExceeds(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Basic})
	m := fixedManager(store)
	ctx := context.Background()

	auth, err := m.TryConsume(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, auth))

	_, err = m.TryConsume(ctx, "a1")
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 1, exceeded.Used)
	assert.Equal(t, 1, exceeded.Limit)
}

func TestReleaseReturnsReservation(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Basic})
	m := fixedManager(store)
	ctx := context.Background()

	auth, err := m.TryConsume(ctx, "a1")
	require.NoError(t, err)

	// The open reservation holds the only basic slot.
	_, err = m.TryConsume(ctx, "a1")
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)

	m.Release(auth)
	auth2, err := m.TryConsume(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, auth2))

	used, _, err := m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestReleaseAfterCommitIsNoop(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Pro})
	m := fixedManager(store)
	ctx := context.Background()

	auth, err := m.TryConsume(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, auth))
	m.Release(auth)
	m.Release(auth)

	used, _, err := m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestPremiumNeverExceeds(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Premium})
	m := fixedManager(store)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		auth, err := m.TryConsume(ctx, "a1")
		require.NoError(t, err)
		require.NoError(t, m.Commit(ctx, auth))
	}
	used, limit, err := m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 200, used)
	assert.Equal(t, tier.UnlimitedExports, limit)
}

// With 5 slots remaining and 10 concurrent consumers, exactly 5 win.
func TestConcurrentConsumeNeverOversells(t *testing.T) {
	store := NewMemoryStore()
	store.SetAccount(Account{ID: "a1", Tier: tier.Pro})
	store.used["a1|2026-08"] = 45
	m := fixedManager(store)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth, err := m.TryConsume(ctx, "a1")
			if err != nil {
				results <- err
				return
			}
			results <- m.Commit(ctx, auth)
		}()
	}
	wg.Wait()
	close(results)

	committed, rejected := 0, 0
	for err := range results {
		if err == nil {
			committed++
			continue
		}
		var exceeded *ExceededError
		require.True(t, errors.As(err, &exceeded), "unexpected error: %v", err)
		rejected++
	}
	assert.Equal(t, 5, committed)
	assert.Equal(t, 5, rejected)

	used, _, err := m.Usage(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 50, used)
}

func TestUsageUnknownAccount(t *testing.T) {
	m := fixedManager(NewMemoryStore())
	_, _, err := m.Usage(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
