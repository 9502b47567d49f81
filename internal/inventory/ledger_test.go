package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-booking/internal/status"
)

func TestLedger_TryReserve_Success(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 10)
	ledger := NewLedger(store)
	ctx := context.Background()

	hold, err := ledger.TryReserve(ctx, "vip", 3)
	require.NoError(t, err)
	assert.Equal(t, "vip", hold.TicketTypeID)
	assert.Equal(t, 3, hold.Quantity)

	available, err := ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 7, available)
}

func TestLedger_TryReserve_Insufficient(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 2)
	ledger := NewLedger(store)
	ctx := context.Background()

	hold, err := ledger.TryReserve(ctx, "vip", 3)
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)
	assert.Nil(t, hold)

	// The failed attempt must not have touched the counter.
	available, err := ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 2, available)
}

func TestLedger_TryReserve_InvalidQuantity(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 10)
	ledger := NewLedger(store)

	_, err := ledger.TryReserve(context.Background(), "vip", 0)
	assert.Error(t, err)

	_, err = ledger.TryReserve(context.Background(), "vip", -2)
	assert.Error(t, err)
}

func TestLedger_Release_Idempotent(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 5)
	ledger := NewLedger(store)
	ctx := context.Background()

	hold, err := ledger.TryReserve(ctx, "vip", 2)
	require.NoError(t, err)

	require.NoError(t, ledger.Release(ctx, hold))
	require.NoError(t, ledger.Release(ctx, hold))
	require.NoError(t, ledger.Release(ctx, hold))

	available, err := ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 5, available)
	assert.True(t, hold.Released())
}

func TestLedger_Commit_BlocksRelease(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 5)
	ledger := NewLedger(store)
	ctx := context.Background()

	hold, err := ledger.TryReserve(ctx, "vip", 2)
	require.NoError(t, err)

	ledger.Commit(ctx, hold)
	assert.True(t, hold.Committed())

	// A late release on a committed hold must not refund the units.
	require.NoError(t, ledger.Release(ctx, hold))

	available, err := ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestLedger_Restore(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 10)
	ledger := NewLedger(store)
	ctx := context.Background()

	_, err := ledger.TryReserve(ctx, "vip", 4)
	require.NoError(t, err)

	require.NoError(t, ledger.Restore(ctx, "vip", 4))

	available, err := ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	// Restores clamp at total, a stray extra restore cannot mint tickets.
	require.NoError(t, ledger.Restore(ctx, "vip", 3))
	available, err = ledger.Available(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestLedger_AdjustCapacity(t *testing.T) {
	store := NewMemCounterStore()
	store.Seed("vip", 10)
	ledger := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, ledger.AdjustCapacity(ctx, "vip", 5))
	available, _ := ledger.Available(ctx, "vip")
	assert.Equal(t, 15, available)

	// 12 units held; only 3 remain available, shrinking by 5 must fail.
	_, err := ledger.TryReserve(ctx, "vip", 12)
	require.NoError(t, err)
	err = ledger.AdjustCapacity(ctx, "vip", -5)
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)

	require.NoError(t, ledger.AdjustCapacity(ctx, "vip", -3))
	available, _ = ledger.Available(ctx, "vip")
	assert.Equal(t, 0, available)
}

// Many buyers race for a small pool; the sold total must never exceed
// capacity and winners plus losers must account for every request.
func TestLedger_ConcurrentReserve_NoOversell(t *testing.T) {
	const capacity = 50
	const buyers = 500

	store := NewMemCounterStore()
	store.Seed("ga", capacity)
	ledger := NewLedger(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	var won, lost int64
	var mu sync.Mutex

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.TryReserve(ctx, "ga", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
			} else {
				lost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), won)
	assert.Equal(t, int64(buyers-capacity), lost)

	available, err := ledger.Available(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

// Concurrent reserve/release churn must leave the counter balanced.
func TestLedger_ConcurrentReserveRelease_Balanced(t *testing.T) {
	const capacity = 20
	const workers = 100

	store := NewMemCounterStore()
	store.Seed("ga", capacity)
	ledger := NewLedger(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hold, err := ledger.TryReserve(ctx, "ga", 2)
			if err != nil {
				return
			}
			_ = ledger.Release(ctx, hold)
		}()
	}
	wg.Wait()

	available, err := ledger.Available(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, capacity, available)
}
