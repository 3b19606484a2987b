package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seededLedger(t *testing.T, items ...inventory.Item) *memory.InventoryLedger {
	t.Helper()
	l := memory.NewInventoryLedger()
	for _, it := range items {
		require.NoError(t, l.Put(t.Context(), it))
	}
	return l
}

func TestInventoryLedger_TryDecrement(t *testing.T) {
	tests := []struct {
		name          string
		item          inventory.Item
		itemID        string
		quantity      int
		wantRemaining int
		wantError     error
		wantAvailable int
	}{
		{
			name:          "within stock: ok",
			item:          inventory.Item{ID: "silk-01", Quantity: 500, Active: true},
			itemID:        "silk-01",
			quantity:      400,
			wantRemaining: 100,
		},
		{
			name:          "exact stock: ok",
			item:          inventory.Item{ID: "silk-01", Quantity: 500, Active: true},
			itemID:        "silk-01",
			quantity:      500,
			wantRemaining: 0,
		},
		{
			name:          "over stock: rejected",
			item:          inventory.Item{ID: "silk-01", Quantity: 500, Active: true},
			itemID:        "silk-01",
			quantity:      501,
			wantError:     inventory.ErrInsufficientStock,
			wantAvailable: 500,
		},
		{
			name:      "unknown item: not found",
			item:      inventory.Item{ID: "silk-01", Quantity: 500, Active: true},
			itemID:    "linen-09",
			quantity:  1,
			wantError: inventory.ErrNotFound,
		},
		{
			name:      "inactive item: unavailable",
			item:      inventory.Item{ID: "silk-01", Quantity: 500, Active: false},
			itemID:    "silk-01",
			quantity:  1,
			wantError: inventory.ErrUnavailable,
		},
		{
			name:      "zero quantity: invalid",
			item:      inventory.Item{ID: "silk-01", Quantity: 500, Active: true},
			itemID:    "silk-01",
			quantity:  0,
			wantError: inventory.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			l := seededLedger(t, tt.item)

			got, err := l.TryDecrement(ctx, tt.itemID, tt.quantity)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				if errors.Is(tt.wantError, inventory.ErrInsufficientStock) {
					available, ok := inventory.Available(err)
					require.True(t, ok)
					assert.Equal(t, tt.wantAvailable, available)
				}
				stored, getErr := l.Get(ctx, tt.item.ID)
				require.NoError(t, getErr)
				assert.Equal(t, tt.item.Quantity, stored.Quantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemaining, got.Remaining)
			assert.Equal(t, tt.quantity, got.Requested)
		})
	}
}

func TestInventoryLedger_RepeatedRejectionDoesNotMutate(t *testing.T) {
	ctx := t.Context()
	l := seededLedger(t, inventory.Item{ID: "silk-01", Quantity: 7, Active: true})

	for range 5 {
		_, err := l.TryDecrement(ctx, "silk-01", 8)
		require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	}

	item, err := l.Get(ctx, "silk-01")
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
}

func TestInventoryLedger_LastUnitsNotOversold(t *testing.T) {
	ctx := t.Context()
	l := seededLedger(t, inventory.Item{ID: "silk-01", Quantity: 500, Active: true})

	var (
		wg       sync.WaitGroup
		granted  atomic.Int64
		rejected atomic.Int64
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.TryDecrement(ctx, "silk-01", 400)
			if err != nil {
				available, ok := inventory.Available(err)
				assert.True(t, ok)
				assert.Contains(t, []int{100, 500}, available)
				rejected.Add(1)
				return
			}
			granted.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), granted.Load())
	assert.Equal(t, int64(1), rejected.Load())

	item, err := l.Get(ctx, "silk-01")
	require.NoError(t, err)
	assert.Equal(t, 100, item.Quantity)
}

func TestInventoryLedger_ConcurrentDecrementsConserveStock(t *testing.T) {
	const initial = 1000
	ctx := context.Background()
	l := seededLedger(t, inventory.Item{ID: "cotton-02", Quantity: initial, Active: true})

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
	)
	for i := range 200 {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if _, err := l.TryDecrement(ctx, "cotton-02", qty); err == nil {
				granted.Add(int64(qty))
			}
		}(i%13 + 1)
	}
	wg.Wait()

	item, err := l.Get(ctx, "cotton-02")
	require.NoError(t, err)
	assert.LessOrEqual(t, granted.Load(), int64(initial))
	assert.Equal(t, initial-int(granted.Load()), item.Quantity)
	assert.GreaterOrEqual(t, item.Quantity, 0)
}

func TestFulfillmentJournal(t *testing.T) {
	ctx := t.Context()
	j := memory.NewFulfillmentJournal()

	rec := fulfillment.Record{OrderID: "PTM00000001", Status: fulfillment.StatusCompleted}
	require.NoError(t, j.Record(ctx, rec))
	require.ErrorIs(t, j.Record(ctx, rec), fulfillment.ErrRecordConflict)

	got, err := j.Get(ctx, "PTM00000001")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = j.Get(ctx, "PTM99999999")
	require.ErrorIs(t, err, fulfillment.ErrRecordNotFound)
}
