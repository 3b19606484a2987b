package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/sqlite"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *sqlite.Journal {
	t.Helper()
	j, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func fakeRecord() fulfillment.Record {
	return fulfillment.Record{
		OrderID:            "PTM" + gofakeit.DigitN(8),
		CustomerEmail:      gofakeit.Email(),
		Status:             fulfillment.StatusInsufficientInventory,
		Total:              decimal.RequireFromString("40500.50"),
		Currency:           "INR",
		NotificationResult: "sent",
		ItemID:             gofakeit.UUID(),
		Quantity:           400,
		Available:          100,
		InventoryReason:    "insufficient_stock",
		TraceID:            gofakeit.HexUint(128),
		RecordedAt:         time.Date(2025, 10, 12, 9, 30, 0, 123, time.UTC),
	}
}

func TestJournal_RecordAndGet(t *testing.T) {
	ctx := t.Context()
	j := openJournal(t)
	rec := fakeRecord()

	require.NoError(t, j.Record(ctx, rec))

	got, err := j.Get(ctx, rec.OrderID)
	require.NoError(t, err)

	diff := cmp.Diff(rec, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))
	assert.Empty(t, diff)
}

func TestJournal_Errors(t *testing.T) {
	ctx := t.Context()
	j := openJournal(t)
	rec := fakeRecord()

	require.NoError(t, j.Record(ctx, rec))
	require.ErrorIs(t, j.Record(ctx, rec), fulfillment.ErrRecordConflict)

	_, err := j.Get(ctx, "PTM00000000")
	require.ErrorIs(t, err, fulfillment.ErrRecordNotFound)
}
