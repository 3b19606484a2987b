package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type inventoryLedgerSuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	ledger    *postgres.InventoryLedger
	container testcontainers.Container
}

func TestInventoryLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(inventoryLedgerSuite))
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("textile"),
		tcpostgres.WithUsername("textile"),
		tcpostgres.WithPassword("textile"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}
	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return ctr, "", err
	}
	return ctr, connStr, nil
}

func (suite *inventoryLedgerSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.Require().NoError(err)

	suite.pool, err = postgres.NewPool(ctx, connStr, observability.NopLogger())
	suite.Require().NoError(err)

	suite.ledger = postgres.NewInventoryLedger(suite.pool)
	suite.Require().NoError(suite.ledger.Migrate(ctx))
}

func (suite *inventoryLedgerSuite) TearDownSuite() {
	ctx := context.Background()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func fakeItem(quantity int, active bool) inventory.Item {
	return inventory.Item{
		ID:       gofakeit.UUID(),
		Title:    gofakeit.ProductName(),
		Quantity: quantity,
		Active:   active,
	}
}

func (suite *inventoryLedgerSuite) TestPutAndGet() {
	t := suite.T()
	ctx := t.Context()

	item := fakeItem(120, true)
	require.NoError(t, suite.ledger.Put(ctx, item))

	got, err := suite.ledger.Get(ctx, item.ID)
	require.NoError(t, err)

	diff := cmp.Diff(item, got, cmpopts.IgnoreFields(inventory.Item{}, "UpdatedAt"))
	assert.Empty(t, diff)
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = suite.ledger.Get(ctx, gofakeit.UUID())
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func (suite *inventoryLedgerSuite) TestTryDecrement() {
	tests := []struct {
		name          string
		item          inventory.Item
		quantity      int
		unknownItem   bool
		wantRemaining int
		wantError     error
		wantAvailable int
	}{
		{
			name:          "within stock: ok",
			item:          fakeItem(500, true),
			quantity:      400,
			wantRemaining: 100,
		},
		{
			name:          "over stock: rejected",
			item:          fakeItem(500, true),
			quantity:      501,
			wantError:     inventory.ErrInsufficientStock,
			wantAvailable: 500,
		},
		{
			name:      "inactive: unavailable",
			item:      fakeItem(500, false),
			quantity:  1,
			wantError: inventory.ErrUnavailable,
		},
		{
			name:        "unknown: not found",
			item:        fakeItem(500, true),
			quantity:    1,
			unknownItem: true,
			wantError:   inventory.ErrNotFound,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			require.NoError(t, suite.ledger.Put(ctx, tt.item))
			id := tt.item.ID
			if tt.unknownItem {
				id = gofakeit.UUID()
			}

			got, err := suite.ledger.TryDecrement(ctx, id, tt.quantity)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				if tt.wantAvailable > 0 {
					available, ok := inventory.Available(err)
					require.True(t, ok)
					assert.Equal(t, tt.wantAvailable, available)
				}
				stored, getErr := suite.ledger.Get(ctx, tt.item.ID)
				require.NoError(t, getErr)
				assert.Equal(t, tt.item.Quantity, stored.Quantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemaining, got.Remaining)
		})
	}
}

func (suite *inventoryLedgerSuite) TestConcurrentDecrements() {
	t := suite.T()
	ctx := t.Context()

	const initial = 500
	item := fakeItem(initial, true)
	require.NoError(t, suite.ledger.Put(ctx, item))

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		grants  atomic.Int64
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := suite.ledger.TryDecrement(ctx, item.ID, 400); err == nil {
				granted.Add(400)
				grants.Add(1)
			} else {
				assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	got, err := suite.ledger.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), grants.Load())
	assert.Equal(t, initial-int(granted.Load()), got.Quantity)
}
