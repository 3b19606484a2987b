package redisstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/redisstore"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type inventoryLedgerSuite struct {
	suite.Suite

	container *tcredis.RedisContainer
	client    *redis.Client
	ledger    *redisstore.InventoryLedger
}

func TestInventoryLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(inventoryLedgerSuite))
}

func (suite *inventoryLedgerSuite) SetupSuite() {
	ctx := suite.T().Context()

	var err error
	suite.container, err = tcredis.Run(ctx, "redis:7-alpine")
	suite.Require().NoError(err)

	uri, err := suite.container.ConnectionString(ctx)
	suite.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	suite.Require().NoError(err)

	suite.client = redis.NewClient(opts)
	suite.ledger = redisstore.NewInventoryLedger(suite.client, gofakeit.LetterN(8))
}

func (suite *inventoryLedgerSuite) TearDownSuite() {
	ctx := context.Background()
	if suite.client != nil {
		suite.NoError(suite.client.Close())
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
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
			item:          inventory.Item{ID: gofakeit.UUID(), Title: "Silk", Quantity: 500, Active: true},
			quantity:      400,
			wantRemaining: 100,
		},
		{
			name:          "over stock: rejected",
			item:          inventory.Item{ID: gofakeit.UUID(), Title: "Silk", Quantity: 500, Active: true},
			quantity:      501,
			wantError:     inventory.ErrInsufficientStock,
			wantAvailable: 500,
		},
		{
			name:      "inactive: unavailable",
			item:      inventory.Item{ID: gofakeit.UUID(), Title: "Silk", Quantity: 500},
			quantity:  1,
			wantError: inventory.ErrUnavailable,
		},
		{
			name:        "unknown: not found",
			item:        inventory.Item{ID: gofakeit.UUID(), Title: "Silk", Quantity: 500, Active: true},
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

			stored, err := suite.ledger.Get(ctx, tt.item.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemaining, stored.Quantity)
			assert.Equal(t, tt.item.Title, stored.Title)
		})
	}
}

func (suite *inventoryLedgerSuite) TestConcurrentDecrements() {
	t := suite.T()
	ctx := t.Context()

	const initial = 1000
	item := inventory.Item{ID: gofakeit.UUID(), Quantity: initial, Active: true}
	require.NoError(t, suite.ledger.Put(ctx, item))

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
	)
	for i := range 50 {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if _, err := suite.ledger.TryDecrement(ctx, item.ID, qty); err == nil {
				granted.Add(int64(qty))
			}
		}(i%7*10 + 30)
	}
	wg.Wait()

	got, err := suite.ledger.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, granted.Load(), int64(initial))
	assert.Equal(t, initial-int(granted.Load()), got.Quantity)
}
