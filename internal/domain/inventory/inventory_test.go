package inventory_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectedError(t *testing.T) {
	err := fmt.Errorf("ledger: %w", &inventory.RejectedError{ItemID: "silk-01", Requested: 400, Available: 100})

	assert.True(t, errors.Is(err, inventory.ErrInsufficientStock))
	available, ok := inventory.Available(err)
	assert.True(t, ok)
	assert.Equal(t, 100, available)

	_, ok = inventory.Available(inventory.ErrNotFound)
	assert.False(t, ok)
}

func TestNewItem(t *testing.T) {
	item, err := inventory.NewItem("cotton-02", "Cotton", 500)
	require.NoError(t, err)
	assert.True(t, item.Active)
	assert.Equal(t, 500, item.Quantity)

	_, err = inventory.NewItem("cotton-02", "Cotton", -1)
	require.Error(t, err)
	_, err = inventory.NewItem("", "Cotton", 1)
	require.Error(t, err)
}

func TestValidateDecrement(t *testing.T) {
	assert.ErrorIs(t, inventory.ValidateDecrement("", 1), inventory.ErrNotFound)
	assert.ErrorIs(t, inventory.ValidateDecrement("a", 0), inventory.ErrInvalidQuantity)
	assert.NoError(t, inventory.ValidateDecrement("a", 1))
}
