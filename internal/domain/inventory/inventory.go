package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: item not found")
	ErrUnavailable       = errors.New("inventory: item is not active")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Item is the stock held for one catalog material.
type Item struct {
	ID        string
	Title     string
	Quantity  int
	Active    bool
	UpdatedAt time.Time
}

func NewItem(id, title string, quantity int) (Item, error) {
	if id == "" {
		return Item{}, fmt.Errorf("inventory: item id is required")
	}
	if quantity < 0 {
		return Item{}, fmt.Errorf("inventory: quantity must not be negative: %d", quantity)
	}
	return Item{
		ID:        id,
		Title:     title,
		Quantity:  quantity,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Decrement is a granted conditional decrement.
type Decrement struct {
	ItemID    string
	Requested int
	Remaining int
}

// RejectedError reports a decrement larger than the stock on hand. Nothing was mutated.
type RejectedError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *RejectedError) Unwrap() error { return ErrInsufficientStock }

// Available extracts the stock reported by a rejection.
func Available(err error) (int, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Available, true
	}
	return 0, false
}

// ValidateDecrement holds the argument checks every ledger backend shares.
func ValidateDecrement(itemID string, quantity int) error {
	if itemID == "" {
		return ErrNotFound
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
