package inventory

import "context"

// Ledger owns available quantities. TryDecrement subtracts quantity only when
// at least that much is on hand, as one indivisible step per item.
//
// It returns ErrNotFound, ErrUnavailable, ErrInvalidQuantity or a *RejectedError
// (which matches ErrInsufficientStock). Any other error is a storage failure.
type Ledger interface {
	TryDecrement(ctx context.Context, itemID string, quantity int) (Decrement, error)
}

// Store is the administrative side of a ledger: reading stock for display and
// setting it outright on restock or (de)activation.
type Store interface {
	Get(ctx context.Context, itemID string) (Item, error)
	Put(ctx context.Context, item Item) error
}

// StockLedger is implemented by every backend.
type StockLedger interface {
	Ledger
	Store
}
