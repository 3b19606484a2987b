package inventory

import "time"

const (
	FailureReasonNotFound          = "not_found"
	FailureReasonUnavailable       = "unavailable"
	FailureReasonInsufficientStock = "insufficient_stock"
	FailureReasonPersistenceError  = "persist_error"
	FailureReasonInvalidQuantity   = "invalid_quantity"
)

// StockDecrementedEvent is emitted when a decrement is granted.
type StockDecrementedEvent struct {
	OrderID    string
	ItemID     string
	Quantity   int
	Remaining  int
	OccurredAt time.Time
}

func (StockDecrementedEvent) EventName() string { return "inventory.decremented" }

func NewStockDecrementedEvent(orderID string, d Decrement) StockDecrementedEvent {
	return StockDecrementedEvent{
		OrderID:    orderID,
		ItemID:     d.ItemID,
		Quantity:   d.Requested,
		Remaining:  d.Remaining,
		OccurredAt: time.Now().UTC(),
	}
}

// StockRejectedEvent is emitted when a decrement could not be granted.
type StockRejectedEvent struct {
	OrderID    string
	ItemID     string
	Quantity   int
	Available  int
	Reason     string
	OccurredAt time.Time
}

func (StockRejectedEvent) EventName() string { return "inventory.decrement_rejected" }

func NewStockRejectedEvent(orderID, itemID string, quantity, available int, reason string) StockRejectedEvent {
	return StockRejectedEvent{
		OrderID:    orderID,
		ItemID:     itemID,
		Quantity:   quantity,
		Available:  available,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
