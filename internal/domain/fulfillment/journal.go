package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrRecordNotFound = errors.New("fulfillment: record not found")
	ErrRecordConflict = errors.New("fulfillment: record already exists")
)

// Record is the journal row kept for reconciliation and order lookup.
type Record struct {
	OrderID            string
	CustomerEmail      string
	Status             Status
	Total              decimal.Decimal
	Currency           string
	NotificationResult string
	ItemID             string
	Quantity           int
	Remaining          int
	Available          int
	InventoryReason    string
	TraceID            string
	RecordedAt         time.Time
}

// NewRecord flattens a recorded event.
func NewRecord(e RecordedEvent) Record {
	res := e.Result
	return Record{
		OrderID:            res.OrderID,
		CustomerEmail:      e.CustomerEmail,
		Status:             res.Status,
		Total:              res.Summary.Total,
		Currency:           res.Summary.Currency.String(),
		NotificationResult: res.Notification.Label(),
		ItemID:             res.Inventory.ItemID,
		Quantity:           res.Inventory.Requested,
		Remaining:          res.Inventory.Remaining,
		Available:          res.Inventory.Available,
		InventoryReason:    res.Inventory.Reason,
		TraceID:            e.TraceID,
		RecordedAt:         e.OccurredAt,
	}
}

// SameRun reports whether o was written from the same recorded event as r,
// as opposed to a different order that happens to share its id.
func (r Record) SameRun(o Record) bool {
	return r.OrderID == o.OrderID &&
		r.CustomerEmail == o.CustomerEmail &&
		r.Status == o.Status &&
		r.RecordedAt.Equal(o.RecordedAt)
}

// Journal stores fulfillment records. It is written by the reconciliation worker only.
type Journal interface {
	Record(ctx context.Context, rec Record) error
	Get(ctx context.Context, orderID string) (Record, error)
}
