package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
)

// FulfillmentJournal is an in-process journal used when no database path is configured.
type FulfillmentJournal struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

func NewFulfillmentJournal() *FulfillmentJournal {
	return &FulfillmentJournal{
		records: make(map[string]domain.Record),
	}
}

func (j *FulfillmentJournal) Record(ctx context.Context, rec domain.Record) error {
	_ = ctx
	if rec.OrderID == "" {
		return fmt.Errorf("fulfillment journal: order id is required")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.records[rec.OrderID]; exists {
		return domain.ErrRecordConflict
	}
	j.records[rec.OrderID] = rec
	return nil
}

func (j *FulfillmentJournal) Get(ctx context.Context, orderID string) (domain.Record, error) {
	_ = ctx

	j.mu.RLock()
	defer j.mu.RUnlock()

	rec, ok := j.records[orderID]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return rec, nil
}
