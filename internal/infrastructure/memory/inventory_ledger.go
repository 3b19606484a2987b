package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
)

// InventoryLedger keeps stock in process. The map lock only guards membership;
// each item has its own mutex so decrements on different items never contend.
type InventoryLedger struct {
	mu    sync.RWMutex
	items map[string]*ledgerEntry
	now   func() time.Time
}

type ledgerEntry struct {
	mu   sync.Mutex
	item domain.Item
}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{
		items: make(map[string]*ledgerEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *InventoryLedger) entry(itemID string) (*ledgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.items[itemID]
	return e, ok
}

// TryDecrement checks and subtracts under the item's lock.
func (l *InventoryLedger) TryDecrement(ctx context.Context, itemID string, quantity int) (domain.Decrement, error) {
	if err := domain.ValidateDecrement(itemID, quantity); err != nil {
		return domain.Decrement{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Decrement{}, err
	}

	e, ok := l.entry(itemID)
	if !ok {
		return domain.Decrement{}, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.item.Active {
		return domain.Decrement{}, domain.ErrUnavailable
	}
	if e.item.Quantity < quantity {
		return domain.Decrement{}, &domain.RejectedError{ItemID: itemID, Requested: quantity, Available: e.item.Quantity}
	}
	e.item.Quantity -= quantity
	e.item.UpdatedAt = l.now()

	return domain.Decrement{ItemID: itemID, Requested: quantity, Remaining: e.item.Quantity}, nil
}

func (l *InventoryLedger) Get(ctx context.Context, itemID string) (domain.Item, error) {
	_ = ctx

	e, ok := l.entry(itemID)
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item, nil
}

// Put sets an item's stock outright, creating it when unknown.
func (l *InventoryLedger) Put(ctx context.Context, item domain.Item) error {
	_ = ctx
	if item.ID == "" {
		return domain.ErrNotFound
	}
	if item.Quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	item.UpdatedAt = l.now()

	l.mu.Lock()
	e, ok := l.items[item.ID]
	if !ok {
		l.items[item.ID] = &ledgerEntry{item: item}
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	e.mu.Lock()
	e.item = item
	e.mu.Unlock()
	return nil
}
