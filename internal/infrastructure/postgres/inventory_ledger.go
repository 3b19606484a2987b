package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
    id          TEXT        PRIMARY KEY,
    title       TEXT        NOT NULL DEFAULT '',
    quantity    INTEGER     NOT NULL CHECK (quantity >= 0),
    is_active   BOOLEAN     NOT NULL DEFAULT TRUE,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// InventoryLedger stores stock in Postgres. Decrements are a single guarded
// UPDATE, so the row lock taken by that statement serializes concurrent buyers.
type InventoryLedger struct {
	pool *pgxpool.Pool
}

func NewInventoryLedger(pool *pgxpool.Pool) *InventoryLedger {
	return &InventoryLedger{pool: pool}
}

// Migrate creates the inventory table when missing.
func (l *InventoryLedger) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

func (l *InventoryLedger) TryDecrement(ctx context.Context, itemID string, quantity int) (domain.Decrement, error) {
	if err := domain.ValidateDecrement(itemID, quantity); err != nil {
		return domain.Decrement{}, err
	}

	const decrement = `
		UPDATE inventory_items
		SET    quantity = quantity - $2, updated_at = now()
		WHERE  id = $1 AND is_active AND quantity >= $2
		RETURNING quantity`

	var remaining int
	err := l.pool.QueryRow(ctx, decrement, itemID, quantity).Scan(&remaining)
	if err == nil {
		return domain.Decrement{ItemID: itemID, Requested: quantity, Remaining: remaining}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Decrement{}, fmt.Errorf("q.TryDecrement: %w", err)
	}

	// Nothing was written; read the row only to explain why.
	item, err := l.Get(ctx, itemID)
	if err != nil {
		return domain.Decrement{}, err
	}
	if !item.Active {
		return domain.Decrement{}, domain.ErrUnavailable
	}
	return domain.Decrement{}, &domain.RejectedError{ItemID: itemID, Requested: quantity, Available: item.Quantity}
}

func (l *InventoryLedger) Get(ctx context.Context, itemID string) (domain.Item, error) {
	const q = `SELECT id, title, quantity, is_active, updated_at FROM inventory_items WHERE id = $1`

	var item domain.Item
	err := l.pool.QueryRow(ctx, q, itemID).Scan(&item.ID, &item.Title, &item.Quantity, &item.Active, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Item{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("q.GetItem: %w", err)
	}
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func (l *InventoryLedger) Put(ctx context.Context, item domain.Item) error {
	if item.ID == "" {
		return domain.ErrNotFound
	}
	if item.Quantity < 0 {
		return domain.ErrInvalidQuantity
	}

	const q = `
		INSERT INTO inventory_items (id, title, quantity, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, quantity = EXCLUDED.quantity,
		    is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`

	if _, err := l.pool.Exec(ctx, q, item.ID, item.Title, item.Quantity, item.Active, time.Now().UTC()); err != nil {
		return fmt.Errorf("q.PutItem: %w", err)
	}
	return nil
}
