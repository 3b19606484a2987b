// Package sqlite provides a SQLite-backed fulfillment journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	"github.com/shopspring/decimal"

	// pure-Go driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fulfillment_records (
    order_id             TEXT    PRIMARY KEY,
    customer_email       TEXT    NOT NULL DEFAULT '',
    status               TEXT    NOT NULL,
    total                TEXT    NOT NULL,
    currency             TEXT    NOT NULL,
    notification_result  TEXT    NOT NULL,
    item_id              TEXT    NOT NULL DEFAULT '',
    quantity             INTEGER NOT NULL DEFAULT 0,
    remaining            INTEGER NOT NULL DEFAULT 0,
    available            INTEGER NOT NULL DEFAULT 0,
    inventory_reason     TEXT    NOT NULL DEFAULT '',
    trace_id             TEXT    NOT NULL DEFAULT '',
    recorded_at          TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fulfillment_records_status ON fulfillment_records(status, recorded_at);
`

const timeLayout = "2006-01-02T15:04:05.999999999Z"

// Journal is the SQLite implementation of fulfillment.Journal.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the database at path in WAL mode and applies the schema.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Record(ctx context.Context, rec domain.Record) error {
	const q = `
		INSERT INTO fulfillment_records
			(order_id, customer_email, status, total, currency, notification_result,
			 item_id, quantity, remaining, available, inventory_reason, trace_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, q,
		rec.OrderID,
		rec.CustomerEmail,
		string(rec.Status),
		rec.Total.String(),
		rec.Currency,
		rec.NotificationResult,
		rec.ItemID,
		rec.Quantity,
		rec.Remaining,
		rec.Available,
		rec.InventoryReason,
		rec.TraceID,
		rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrRecordConflict
		}
		return fmt.Errorf("sqlite: record %q: %w", rec.OrderID, err)
	}
	return nil
}

func (j *Journal) Get(ctx context.Context, orderID string) (domain.Record, error) {
	const q = `
		SELECT order_id, customer_email, status, total, currency, notification_result,
		       item_id, quantity, remaining, available, inventory_reason, trace_id, recorded_at
		FROM   fulfillment_records
		WHERE  order_id = ?`

	var (
		rec        domain.Record
		status     string
		total      string
		recordedAt string
	)
	err := j.db.QueryRowContext(ctx, q, orderID).Scan(
		&rec.OrderID,
		&rec.CustomerEmail,
		&status,
		&total,
		&rec.Currency,
		&rec.NotificationResult,
		&rec.ItemID,
		&rec.Quantity,
		&rec.Remaining,
		&rec.Available,
		&rec.InventoryReason,
		&rec.TraceID,
		&recordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("sqlite: get %q: %w", orderID, err)
	}

	rec.Status = domain.Status(status)
	if rec.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Record{}, fmt.Errorf("sqlite: get %q: total: %w", orderID, err)
	}
	if rec.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
		return domain.Record{}, fmt.Errorf("sqlite: get %q: recorded_at: %w", orderID, err)
	}
	return rec, nil
}
