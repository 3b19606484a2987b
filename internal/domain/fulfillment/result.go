package fulfillment

import (
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
)

type Status string

const (
	StatusCompleted                     Status = "completed"
	StatusCompletedNotificationDegraded Status = "completed_notification_degraded"
	StatusInsufficientInventory         Status = "insufficient_inventory"
	StatusDocumentGenerationFailed      Status = "document_generation_failed"
)

// NotificationOutcome records what happened to the bill mail.
type NotificationOutcome struct {
	Attempted bool
	Delivered bool
	Skipped   bool
	Error     string
}

// Label is sent, skipped, error or not_attempted.
func (n NotificationOutcome) Label() string {
	switch {
	case n.Delivered:
		return "sent"
	case n.Skipped:
		return "skipped"
	case n.Attempted:
		return "error"
	default:
		return "not_attempted"
	}
}

// InventoryOutcome records the stock decrement, if one was attempted.
type InventoryOutcome struct {
	Attempted bool
	Granted   bool
	ItemID    string
	Requested int
	Remaining int
	Available int
	Reason    string
}

// Result is the outcome of one fulfillment run.
type Result struct {
	OrderID      string
	Status       Status
	Summary      order.Summary
	Notification NotificationOutcome
	Inventory    InventoryOutcome
	// MissingField is set when the bill could not be rendered for lack of input.
	MissingField string
	Error        string
	FinishedAt   time.Time
}

// Compose derives the status from the stage outcomes. A rejected decrement
// wins over a degraded notification because stock needs reconciliation.
func Compose(n NotificationOutcome, inv InventoryOutcome) Status {
	if inv.Attempted && !inv.Granted {
		return StatusInsufficientInventory
	}
	if !n.Delivered {
		return StatusCompletedNotificationDegraded
	}
	return StatusCompleted
}

// SaleValid reports whether the buyer's order stands.
func (r Result) SaleValid() bool {
	return r.Status == StatusCompleted || r.Status == StatusCompletedNotificationDegraded
}
