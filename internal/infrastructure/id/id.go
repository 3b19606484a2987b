// Package id issues client-visible order identifiers.
package id

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
)

const (
	orderPrefix = "PTM"
	orderSpace  = 100_000_000
)

// OrderIDs derives ids from the wall clock in milliseconds, keeping the last
// eight digits. Within one process ids strictly increase, so two requests in
// the same millisecond still get distinct ids.
type OrderIDs struct {
	now  func() time.Time
	last atomic.Int64
}

var _ order.IDGenerator = (*OrderIDs)(nil)

func NewOrderIDs(now func() time.Time) *OrderIDs {
	if now == nil {
		now = time.Now
	}
	return &OrderIDs{now: now}
}

func (g *OrderIDs) NewID() string {
	for {
		last := g.last.Load()
		next := g.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return fmt.Sprintf("%s%08d", orderPrefix, next%orderSpace)
		}
	}
}
