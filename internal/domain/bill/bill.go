package bill

import (
	"fmt"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
)

const ContentTypePDF = "application/pdf"

// Document is a rendered bill. It is produced once per order and never mutated.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Generator renders an order into a bill. Output depends only on the request.
type Generator interface {
	Generate(req order.Request) (Document, error)
}

// RenderError reports that a bill could not be produced. Field names the
// missing input when that is the cause.
type RenderError struct {
	Field string
	Err   error
}

func (e *RenderError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("bill: missing required field %q", e.Field)
	}
	return fmt.Sprintf("bill: render: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Filename is the attachment name for an order's bill.
func Filename(orderID string) string {
	return "Bill-" + orderID + ".pdf"
}
