package order

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var hundred = decimal.NewFromInt(100)

// Summary is the billing breakdown of a Request. Bills and mails print these
// values as-is so the two never disagree.
type Summary struct {
	UnitPrice       decimal.Decimal
	Quantity        int
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	DeliveryFee     decimal.Decimal
	Total           decimal.Decimal
	Currency        currency.Unit
}

// Summary computes subtotal = price × quantity, discount = subtotal × pct / 100
// and total = subtotal − discount + delivery, rounded to paise. Total never goes below zero.
func (r Request) Summary() Summary {
	subtotal := r.Item.UnitPrice.Mul(decimal.NewFromInt(int64(r.Item.Quantity))).Round(2)
	discount := subtotal.Mul(r.DiscountPercent).Div(hundred).Round(2)
	total := subtotal.Sub(discount).Add(r.DeliveryFee).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{
		UnitPrice:       r.Item.UnitPrice,
		Quantity:        r.Item.Quantity,
		Subtotal:        subtotal,
		DiscountPercent: r.DiscountPercent,
		DiscountAmount:  discount,
		DeliveryFee:     r.DeliveryFee,
		Total:           total,
		Currency:        r.Unit(),
	}
}

// Money formats an amount of this summary's currency.
func (s Summary) Money(d decimal.Decimal) string {
	return FormatMoney(s.Currency, d)
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders d with thousands separators and, when it has paise, two decimals.
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	out := sign + amountPrinter.Sprintf("%d", whole.IntPart())
	if frac := d.Sub(whole); !frac.IsZero() {
		out += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return out
}

// FormatMoney prefixes FormatAmount with the ISO code, e.g. "INR 40,500".
func FormatMoney(unit currency.Unit, d decimal.Decimal) string {
	return unit.String() + " " + FormatAmount(d)
}
