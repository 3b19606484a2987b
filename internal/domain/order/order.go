package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DeliveryLeadDays is the fixed lead time between checkout and estimated delivery.
const DeliveryLeadDays = 7

type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "net"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentUPI, PaymentNetBanking:
		return true
	}
	return false
}

// Label is the form printed on bills and mails.
func (m PaymentMethod) Label() string { return strings.ToUpper(string(m)) }

type Buyer struct {
	Name      string
	Phone     string
	Email     string
	GSTNumber string
}

type Address struct {
	Line    string
	City    string
	State   string
	Pincode string
}

type LineItem struct {
	// ItemID references the inventory item. Empty when the order is not backed by tracked stock.
	ItemID    string
	Title     string
	Colors    []string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Request is a validated checkout, immutable once built.
type Request struct {
	ID              string
	CreatedAt       time.Time
	Buyer           Buyer
	Address         Address
	Item            LineItem
	DiscountPercent decimal.Decimal
	DeliveryFee     decimal.Decimal
	Currency        currency.Unit
	PaymentMethod   PaymentMethod
}

// HasInventoryReference reports whether fulfillment should touch stock.
func (r Request) HasInventoryReference() bool {
	return r.Item.ItemID != "" && r.Item.Quantity > 0
}

// DeliveryDate is the estimated delivery, derived from CreatedAt only.
func (r Request) DeliveryDate() time.Time {
	return r.CreatedAt.AddDate(0, 0, DeliveryLeadDays)
}

// MissingField returns the name of the first required field that is empty, or "".
func (r Request) MissingField() string {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return "order_id"
	case r.CreatedAt.IsZero():
		return "created_at"
	case strings.TrimSpace(r.Buyer.Name) == "":
		return "customer_name"
	case strings.TrimSpace(r.Item.Title) == "":
		return "product"
	case r.Item.Quantity <= 0:
		return "quantity"
	case strings.TrimSpace(r.Address.Line) == "":
		return "address"
	case strings.TrimSpace(r.Address.City) == "":
		return "city"
	case strings.TrimSpace(r.Address.Pincode) == "":
		return "pincode"
	case r.PaymentMethod == "":
		return "payment_method"
	}
	return ""
}

// Unit returns the request currency, INR when unset.
func (r Request) Unit() currency.Unit {
	if r.Currency == (currency.Unit{}) {
		return currency.INR
	}
	return r.Currency
}

// ColorList joins the selected colour numbers for display.
func (r Request) ColorList() string {
	return strings.Join(r.Item.Colors, ", ")
}
