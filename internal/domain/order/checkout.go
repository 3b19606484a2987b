package order

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// IDGenerator issues client-visible order identifiers.
type IDGenerator interface {
	NewID() string
}

// Pricing holds the storefront's commercial rules.
type Pricing struct {
	UnitPrice        decimal.Decimal
	DeliveryFee      decimal.Decimal
	FreeDeliveryFrom int
	MinimumQuantity  int
	PromoCodes       map[string]decimal.Decimal
	Currency         currency.Unit
}

func DefaultPricing() Pricing {
	return Pricing{
		UnitPrice:        decimal.NewFromInt(45),
		DeliveryFee:      decimal.NewFromInt(299),
		FreeDeliveryFrom: 5000,
		MinimumQuantity:  1000,
		PromoCodes: map[string]decimal.Decimal{
			"TEXTILE10":  decimal.NewFromInt(10),
			"FIRSTORDER": decimal.NewFromInt(10),
			"BULK20":     decimal.NewFromInt(20),
		},
		Currency: currency.INR,
	}
}

// DeliveryFeeFor waives delivery for large orders.
func (p Pricing) DeliveryFeeFor(quantity int) decimal.Decimal {
	if p.FreeDeliveryFrom > 0 && quantity >= p.FreeDeliveryFrom {
		return decimal.Zero
	}
	return p.DeliveryFee
}

// Discount looks up a promo code case-insensitively. An empty code is a zero discount.
func (p Pricing) Discount(code string) (decimal.Decimal, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return decimal.Zero, true
	}
	pct, ok := p.PromoCodes[code]
	return pct, ok
}

// CheckoutForm is raw buyer input.
type CheckoutForm struct {
	FullName  string
	Phone     string
	Email     string
	GSTNumber string

	Address string
	City    string
	State   string
	Pincode string

	ProductID    string
	ProductTitle string
	Colors       string
	Length       string
	PromoCode    string

	PaymentMethod string
	CardNumber    string
	CardExpiry    string
	CardCVV       string
	UPIID         string
}

type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists every problem found in a CheckoutForm.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := lo.Map(v, func(fe FieldError, _ int) string { return fe.Field + ": " + fe.Message })
	return "order: invalid checkout: " + strings.Join(parts, "; ")
}

// Checkout turns buyer input into a Request.
type Checkout struct {
	pricing Pricing
	ids     IDGenerator
	now     func() time.Time
}

func NewCheckout(pricing Pricing, ids IDGenerator, now func() time.Time) *Checkout {
	if now == nil {
		now = time.Now
	}
	return &Checkout{pricing: pricing, ids: ids, now: now}
}

// Build validates f and returns the Request to fulfill. On failure the error is ValidationErrors.
func (c *Checkout) Build(f CheckoutForm) (Request, error) {
	var errs ValidationErrors
	fail := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if strings.TrimSpace(f.FullName) == "" {
		fail("full_name", "please enter your full name")
	}
	if countDigits(f.Phone) < 10 {
		fail("phone", "please enter a valid 10-digit phone number")
	}
	if len(strings.TrimSpace(f.GSTNumber)) != 15 {
		fail("gst_number", "please enter a valid 15-character GST number")
	}
	if !strings.Contains(f.Email, "@") {
		fail("email", "please enter a valid email address for receipt")
	}
	if strings.TrimSpace(f.Address) == "" {
		fail("address", "please enter delivery address")
	}
	if strings.TrimSpace(f.City) == "" {
		fail("city", "please enter city")
	}
	if pin := strings.TrimSpace(f.Pincode); len(pin) != 6 || countDigits(pin) != 6 {
		fail("pincode", "please enter a valid 6-digit pincode")
	}
	if strings.TrimSpace(f.ProductTitle) == "" {
		fail("product", "product is required")
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(f.PaymentMethod)))
	switch method {
	case PaymentCard:
		if n := len(strings.ReplaceAll(f.CardNumber, " ", "")); n < 15 || n > 16 {
			fail("card_number", "enter valid card number (15-16 digits)")
		}
		if len(f.CardExpiry) < 5 {
			fail("card_expiry", "enter card expiry (MM/YY)")
		}
		if len(f.CardCVV) < 3 {
			fail("card_cvv", "enter valid CVV")
		}
	case PaymentUPI:
		if !strings.Contains(f.UPIID, "@") {
			fail("upi_id", "enter valid UPI ID (e.g., name@upi)")
		}
	case PaymentNetBanking:
	default:
		fail("payment_method", "choose card, upi or net banking")
	}

	colors := parseColors(f.Colors)
	if len(colors) == 0 {
		fail("colors", "please enter at least one color number from the catalog")
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(f.Length))
	if err != nil || quantity < c.pricing.MinimumQuantity || quantity <= 0 {
		fail("length", "length must be at least "+strconv.Itoa(c.pricing.MinimumQuantity)+" meters")
	}

	discount, ok := c.pricing.Discount(f.PromoCode)
	if !ok {
		fail("promo_code", "invalid promo code")
	}

	if len(errs) > 0 {
		return Request{}, errs
	}

	return Request{
		ID:        c.ids.NewID(),
		CreatedAt: c.now().UTC(),
		Buyer: Buyer{
			Name:      strings.TrimSpace(f.FullName),
			Phone:     strings.TrimSpace(f.Phone),
			Email:     strings.TrimSpace(f.Email),
			GSTNumber: strings.ToUpper(strings.TrimSpace(f.GSTNumber)),
		},
		Address: Address{
			Line:    strings.TrimSpace(f.Address),
			City:    strings.TrimSpace(f.City),
			State:   strings.TrimSpace(f.State),
			Pincode: strings.TrimSpace(f.Pincode),
		},
		Item: LineItem{
			ItemID:    strings.TrimSpace(f.ProductID),
			Title:     strings.TrimSpace(f.ProductTitle),
			Colors:    colors,
			Quantity:  quantity,
			UnitPrice: c.pricing.UnitPrice,
		},
		DiscountPercent: discount,
		DeliveryFee:     c.pricing.DeliveryFeeFor(quantity),
		Currency:        c.pricing.Currency,
		PaymentMethod:   method,
	}, nil
}

func parseColors(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	return lo.Uniq(lo.Compact(lo.Map(fields, func(f string, _ int) string { return strings.TrimSpace(f) })))
}

func countDigits(s string) int {
	return lo.CountBy([]rune(s), unicode.IsDigit)
}
