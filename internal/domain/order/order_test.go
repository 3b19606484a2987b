package order_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

type fixedIDs string

func (f fixedIDs) NewID() string { return string(f) }

var checkoutTime = time.Date(2025, time.October, 12, 9, 30, 0, 0, time.UTC)

func validForm() order.CheckoutForm {
	return order.CheckoutForm{
		FullName:      gofakeit.Name(),
		Phone:         "9876543210",
		Email:         gofakeit.Email(),
		GSTNumber:     "29ABCDE1234F1Z5",
		Address:       gofakeit.Street(),
		City:          "Coimbatore",
		State:         "Tamil Nadu",
		Pincode:       "641001",
		ProductID:     "silk-01",
		ProductTitle:  "Raw Silk",
		Colors:        "12, 14 12",
		Length:        "1000",
		PromoCode:     "textile10",
		PaymentMethod: "UPI",
		UPIID:         "buyer@upi",
	}
}

func TestSummary_BillingArithmetic(t *testing.T) {
	req := order.Request{
		Item: order.LineItem{
			Quantity:  1000,
			UnitPrice: decimal.NewFromInt(45),
		},
		DiscountPercent: decimal.NewFromInt(10),
		DeliveryFee:     decimal.Zero,
		Currency:        currency.INR,
	}

	s := req.Summary()

	assert.True(t, s.Subtotal.Equal(decimal.NewFromInt(45000)), s.Subtotal.String())
	assert.True(t, s.DiscountAmount.Equal(decimal.NewFromInt(4500)), s.DiscountAmount.String())
	assert.True(t, s.Total.Equal(decimal.NewFromInt(40500)), s.Total.String())
	assert.Equal(t, "INR 40,500", s.Money(s.Total))
}

func TestSummary_TotalNeverNegative(t *testing.T) {
	req := order.Request{
		Item:            order.LineItem{Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		DiscountPercent: decimal.NewFromInt(150),
	}
	assert.True(t, req.Summary().Total.IsZero())
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name string
		in   decimal.Decimal
		want string
	}{
		{name: "whole", in: decimal.NewFromInt(40500), want: "40,500"},
		{name: "small", in: decimal.NewFromInt(299), want: "299"},
		{name: "paise", in: decimal.RequireFromString("4500.5"), want: "4,500.50"},
		{name: "zero", in: decimal.Zero, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, order.FormatAmount(tt.in))
		})
	}
}

func TestRequest_DeliveryDateAndInventoryReference(t *testing.T) {
	req := order.Request{CreatedAt: checkoutTime, Item: order.LineItem{ItemID: "silk-01", Quantity: 10}}
	assert.Equal(t, checkoutTime.AddDate(0, 0, 7), req.DeliveryDate())
	assert.True(t, req.HasInventoryReference())

	req.Item.ItemID = ""
	assert.False(t, req.HasInventoryReference())
}

func TestCheckout_Build(t *testing.T) {
	checkout := order.NewCheckout(order.DefaultPricing(), fixedIDs("PTM12345678"), func() time.Time { return checkoutTime })

	req, err := checkout.Build(validForm())
	require.NoError(t, err)

	assert.Equal(t, "PTM12345678", req.ID)
	assert.Equal(t, checkoutTime, req.CreatedAt)
	assert.Equal(t, order.PaymentUPI, req.PaymentMethod)
	assert.Equal(t, []string{"12", "14"}, req.Item.Colors)
	assert.Equal(t, 1000, req.Item.Quantity)
	assert.True(t, req.DiscountPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, req.DeliveryFee.Equal(decimal.NewFromInt(299)))
	assert.Empty(t, req.MissingField())
}

func TestCheckout_FreeDelivery(t *testing.T) {
	checkout := order.NewCheckout(order.DefaultPricing(), fixedIDs("PTM1"), nil)
	form := validForm()
	form.Length = "5000"

	req, err := checkout.Build(form)
	require.NoError(t, err)
	assert.True(t, req.DeliveryFee.IsZero())
}

func TestCheckout_ValidationErrors(t *testing.T) {
	checkout := order.NewCheckout(order.DefaultPricing(), fixedIDs("PTM1"), nil)

	tests := []struct {
		name       string
		mutate     func(f *order.CheckoutForm)
		wantFields []string
	}{
		{
			name:       "short phone and bad pincode",
			mutate:     func(f *order.CheckoutForm) { f.Phone = "12345"; f.Pincode = "64100A" },
			wantFields: []string{"phone", "pincode"},
		},
		{
			name:       "below minimum length",
			mutate:     func(f *order.CheckoutForm) { f.Length = "999" },
			wantFields: []string{"length"},
		},
		{
			name:       "no colours and unknown promo",
			mutate:     func(f *order.CheckoutForm) { f.Colors = " , "; f.PromoCode = "FREE" },
			wantFields: []string{"colors", "promo_code"},
		},
		{
			name: "card details",
			mutate: func(f *order.CheckoutForm) {
				f.PaymentMethod = "card"
				f.CardNumber = "4111 1111"
				f.CardExpiry = "1/2"
				f.CardCVV = "1"
			},
			wantFields: []string{"card_number", "card_expiry", "card_cvv"},
		},
		{
			name:       "missing address and gst",
			mutate:     func(f *order.CheckoutForm) { f.Address = "  "; f.GSTNumber = "29ABC" },
			wantFields: []string{"address", "gst_number"},
		},
		{
			name:       "unknown payment method",
			mutate:     func(f *order.CheckoutForm) { f.PaymentMethod = "cash" },
			wantFields: []string{"payment_method"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)

			_, err := checkout.Build(form)
			require.Error(t, err)

			var verrs order.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			got := lo.Map(verrs, func(fe order.FieldError, _ int) string { return fe.Field })
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestRequest_MissingField(t *testing.T) {
	checkout := order.NewCheckout(order.DefaultPricing(), fixedIDs("PTM1"), func() time.Time { return checkoutTime })
	req, err := checkout.Build(validForm())
	require.NoError(t, err)

	req.Address.Line = ""
	assert.Equal(t, "address", req.MissingField())

	req.Buyer.Name = ""
	assert.Equal(t, "customer_name", req.MissingField())
}
