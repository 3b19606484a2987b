package pdfbill_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/bill"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/pdfbill"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func scenarioRequest() order.Request {
	return order.Request{
		ID:        "PTM12345678",
		CreatedAt: time.Date(2025, time.October, 12, 9, 30, 0, 0, time.UTC),
		Buyer: order.Buyer{
			Name:      "Asha Raman",
			Phone:     "9876543210",
			Email:     "asha@example.com",
			GSTNumber: "29ABCDE1234F1Z5",
		},
		Address: order.Address{
			Line:    "14 Mill Road",
			City:    "Coimbatore",
			State:   "Tamil Nadu",
			Pincode: "641001",
		},
		Item: order.LineItem{
			ItemID:    "silk-01",
			Title:     "Raw Silk",
			Colors:    []string{"12", "14"},
			Quantity:  1000,
			UnitPrice: decimal.NewFromInt(45),
		},
		DiscountPercent: decimal.NewFromInt(10),
		DeliveryFee:     decimal.Zero,
		Currency:        currency.INR,
		PaymentMethod:   order.PaymentUPI,
	}
}

func TestGenerate_Document(t *testing.T) {
	doc, err := pdfbill.New(pdfbill.Options{}).Generate(scenarioRequest())
	require.NoError(t, err)

	assert.Equal(t, "Bill-PTM12345678.pdf", doc.Filename)
	assert.Equal(t, bill.ContentTypePDF, doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.Contains(t, string(doc.Data), "INR 40,500")
	assert.Contains(t, string(doc.Data), "INR 4,500")
	assert.Contains(t, string(doc.Data), "19 Oct 2025")
	assert.Contains(t, string(doc.Data), "PTM12345678")
}

func TestGenerate_Deterministic(t *testing.T) {
	g := pdfbill.New(pdfbill.Options{BrandName: "Loom & Co"})

	first, err := g.Generate(scenarioRequest())
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	second, err := g.Generate(scenarioRequest())
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Data, second.Data), "documents differ")
}

func TestGenerate_MissingField(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *order.Request)
		wantField string
	}{
		{name: "address", mutate: func(r *order.Request) { r.Address.Line = "" }, wantField: "address"},
		{name: "pincode", mutate: func(r *order.Request) { r.Address.Pincode = " " }, wantField: "pincode"},
		{name: "customer", mutate: func(r *order.Request) { r.Buyer.Name = "" }, wantField: "customer_name"},
		{name: "payment", mutate: func(r *order.Request) { r.PaymentMethod = "" }, wantField: "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioRequest()
			tt.mutate(&req)

			doc, err := pdfbill.New(pdfbill.Options{}).Generate(req)

			var rerr *bill.RenderError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.wantField, rerr.Field)
			assert.Empty(t, doc.Data)
		})
	}
}
