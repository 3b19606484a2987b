package fulfillment

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/bill"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/shopspring/decimal"
)

// DefaultBrand is printed in subjects and signatures when none is configured.
const DefaultBrand = "Textile Storefront"

const billText = `Hi {{.Name}},

Thank you for your order at {{.Brand}}!

Order Details:
--------------
Order ID: {{.OrderID}}
Product: {{.Product}}
Length: {{.Length}} meters
Colors: {{.Colors}}
Price per Meter: {{.UnitPrice}}

Billing Summary:
---------------
Subtotal: {{.Subtotal}}
Discount: {{.DiscountPercent}}% ({{.Discount}})
Delivery Charge: {{.Delivery}}
Total Amount: {{.Total}}

Delivery Address:
----------------
{{.Name}}
{{.Address}}
{{.City}}
Phone: {{.Phone}}
GST Number: {{.GST}}

Payment Method: {{.Payment}}
Estimated Delivery: {{.DeliveryDate}}

Your bill is attached as {{.Filename}}. You can track your order using the Order ID.

Warm regards,
{{.Brand}} Team
`

const billHTML = `<div style="font-family:Arial,sans-serif;line-height:1.6;color:#1f2937">
  <h2 style="color:#2563eb">Thank you for your order, {{.Name}}</h2>
  <p>Order ID: <strong>{{.OrderID}}</strong></p>
  <table style="border-collapse:collapse">
    <tr><td>Product</td><td><strong>{{.Product}}</strong></td></tr>
    <tr><td>Length</td><td>{{.Length}} meters</td></tr>
    <tr><td>Colors</td><td>{{.Colors}}</td></tr>
    <tr><td>Price per meter</td><td>{{.UnitPrice}}</td></tr>
    <tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
    <tr><td>Discount ({{.DiscountPercent}}%)</td><td>- {{.Discount}}</td></tr>
    <tr><td>Delivery charge</td><td>{{.Delivery}}</td></tr>
    <tr><td><strong>Total</strong></td><td><strong>{{.Total}}</strong></td></tr>
  </table>
  <p>{{.Name}}<br/>{{.Address}}<br/>{{.City}}<br/>Phone: {{.Phone}}<br/>GST: {{.GST}}</p>
  <p>Payment method: {{.Payment}}<br/>Estimated delivery: <strong>{{.DeliveryDate}}</strong></p>
  <p>Your bill is attached.</p>
  <p style="margin-top:20px"><strong>Warm regards,</strong><br/>{{.Brand}} Team</p>
</div>
`

var (
	billTextTmpl = template.Must(template.New("bill.txt").Parse(billText))
	billHTMLTmpl = htmltemplate.Must(htmltemplate.New("bill.html").Parse(billHTML))
)

type billView struct {
	Brand           string
	Name            string
	OrderID         string
	Product         string
	Length          string
	Colors          string
	UnitPrice       string
	Subtotal        string
	DiscountPercent string
	Discount        string
	Delivery        string
	Total           string
	Address         string
	City            string
	Phone           string
	GST             string
	Payment         string
	DeliveryDate    string
	Filename        string
}

// BillComposer builds the bill mail. Amounts come from order.Summary so the
// mail and the attached document print the same figures.
type BillComposer struct {
	Brand string
}

func (c BillComposer) brand() string {
	if c.Brand == "" {
		return DefaultBrand
	}
	return c.Brand
}

func (c BillComposer) Compose(req order.Request, doc bill.Document) (notification.Message, error) {
	s := req.Summary()
	delivery := s.Money(s.DeliveryFee)
	if s.DeliveryFee.IsZero() {
		delivery = "FREE"
	}
	view := billView{
		Brand:           c.brand(),
		Name:            req.Buyer.Name,
		OrderID:         req.ID,
		Product:         req.Item.Title,
		Length:          order.FormatAmount(decimal.NewFromInt(int64(req.Item.Quantity))),
		Colors:          req.ColorList(),
		UnitPrice:       s.Money(s.UnitPrice),
		Subtotal:        s.Money(s.Subtotal),
		DiscountPercent: s.DiscountPercent.String(),
		Discount:        s.Money(s.DiscountAmount),
		Delivery:        delivery,
		Total:           s.Money(s.Total),
		Address:         req.Address.Line,
		City:            fmt.Sprintf("%s, %s - %s", req.Address.City, req.Address.State, req.Address.Pincode),
		Phone:           req.Buyer.Phone,
		GST:             req.Buyer.GSTNumber,
		Payment:         req.PaymentMethod.Label(),
		DeliveryDate:    req.DeliveryDate().Format("2 Jan 2006"),
		Filename:        doc.Filename,
	}

	var text, html bytes.Buffer
	if err := billTextTmpl.Execute(&text, view); err != nil {
		return notification.Message{}, fmt.Errorf("fulfillment: compose text: %w", err)
	}
	if err := billHTMLTmpl.Execute(&html, view); err != nil {
		return notification.Message{}, fmt.Errorf("fulfillment: compose html: %w", err)
	}

	return notification.Message{
		To:      req.Buyer.Email,
		Subject: fmt.Sprintf("Your Order Bill - %s | %s", req.ID, view.Brand),
		Text:    text.String(),
		HTML:    html.String(),
		Attachment: &notification.Attachment{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Data:        doc.Data,
		},
	}, nil
}
