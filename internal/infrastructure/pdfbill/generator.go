// Package pdfbill renders order bills as PDF documents.
package pdfbill

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/bill"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	pageMargin = 15.0
	lineHeight = 7.0
	labelWidth = 55.0
)

type rgb struct{ r, g, b int }

var (
	brandColor = rgb{37, 99, 235}
	mutedColor = rgb{100, 116, 139}
	inkColor   = rgb{15, 23, 42}
)

// Options customises the printed branding.
type Options struct {
	BrandName string
	Footer    string
}

func DefaultOptions() Options {
	return Options{
		BrandName: "Textile Storefront",
		Footer:    "This is a computer generated bill.",
	}
}

// Generator implements bill.Generator with fpdf core fonts. It never reads the
// clock; every date in the document comes from the request.
type Generator struct {
	opts Options
}

var _ bill.Generator = (*Generator)(nil)

func New(opts Options) *Generator {
	def := DefaultOptions()
	if opts.BrandName == "" {
		opts.BrandName = def.BrandName
	}
	if opts.Footer == "" {
		opts.Footer = def.Footer
	}
	return &Generator{opts: opts}
}

func (g *Generator) Generate(req order.Request) (bill.Document, error) {
	if field := req.MissingField(); field != "" {
		return bill.Document{}, &bill.RenderError{Field: field}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(req.CreatedAt)
	pdf.SetModificationDate(req.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Bill "+req.ID, true)
	pdf.SetCreator(g.opts.BrandName, true)

	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	s := req.Summary()

	pdf.AddPage()
	p.header(g.opts.BrandName)
	p.thanks(req.Buyer.Name)
	p.orderID(req.ID)
	p.details(req, s)
	p.summary(s)
	p.address(req)
	p.delivery(req)
	p.payment(req.PaymentMethod)
	p.footer(g.opts.Footer)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return bill.Document{}, &bill.RenderError{Err: err}
	}
	return bill.Document{
		Filename:    bill.Filename(req.ID),
		ContentType: bill.ContentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

// page holds the writer state for one document.
type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (p *page) color(c rgb) { p.pdf.SetTextColor(c.r, c.g, c.b) }

func (p *page) header(brand string) {
	w, _ := p.pdf.GetPageSize()
	p.pdf.SetFillColor(brandColor.r, brandColor.g, brandColor.b)
	p.pdf.Rect(0, 0, w, 32, "F")

	p.pdf.SetTextColor(255, 255, 255)
	p.pdf.SetFont("Helvetica", "B", 20)
	p.pdf.SetXY(pageMargin, 8)
	p.pdf.CellFormat(0, 9, p.tr(brand), "", 1, "C", false, 0, "")
	p.pdf.SetFont("Helvetica", "", 12)
	p.pdf.CellFormat(0, 7, "Your Order Bill", "", 1, "C", false, 0, "")
	p.pdf.SetY(40)
}

func (p *page) thanks(name string) {
	p.color(inkColor)
	p.pdf.SetFont("Helvetica", "", 11)
	p.pdf.MultiCell(0, lineHeight, p.tr(fmt.Sprintf("Dear %s, thank you for your order. Your bill is below.", name)), "", "L", false)
	p.pdf.Ln(2)
}

func (p *page) orderID(id string) {
	p.color(mutedColor)
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.CellFormat(0, lineHeight, "ORDER ID", "", 1, "L", false, 0, "")
	p.color(brandColor)
	p.pdf.SetFont("Helvetica", "B", 16)
	p.pdf.CellFormat(0, 9, p.tr(id), "", 1, "L", false, 0, "")
	p.pdf.Ln(3)
}

func (p *page) section(title string) {
	p.color(inkColor)
	p.pdf.SetFont("Helvetica", "B", 13)
	p.pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
	p.pdf.Ln(1)
}

func (p *page) row(label, value string) {
	p.color(mutedColor)
	p.pdf.SetFont("Helvetica", "", 11)
	p.pdf.CellFormat(labelWidth, lineHeight, label, "", 0, "L", false, 0, "")
	p.color(inkColor)
	p.pdf.SetFont("Helvetica", "B", 11)
	p.pdf.MultiCell(0, lineHeight, p.tr(value), "", "L", false)
}

func (p *page) details(req order.Request, s order.Summary) {
	p.section("Order Details")
	p.row("Product", req.Item.Title)
	p.row("Length", fmt.Sprintf("%s meters", order.FormatAmount(decimal.NewFromInt(int64(req.Item.Quantity)))))
	if colors := req.ColorList(); colors != "" {
		p.row("Colours", colors)
	}
	p.row("Price per meter", s.Money(s.UnitPrice))
	p.pdf.Ln(3)
}

func (p *page) summary(s order.Summary) {
	p.section("Billing Summary")
	p.row("Subtotal", s.Money(s.Subtotal))
	if s.DiscountPercent.IsPositive() {
		p.row(fmt.Sprintf("Discount (%s%%)", s.DiscountPercent.String()), "- "+s.Money(s.DiscountAmount))
	}
	delivery := s.Money(s.DeliveryFee)
	if s.DeliveryFee.IsZero() {
		delivery = "FREE"
	}
	p.row("Delivery charge", delivery)

	p.pdf.SetDrawColor(mutedColor.r, mutedColor.g, mutedColor.b)
	x, y := p.pdf.GetXY()
	w, _ := p.pdf.GetPageSize()
	p.pdf.Line(x, y+1, w-pageMargin, y+1)
	p.pdf.Ln(3)

	p.color(brandColor)
	p.pdf.SetFont("Helvetica", "B", 14)
	p.pdf.CellFormat(labelWidth, 9, "Total", "", 0, "L", false, 0, "")
	p.pdf.CellFormat(0, 9, s.Money(s.Total), "", 1, "L", false, 0, "")
	p.pdf.Ln(3)
}

func (p *page) address(req order.Request) {
	p.section("Delivery Address")
	p.row("Name", req.Buyer.Name)
	p.row("Address", req.Address.Line)
	p.row("City", joinNonEmpty(", ", req.Address.City, req.Address.State, req.Address.Pincode))
	if req.Buyer.Phone != "" {
		p.row("Phone", req.Buyer.Phone)
	}
	if req.Buyer.GSTNumber != "" {
		p.row("GST number", req.Buyer.GSTNumber)
	}
	p.pdf.Ln(3)
}

func (p *page) delivery(req order.Request) {
	p.row("Estimated delivery", req.DeliveryDate().Format("2 Jan 2006"))
}

func (p *page) payment(m order.PaymentMethod) {
	p.row("Payment method", m.Label())
	p.pdf.Ln(6)
}

func (p *page) footer(text string) {
	p.color(mutedColor)
	p.pdf.SetFont("Helvetica", "I", 9)
	p.pdf.MultiCell(0, 5, p.tr(text), "T", "C", false)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
