// Package invoice renders an order snapshot as a PDF: a header, the shipping
// block, one row per item and the totals, with a QR code carrying the order
// reference.
package invoice

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const qrSize = 256

type Renderer struct {
	storeName string
	currency  string
}

func NewRenderer(storeName, currency string) *Renderer {
	return &Renderer{
		storeName: storeName,
		currency:  currency,
	}
}

// Reference is the text encoded in the invoice QR code.
func (r *Renderer) Reference(order *domain.Order) string {
	return fmt.Sprintf("order:%s;total:%s %s", order.ID, order.Total.StringFixed(2), r.currency)
}

func (r *Renderer) Render(w io.Writer, order *domain.Order) error {
	qr, err := qrcode.Encode(r.Reference(order), qrcode.Medium, qrSize)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+order.ID, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, r.storeName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Invoice for order "+order.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+order.CreatedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+string(order.Status), "", 1, "L", false, 0, "")

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 165, 10, 35, 35, false, opts, 0, "")
	pdf.Ln(8)

	s := order.Shipping
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Ship to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		s.FirstName + " " + s.LastName,
		s.Company,
		s.Address,
		s.City + " " + s.Zipcode,
		s.Country,
		s.Mobile,
		s.Email,
	} {
		if line == "" || line == " " {
			continue
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		pdf.CellFormat(90, 6, item.ProductName, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, r.money(item.Price.StringFixed(2)), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, r.money(item.Total().StringFixed(2)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	r.totalRow(pdf, "Subtotal", order.Subtotal.StringFixed(2))
	if order.CouponCode != "" {
		discount := order.Subtotal.Sub(order.Total)
		r.totalRow(pdf, fmt.Sprintf("Coupon %s (%d%%)", order.CouponCode, order.DiscountPercent), "-"+discount.StringFixed(2))
	}
	pdf.SetFont("Helvetica", "B", 11)
	r.totalRow(pdf, "Total", order.Total.StringFixed(2))

	pdf.SetFont("Helvetica", "", 9)
	pdf.Ln(6)
	pdf.CellFormat(0, 5, "Paid with: "+order.PaymentMethod, "", 1, "L", false, 0, "")
	if s.OrderNote != "" {
		pdf.MultiCell(0, 5, "Note: "+s.OrderNote, "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *Renderer) totalRow(pdf *fpdf.Fpdf, label, amount string) {
	pdf.CellFormat(145, 6, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, r.money(amount), "", 1, "R", false, 0, "")
}

func (r *Renderer) money(amount string) string {
	return amount + " " + r.currency
}
