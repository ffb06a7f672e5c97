package invoice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Invoice is the snapshot an invoice document is rendered from.
// Everything here is denormalized at order time, so re-rendering the
// same invoice always yields the same document.
type Invoice struct {
	OrderID         string
	OrderDate       time.Time
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	PaymentMethod   string
	TotalAmount     float64
	Items           []Item
}

type Item struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

// Renderer produces invoice PDF documents.
type Renderer struct {
	storeName string
}

func NewRenderer(storeName string) *Renderer {
	return &Renderer{storeName: storeName}
}

// Render builds the invoice PDF. The creation date is taken from the
// order so the output is stable across runs. Rendering respects the
// deadline of the surrounding task.
func (r *Renderer) Render(ctx context.Context, inv Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(inv.Items) == 0 {
		return nil, fmt.Errorf("invoice %s has no items", inv.OrderID)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(inv.OrderDate)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(120, 10, r.storeName)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(70, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.Ln(4)

	// Order metadata
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(95, 6, fmt.Sprintf("Order: #%s", inv.OrderID))
	pdf.CellFormat(95, 6, fmt.Sprintf("Date: %s", inv.OrderDate.Format("2006-01-02")), "", 1, "R", false, 0, "")
	pdf.Cell(95, 6, fmt.Sprintf("Payment: %s", inv.PaymentMethod))
	pdf.Ln(10)

	// Customer block
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Billed To")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, inv.CustomerName)
	pdf.Ln(5)
	pdf.Cell(0, 5, inv.CustomerEmail)
	pdf.Ln(5)
	if inv.CustomerPhone != "" {
		pdf.Cell(0, 5, inv.CustomerPhone)
		pdf.Ln(5)
	}
	pdf.MultiCell(0, 5, inv.ShippingAddress, "", "L", false)
	pdf.Ln(6)

	// Item table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(100, 7, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		lineTotal := item.UnitPrice * float64(item.Quantity)
		pdf.CellFormat(100, 7, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", lineTotal), "1", 1, "R", false, 0, "")
	}

	// Total row
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(155, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", inv.TotalAmount), "1", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 5, "Thank you for your order.")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}

	return buf.Bytes(), nil
}
