package order

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. Transitions are operator-driven and unordered: any
// status may be set from any other, membership is the only check.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	TotalAmount     float64   `json:"total_amount"`
	Status          string    `json:"status"`
	ShippingAddress string    `json:"shipping_address"`
	PaymentMethod   string    `json:"payment_method"`
	InvoicePDFURL   *string   `json:"invoice_pdf_url"`
	CreatedAt       time.Time `json:"created_at"`
	Items           []Item    `json:"items"`
}

// Item is a catalog snapshot frozen at purchase time.
type Item struct {
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
