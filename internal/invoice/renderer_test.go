package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() Invoice {
	return Invoice{
		OrderID:         "3f1d2c88-9a1b-4a6e-8c7d-0f1e2d3c4b5a",
		OrderDate:       time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		CustomerName:    "Buyer One",
		CustomerEmail:   "buyer@example.com",
		CustomerPhone:   "+8801700000000",
		ShippingAddress: "12 Market Road, Dhaka",
		PaymentMethod:   "cash_on_delivery",
		TotalAmount:     25.00,
		Items: []Item{
			{Name: "Cotton Shirt", Quantity: 2, UnitPrice: 10.00},
			{Name: "Socks", Quantity: 1, UnitPrice: 5.00},
		},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	r := NewRenderer("Storefront")

	out, err := r.Render(context.Background(), sampleInvoice())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRender_Deterministic(t *testing.T) {
	r := NewRenderer("Storefront")

	first, err := r.Render(context.Background(), sampleInvoice())
	require.NoError(t, err)

	second, err := r.Render(context.Background(), sampleInvoice())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_NoItems(t *testing.T) {
	r := NewRenderer("Storefront")

	inv := sampleInvoice()
	inv.Items = nil

	_, err := r.Render(context.Background(), inv)
	assert.Error(t, err)
}

func TestRender_CancelledContext(t *testing.T) {
	r := NewRenderer("Storefront")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, sampleInvoice())
	assert.ErrorIs(t, err, context.Canceled)
}
