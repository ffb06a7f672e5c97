package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"storefront-api/internal/database"
)

var ErrNotFound = errors.New("order not found")

// Repository handles order persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithItems persists the order and its line items in one
// transaction. This is the only durable write on the request path;
// everything after it is background work.
func (r *Repository) CreateWithItems(ctx context.Context, o *Order) error {
	dbOrder := &database.Order{
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
	}

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(dbOrder).
			Returning("*").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		dbItems := make([]*database.OrderItem, 0, len(o.Items))
		for _, item := range o.Items {
			dbItems = append(dbItems, &database.OrderItem{
				OrderID:   dbOrder.ID,
				Name:      item.Name,
				Image:     item.Image,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		if _, err := tx.NewInsert().
			Model(&dbItems).
			Exec(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	o.ID = dbOrder.ID
	o.CreatedAt = dbOrder.CreatedAt
	return nil
}

// GetByID retrieves an order with its items
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	dbOrder := new(database.Order)
	err := r.db.NewSelect().
		Model(dbOrder).
		Relation("Items").
		Where("o.id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return mapDBOrderToModel(dbOrder), nil
}

// ListByUser returns a user's orders, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Order, error) {
	var dbOrders []*database.Order
	err := r.db.NewSelect().
		Model(&dbOrders).
		Relation("Items").
		Where("o.user_id = ?", userID).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*Order, 0, len(dbOrders))
	for _, dbo := range dbOrders {
		orders = append(orders, mapDBOrderToModel(dbo))
	}
	return orders, nil
}

// ListAll returns every order, newest first (operator view)
func (r *Repository) ListAll(ctx context.Context) ([]*Order, error) {
	var dbOrders []*database.Order
	err := r.db.NewSelect().
		Model(&dbOrders).
		Relation("Items").
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*Order, 0, len(dbOrders))
	for _, dbo := range dbOrders {
		orders = append(orders, mapDBOrderToModel(dbo))
	}
	return orders, nil
}

// SetInvoiceURL records the generated artifact URL. The IS NULL guard
// makes the null-to-URL transition one-way: a second write, or a late
// duplicate task, can never overwrite an existing URL.
func (r *Repository) SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error {
	_, err := r.db.NewUpdate().
		Model((*database.Order)(nil)).
		Set("invoice_pdf_url = ?", url).
		Where("id = ?", id).
		Where("invoice_pdf_url IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set invoice url: %w", err)
	}

	return nil
}

// UpdateStatus sets the order status (operator action)
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.NewUpdate().
		Model((*database.Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func mapDBOrderToModel(dbo *database.Order) *Order {
	items := make([]Item, 0, len(dbo.Items))
	for _, dbi := range dbo.Items {
		items = append(items, Item{
			Name:      dbi.Name,
			Image:     dbi.Image,
			Quantity:  dbi.Quantity,
			UnitPrice: dbi.UnitPrice,
		})
	}

	return &Order{
		ID:              dbo.ID,
		UserID:          dbo.UserID,
		TotalAmount:     dbo.TotalAmount,
		Status:          dbo.Status,
		ShippingAddress: dbo.ShippingAddress,
		PaymentMethod:   dbo.PaymentMethod,
		InvoicePDFURL:   dbo.InvoicePDFURL,
		CreatedAt:       dbo.CreatedAt,
		Items:           items,
	}
}
