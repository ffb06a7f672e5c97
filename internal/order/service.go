package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/email"
	"storefront-api/internal/invoice"
	"storefront-api/internal/logging"
	"storefront-api/internal/user"
)

var (
	ErrEmptyOrder     = errors.New("order must contain at least one item")
	ErrInvalidItem    = errors.New("order item is invalid")
	ErrMissingAddress = errors.New("shipping address is required")
)

// artifactTimeout bounds the render+upload of one invoice. The
// original request has long since returned; this is the only thing
// keeping an abandoned task from leaking forever.
const artifactTimeout = 30 * time.Second

// Store is the slice of order persistence the pipeline needs.
type Store interface {
	CreateWithItems(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
	SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// CustomerSource resolves the ordering identity snapshot embedded in
// the invoice.
type CustomerSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Renderer produces the invoice artifact bytes.
type Renderer interface {
	Render(ctx context.Context, inv invoice.Invoice) ([]byte, error)
}

// Uploader stores the artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Service runs the order fulfillment pipeline: a synchronous durable
// write, then two detached background tasks (invoice artifact,
// confirmation email) that never touch the original response.
type Service struct {
	store         Store
	customers     CustomerSource
	renderer      Renderer
	uploader      Uploader
	dispatcher    email.Dispatcher
	logger        *logging.Logger
	operatorEmail string
}

func NewService(
	store Store,
	customers CustomerSource,
	renderer Renderer,
	uploader Uploader,
	dispatcher email.Dispatcher,
	logger *logging.Logger,
	operatorEmail string,
) *Service {
	return &Service{
		store:         store,
		customers:     customers,
		renderer:      renderer,
		uploader:      uploader,
		dispatcher:    dispatcher,
		logger:        logger,
		operatorEmail: operatorEmail,
	}
}

// CreateOrderInput is the validated order request.
type CreateOrderInput struct {
	Items           []Item
	TotalAmount     float64
	ShippingAddress string
	PaymentMethod   string
}

// CreateOrder persists the order and returns as soon as the write
// commits. The invoice artifact and notifications are produced by
// detached tasks; a failed write is fatal, nothing after it is.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range input.Items {
		if item.Name == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, ErrInvalidItem
		}
	}
	if input.ShippingAddress == "" {
		return nil, ErrMissingAddress
	}

	customer, err := s.customers.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	o := &Order{
		UserID:          userID,
		TotalAmount:     input.TotalAmount,
		Status:          StatusPending,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		Items:           input.Items,
	}

	if err := s.store.CreateWithItems(ctx, o); err != nil {
		return nil, err
	}

	// Detached tasks: fresh contexts, the request context dies with
	// the response. Neither task gates the other.
	go s.generateArtifact(*o, *customer)
	go s.sendConfirmation(*o, *customer)

	return o, nil
}

// generateArtifact renders and uploads the invoice, then records the
// URL. Every failure is terminal for the task: log, no retry, order
// status untouched.
func (s *Service) generateArtifact(o Order, customer user.User) {
	ctx, cancel := context.WithTimeout(context.Background(), artifactTimeout)
	defer cancel()

	logger := s.logger.WithFields(map[string]any{"order_id": o.ID})

	pdfBytes, err := s.renderer.Render(ctx, buildInvoice(o, customer))
	if err != nil {
		logger.Error("invoice render failed", "error", err.Error())
		return
	}

	key := fmt.Sprintf("invoices/%s.pdf", o.ID)
	url, err := s.uploader.Upload(ctx, key, "application/pdf", pdfBytes)
	if err != nil {
		logger.Error("invoice upload failed", "error", err.Error())
		return
	}

	if err := s.store.SetInvoiceURL(ctx, o.ID, url); err != nil {
		logger.Error("failed to record invoice url", "error", err.Error())
		return
	}

	logger.Info("invoice artifact ready", "url", url)
}

// sendConfirmation emails the order confirmation to the customer and
// a copy to the operator. Failures are logged only.
func (s *Service) sendConfirmation(o Order, customer user.User) {
	ctx := context.Background()

	logger := s.logger.WithFields(map[string]any{"order_id": o.ID})

	items := make([]email.OrderConfirmationItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, email.OrderConfirmationItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			LineTotal: fmt.Sprintf("%.2f", item.UnitPrice*float64(item.Quantity)),
		})
	}

	body, err := email.RenderOrderConfirmation(email.OrderConfirmationData{
		OrderNumber:  o.ID.String(),
		CustomerName: customer.Name,
		OrderDate:    o.CreatedAt.Format("January 2, 2006"),
		Total:        fmt.Sprintf("%.2f", o.TotalAmount),
		Items:        items,
	})
	if err != nil {
		logger.Error("failed to render order confirmation", "error", err.Error())
		return
	}

	subject := fmt.Sprintf("Order Confirmation #%s", o.ID)

	if err := s.dispatcher.Send(ctx, customer.Email, subject, body, ""); err != nil {
		logger.Warn("failed to send order confirmation", "email", customer.Email, "error", err.Error())
	}

	if s.operatorEmail != "" {
		if err := s.dispatcher.Send(ctx, s.operatorEmail, subject, body, customer.Email); err != nil {
			logger.Warn("failed to send operator copy", "error", err.Error())
		}
	}
}

// GetOrder returns an order if the requester owns it or is an operator.
func (s *Service) GetOrder(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) (*Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID && !isAdmin {
		// Hide existence from non-owners
		return nil, ErrNotFound
	}
	return o, nil
}

// ListOrders returns the requester's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID) ([]*Order, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListAllOrders returns every order (operator view).
func (s *Service) ListAllOrders(ctx context.Context) ([]*Order, error) {
	return s.store.ListAll(ctx)
}

// UpdateStatus sets an order's status. Membership in the known set is
// the only validation; there is no transition graph.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidItem, status)
	}
	return s.store.UpdateStatus(ctx, id, status)
}

func buildInvoice(o Order, customer user.User) invoice.Invoice {
	items := make([]invoice.Item, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, invoice.Item{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return invoice.Invoice{
		OrderID:         o.ID.String(),
		OrderDate:       o.CreatedAt,
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		CustomerPhone:   customer.Phone,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		TotalAmount:     o.TotalAmount,
		Items:           items,
	}
}
