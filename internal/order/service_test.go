package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/invoice"
	"storefront-api/internal/logging"
	"storefront-api/internal/user"
)

type fakeStore struct {
	mu          sync.Mutex
	createErr   error
	orders      map[uuid.UUID]*Order
	invoiceURLs map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:      make(map[uuid.UUID]*Order),
		invoiceURLs: make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) CreateWithItems(_ context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	if url, ok := f.invoiceURLs[id]; ok {
		cp.InvoicePDFURL = &url
	}
	return &cp, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Order
	for _, o := range f.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) SetInvoiceURL(_ context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invoiceURLs[id]; ok {
		// One-way transition, late writers lose
		return nil
	}
	f.invoiceURLs[id] = url
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeStore) invoiceURL(id uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.invoiceURLs[id]
	return url, ok
}

type fakeCustomers struct {
	u *user.User
}

func (f *fakeCustomers) GetByID(_ context.Context, _ uuid.UUID) (*user.User, error) {
	if f.u == nil {
		return nil, user.ErrNotFound
	}
	return f.u, nil
}

type fakeRenderer struct {
	mu          sync.Mutex
	err         error
	hadDeadline bool
}

func (f *fakeRenderer) Render(ctx context.Context, _ invoice.Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	_, f.hadDeadline = ctx.Deadline()
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-fake"), nil
}

type fakeUploader struct {
	mu   sync.Mutex
	err  error
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	err   error
	sends []string
}

func (f *fakeDispatcher) Send(_ context.Context, to, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, to)
	return nil
}

func (f *fakeDispatcher) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

func testCustomer() *user.User {
	return &user.User{
		ID:    uuid.New(),
		Name:  "Buyer One",
		Email: "buyer@example.com",
		Phone: "+1555000111",
	}
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		Items: []Item{
			{Name: "Mug", Quantity: 2, UnitPrice: 12.50},
			{Name: "Poster", Quantity: 1, UnitPrice: 8.00},
		},
		TotalAmount:     33.00,
		ShippingAddress: "1 Main St, Springfield",
		PaymentMethod:   "card",
	}
}

func newTestService(store *fakeStore, customers *fakeCustomers, renderer *fakeRenderer, uploader *fakeUploader, dispatcher *fakeDispatcher) *Service {
	return NewService(store, customers, renderer, uploader, dispatcher, logging.NewLogger(true), "orders@example.com")
}

func TestCreateOrder_ReturnsBeforeArtifact(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, o.ID)

	// The response carries no invoice URL; the artifact arrives later.
	assert.Nil(t, o.InvoicePDFURL)

	require.Eventually(t, func() bool {
		_, ok := store.invoiceURL(o.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	url, _ := store.invoiceURL(o.ID)
	assert.Equal(t, "https://cdn.example.com/invoices/"+o.ID.String()+".pdf", url)
}

func TestCreateOrder_SendsConfirmationAndOperatorCopy(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, dispatcher)

	_, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dispatcher.recipients()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	recipients := dispatcher.recipients()
	assert.Equal(t, []string{"buyer@example.com", "orders@example.com"}, recipients)
}

func TestCreateOrder_RenderRunsUnderArtifactDeadline(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	renderer := &fakeRenderer{}
	svc := newTestService(store, &fakeCustomers{u: customer}, renderer, &fakeUploader{}, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := store.invoiceURL(o.ID)
		return ok
	}, time.Second, 10*time.Millisecond)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.True(t, renderer.hadDeadline)
}

func TestCreateOrder_RendererFailureDoesNotFailOrder(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	uploader := &fakeUploader{}
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{err: errors.New("render boom")}, uploader, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	// The order survives; no artifact ever appears.
	time.Sleep(100 * time.Millisecond)
	_, ok := store.invoiceURL(o.ID)
	assert.False(t, ok)

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCreateOrder_UploadFailureDoesNotFailOrder(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{err: errors.New("s3 down")}, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, ok := store.invoiceURL(o.ID)
	assert.False(t, ok)
}

func TestCreateOrder_DispatcherFailureDoesNotBlockArtifact(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, &fakeDispatcher{err: errors.New("smtp down")})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := store.invoiceURL(o.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateOrder_PersistFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	customer := testCustomer()
	dispatcher := &fakeDispatcher{}
	uploader := &fakeUploader{}
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, uploader, dispatcher)

	_, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.Error(t, err)

	// No background work starts when the write fails.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, dispatcher.recipients())
}

func TestCreateOrder_Validation(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, &fakeDispatcher{})

	tests := []struct {
		name    string
		mutate  func(in *CreateOrderInput)
		wantErr error
	}{
		{
			name:    "no items",
			mutate:  func(in *CreateOrderInput) { in.Items = nil },
			wantErr: ErrEmptyOrder,
		},
		{
			name:    "zero quantity",
			mutate:  func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
			wantErr: ErrInvalidItem,
		},
		{
			name:    "negative price",
			mutate:  func(in *CreateOrderInput) { in.Items[0].UnitPrice = -1 },
			wantErr: ErrInvalidItem,
		},
		{
			name:    "unnamed item",
			mutate:  func(in *CreateOrderInput) { in.Items[0].Name = "" },
			wantErr: ErrInvalidItem,
		},
		{
			name:    "missing address",
			mutate:  func(in *CreateOrderInput) { in.ShippingAddress = "" },
			wantErr: ErrMissingAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.CreateOrder(context.Background(), customer.ID, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetOrder_Ownership(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	// Owner sees it
	got, err := svc.GetOrder(context.Background(), o.ID, customer.ID, false)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	// A stranger gets not-found, never forbidden
	_, err = svc.GetOrder(context.Background(), o.ID, uuid.New(), false)
	assert.ErrorIs(t, err, ErrNotFound)

	// An operator sees any order
	_, err = svc.GetOrder(context.Background(), o.ID, uuid.New(), true)
	assert.NoError(t, err)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	customer := testCustomer()
	svc := newTestService(store, &fakeCustomers{u: customer}, &fakeRenderer{}, &fakeUploader{}, &fakeDispatcher{})

	o, err := svc.CreateOrder(context.Background(), customer.ID, validInput())
	require.NoError(t, err)

	err = svc.UpdateStatus(context.Background(), o.ID, "teleported")
	require.Error(t, err)

	require.NoError(t, svc.UpdateStatus(context.Background(), o.ID, StatusShipped))

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
}
