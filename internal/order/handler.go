package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront-api/internal/auth"
	"storefront-api/internal/httputil"
	"storefront-api/internal/logging"
)

// Handler contains HTTP handlers for order endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items"`
	TotalAmount     float64           `json:"totalAmount"`
	ShippingAddress string            `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
}

type CreateOrderItem struct {
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder accepts an order, persists it, and returns before the
// invoice or confirmation email exist. invoicePdfUrl is always null in
// this response; clients poll their order list for it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid order request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{
			Name:      it.Name,
			Image:     it.Image,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := h.service.CreateOrder(r.Context(), principal.UserID, CreateOrderInput{
		Items:           items,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyOrder):
			httputil.RespondErrorWithCode(w, "order must contain at least one item", httputil.CodeEmptyOrder, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidItem), errors.Is(err, ErrMissingAddress):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		default:
			logger.Error("failed to create order", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to create order", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("order created", "order_id", o.ID, "user_id", principal.UserID)

	httputil.RespondJSON(w, map[string]any{
		"orderId":       o.ID,
		"status":        o.Status,
		"invoicePdfUrl": nil,
		"note":          "Invoice is being generated",
	}, http.StatusOK)
}

// GetOrders lists the authenticated user's orders, newest first.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), principal.UserID)
	if err != nil {
		logger.Error("failed to list orders", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load orders", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, map[string]any{"orders": orders}, http.StatusOK)
}

// GetInvoice returns the invoice URL for one order. Non-owners get a
// 404, not a 403, so order IDs leak nothing.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid order id", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	o, err := h.service.GetOrder(r.Context(), orderID, principal.UserID, principal.IsAdmin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "order not found", httputil.CodeOrderNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to get order", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load order", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, map[string]any{
		"orderId":       o.ID,
		"invoicePdfUrl": o.InvoicePDFURL,
	}, http.StatusOK)
}

// ListAll returns every order (operator view).
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		logger.Error("failed to list all orders", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load orders", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, map[string]any{"orders": orders}, http.StatusOK)
}

// UpdateStatus sets an order's status (operator action).
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid order id", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !ValidStatus(req.Status) {
		httputil.RespondErrorWithCode(w, "unknown order status", httputil.CodeInvalidOrderStatus, http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "order not found", httputil.CodeOrderNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to update order status", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update order", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("order status updated", "order_id", orderID, "status", req.Status)

	httputil.RespondJSON(w, map[string]string{"message": "Order status updated."}, http.StatusOK)
}
