package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"storefront-api/internal/auth"
	"storefront-api/internal/config"
	"storefront-api/internal/httputil"
	"storefront-api/internal/logging"
	"storefront-api/internal/order"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	authHandler *auth.Handler,
	orderHandler *order.Handler,
	gate *auth.Gate,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first. Credentials are allowed because the session
	// cookie rides on cross-origin requests from the storefront.
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	// Public routes
	r.Get("/health", handleHealth)

	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Post("/google-login", authHandler.FederatedLogin)
	r.Post("/refresh-token", authHandler.Refresh)
	r.Get("/verify-email", authHandler.VerifyEmail)
	r.Post("/forgot-password", authHandler.ForgotPassword)
	r.Post("/reset-password", authHandler.ResetPassword)
	r.Get("/check-login", authHandler.CheckLogin)

	// Logout works with or without a live session so a stale cookie can
	// always be cleared
	r.Get("/logout", authHandler.Logout)
	r.Post("/logout", authHandler.Logout)

	// Protected routes (bearer token or session cookie)
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAuth)

		r.Get("/dashboard", authHandler.Dashboard)
		r.Post("/change-password", authHandler.ChangePassword)
		r.Patch("/profile", authHandler.UpdateProfile)

		r.Post("/create-order", orderHandler.CreateOrder)
		r.Get("/get-orders", orderHandler.GetOrders)
		r.Get("/get-invoice/{orderID}", orderHandler.GetInvoice)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAdmin)

		r.Get("/admin/orders", orderHandler.ListAll)
		r.Patch("/admin/orders/{orderID}/status", orderHandler.UpdateStatus)
		r.Patch("/admin/users/{userID}", authHandler.AdminUpdateUser)
	})

	return r
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
