package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront-api/internal/httputil"
	"storefront-api/internal/logging"
	"storefront-api/internal/ratelimit"
	"storefront-api/internal/session"
	"storefront-api/internal/user"
)

// Handler contains HTTP handlers for account endpoints
type Handler struct {
	service      *Service
	rateLimiter  *ratelimit.Limiter
	logger       *logging.Logger
	isProduction bool
	sessionTTL   time.Duration
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger, isProduction bool, sessionTTL time.Duration) *Handler {
	return &Handler{
		service:      service,
		rateLimiter:  rateLimiter,
		logger:       logger,
		isProduction: isProduction,
		sessionTTL:   sessionTTL,
	}
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FederatedLoginRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateProfileRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type AdminUpdateUserRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	IsAdmin *bool   `json:"isAdmin"`
}

type UserResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Phone   string    `json:"phone,omitempty"`
	Address string    `json:"address,omitempty"`
	IsAdmin bool      `json:"is_admin,omitempty"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Address: u.Address,
		IsAdmin: u.IsAdmin,
	}
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.checkIPLimit(w, r, ip, "register") {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, "register"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	newUser, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrMissingFields):
			respondError(w, err.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordMismatch):
			respondError(w, err.Error(), httputil.CodePasswordMismatch, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooShort):
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			respondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	respondJSON(w, map[string]any{
		"user":    toUserResponse(newUser),
		"message": "Registration successful. Please check your email to verify your account.",
	}, http.StatusCreated)
}

// Login handles user login. Success establishes both credential
// channels: the bearer token in the body and the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.checkIPLimit(w, r, ip, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, "login"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrEmailNotVerified) {
			logger.Warn("login failed: email not verified")
			respondJSON(w, map[string]any{
				"error":                "email not verified, a new verification link has been sent",
				"code":                 httputil.CodeEmailNotVerified,
				"requiresVerification": true,
			}, http.StatusForbidden)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", result.User.ID)

	session.SetCookie(w, result.SessionID, h.isProduction, h.sessionTTL)

	respondJSON(w, map[string]any{
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
		"user":         toUserResponse(result.User),
	}, http.StatusOK)
}

// FederatedLogin signs in a user whose email was verified by an
// external identity provider.
func (h *Handler) FederatedLogin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req FederatedLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if req.GoogleID == "" {
		respondError(w, "missing provider identity", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	result, err := h.service.FederatedLogin(r.Context(), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidEmailFormat) {
			respondError(w, "invalid federated login payload", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		logger.Error("federated login failed", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("federated login succeeded", "user_id", result.User.ID)

	session.SetCookie(w, result.SessionID, h.isProduction, h.sessionTTL)

	respondJSON(w, map[string]any{
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
		"user":         toUserResponse(result.User),
	}, http.StatusOK)
}

// Refresh exchanges a live refresh token for a new bearer token and a
// replacement refresh token. The presented token is dead afterwards
// whether or not the client receives the response.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	result, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("token refresh failed: invalid or expired token", "error", err.Error())
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed", "user_id", result.User.ID)

	respondJSON(w, map[string]any{
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
	}, http.StatusOK)
}

// VerifyEmail handles the one-time email verification transition.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		respondError(w, "verification token required", httputil.CodeVerificationFailed, http.StatusBadRequest)
		return
	}

	err := h.service.VerifyEmail(r.Context(), tokenStr)
	if err != nil {
		if errors.Is(err, ErrAlreadyVerified) {
			respondError(w, "This email is already verified. You can login now.", httputil.CodeAlreadyVerified, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrInvalidVerificationToken) {
			logger.Warn("email verification failed: invalid token")
			respondError(w, "Invalid or expired verification token.", httputil.CodeVerificationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified successfully")

	respondJSON(w, map[string]string{
		"message": "Email verified successfully. You can now login.",
	}, http.StatusOK)
}

// ForgotPassword handles password reset requests. The response never
// reveals whether the address exists; only an active cooldown does.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.checkIPLimit(w, r, ip, "forgot-password") {
		return
	}

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, "forgot-password"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		var rlErr *ratelimit.Error
		if errors.As(err, &rlErr) {
			logger.Warn("password reset request rate limited", "email", req.Email)
			respondRateLimited(w, rlErr)
			return
		}
		logger.Error("password reset request failed", "error", err.Error())
		respondError(w, "failed to process request", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// Same message whether or not the account exists
	respondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword completes a reset using the emailed token.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrPasswordTooShort) {
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// ChangePassword rotates the password of the authenticated user.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var rlErr *ratelimit.Error
		switch {
		case errors.Is(err, ErrWrongPassword):
			logger.Warn("password change failed: wrong current password")
			respondError(w, "current password is incorrect", httputil.CodeWrongPassword, http.StatusUnauthorized)
		case errors.Is(err, ErrPasswordTooShort):
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.As(err, &rlErr):
			logger.Warn("password change rate limited", "user_id", principal.UserID)
			respondRateLimited(w, rlErr)
		default:
			logger.Error("password change failed: internal error", "error", err.Error())
			respondError(w, "failed to change password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password changed successfully", "user_id", principal.UserID)

	respondJSON(w, map[string]string{"message": "Password changed successfully."}, http.StatusOK)
}

// UpdateProfile edits the authenticated user's profile, gated by the
// 7-day cooldown.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.UpdateProfile(r.Context(), principal.UserID, req.Name, req.Phone, req.Address)
	if err != nil {
		var rlErr *ratelimit.Error
		switch {
		case errors.Is(err, ErrMissingFields):
			respondError(w, "name is required", httputil.CodeMissingFields, http.StatusBadRequest)
		case errors.As(err, &rlErr):
			logger.Warn("profile edit rate limited", "user_id", principal.UserID)
			respondRateLimited(w, rlErr)
		default:
			logger.Error("profile edit failed: internal error", "error", err.Error())
			respondError(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("profile updated", "user_id", principal.UserID)

	respondJSON(w, map[string]string{"message": "Profile updated successfully."}, http.StatusOK)
}

// CheckLogin reports session state without touching it. Bearer tokens
// are deliberately ignored: this probe exists for cookie-based clients.
func (h *Handler) CheckLogin(w http.ResponseWriter, r *http.Request) {
	sessionID := session.IDFromRequest(r)
	if sessionID == "" {
		respondJSON(w, map[string]any{"loggedIn": false}, http.StatusOK)
		return
	}

	sess, err := h.service.sessions.Get(r.Context(), sessionID)
	if err != nil {
		respondJSON(w, map[string]any{"loggedIn": false}, http.StatusOK)
		return
	}

	respondJSON(w, map[string]any{
		"loggedIn": true,
		"user": map[string]any{
			"id":    sess.UserID,
			"name":  sess.Name,
			"email": sess.Email,
		},
	}, http.StatusOK)
}

// Dashboard returns the authenticated user's profile.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUser(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("dashboard fetch failed", "error", err.Error())
		respondError(w, "failed to load profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"message": "Welcome!",
		"user":    toUserResponse(u),
	}, http.StatusOK)
}

// Logout destroys the session, revokes the presented refresh token
// and clears the cookie. The client is responsible for dropping any
// cached bearer token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	// The refresh token rides in an optional body; GET logout has none
	var req LogoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sessionID := session.IDFromRequest(r)
	if err := h.service.Logout(r.Context(), sessionID, strings.TrimSpace(req.RefreshToken)); err != nil {
		logger.Warn("failed to destroy credentials", "error", err)
		// Continue - still clear the cookie
	}

	session.ClearCookie(w)

	logger.Info("user logged out")

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// AdminUpdateUser applies an operator edit to any user account.
func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, "invalid user id", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var req AdminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err = h.service.AdminUpdateUser(r.Context(), userID, user.AdminEdit{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("admin user update failed", "error", err.Error())
		respondError(w, "failed to update user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user updated by operator", "target_user_id", userID)

	respondJSON(w, map[string]string{"message": "User updated successfully."}, http.StatusOK)
}

// checkIPLimit answers true when the request was already rejected.
func (h *Handler) checkIPLimit(w http.ResponseWriter, r *http.Request, ip, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		// Continue despite error to avoid blocking legitimate requests
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// respondRateLimited answers 429 with the remaining wait in the unit
// of the violated cooldown.
func respondRateLimited(w http.ResponseWriter, rlErr *ratelimit.Error) {
	body := map[string]any{
		"error": rlErr.Error(),
		"code":  httputil.CodeRateLimited,
	}
	for k, v := range rlErr.Fields() {
		body[k] = v
	}
	respondJSON(w, body, http.StatusTooManyRequests)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
