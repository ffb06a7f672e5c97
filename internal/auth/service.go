package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/logging"
	"storefront-api/internal/ratelimit"
	"storefront-api/internal/session"
	"storefront-api/internal/token"
	"storefront-api/internal/user"
)

var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrMissingFields            = errors.New("name, email and password are required")
	ErrPasswordMismatch         = errors.New("passwords do not match")
	ErrPasswordTooShort         = errors.New("password must be at least 8 characters")
	ErrInvalidEmailFormat       = errors.New("invalid email format")
	ErrEmailNotVerified         = errors.New("email not verified, please check your inbox")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrAlreadyVerified          = errors.New("email already verified")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrWrongPassword            = errors.New("current password is incorrect")
)

// Opaque refresh tokens outlive every bearer token; rotation on use
// keeps any single value short-lived in practice.
const refreshTokenTTL = 30 * 24 * time.Hour

// EmailSender is the slice of the dispatcher the auth flows need.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, toEmail, tokenStr string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, tokenStr string) error
}

// UserStore is the user persistence the account flows need.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, phone, verificationToken string) (*user.User, error)
	CreateVerified(ctx context.Context, name, email, passwordHash string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdateVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
	SetLastResetRequest(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, address string, at time.Time) error
	AdminUpdate(ctx context.Context, id uuid.UUID, edit user.AdminEdit) error
}

// SessionStore is the session persistence the account flows need.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, email, name string, isAdmin bool) (string, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Destroy(ctx context.Context, id string) error
}

// RefreshTokenStore persists opaque refresh tokens and their
// revocation state.
type RefreshTokenStore interface {
	Store(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// LoginResult bundles the credentials a successful login yields: a
// stateless bearer token, an opaque refresh token and a server-side
// session.
type LoginResult struct {
	Token        string
	RefreshToken string
	SessionID    string
	User         *user.User
}

// Service handles account business logic
type Service struct {
	userRepo      UserStore
	codec         *token.Codec
	sessions      SessionStore
	refreshTokens RefreshTokenStore
	email         EmailSender
	logger        *logging.Logger
}

func NewService(
	userRepo UserStore,
	codec *token.Codec,
	sessions SessionStore,
	refreshTokens RefreshTokenStore,
	email EmailSender,
	logger *logging.Logger,
) *Service {
	return &Service{
		userRepo:      userRepo,
		codec:         codec,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		email:         email,
		logger:        logger,
	}
}

// Register creates a new user account and sends a verification email.
func (s *Service) Register(ctx context.Context, name, email, password, confirmPassword, phone string) (*user.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if password != confirmPassword {
		return nil, ErrPasswordMismatch
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := s.codec.Issue(token.Claims{
		Email:   email,
		Purpose: token.PurposeVerify,
	}, token.VerifyTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}

	newUser, err := s.userRepo.Create(ctx, name, email, passwordHash, phone, verificationToken)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send verification email in a goroutine (non-blocking)
	go func() {
		emailCtx := context.Background()
		if err := s.email.SendVerificationEmail(emailCtx, email, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", email, "error", err)
		}
	}()

	return newUser, nil
}

// Login authenticates a user and establishes both credential channels.
// Admin accounts get a short-lived elevated token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !verifyPassword(existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !existingUser.EmailVerified {
		// Rotate the stored token and resend; the old link dies here
		s.resendVerification(ctx, existingUser)
		return nil, ErrEmailNotVerified
	}

	ttl := token.LoginTokenTTL
	if existingUser.IsAdmin {
		ttl = token.AdminTokenTTL
	}

	return s.issueCredentials(ctx, existingUser, token.PurposeLogin, ttl)
}

// FederatedLogin signs in a user vouched for by an external identity
// provider, creating the account on first sight. The issued token is
// long-lived (7 days).
func (s *Service) FederatedLogin(ctx context.Context, email, name string) (*LoginResult, error) {
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		// First federated sign-in: the provider verified the address
		randomSecret, err := generateRandomPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to generate placeholder secret: %w", err)
		}
		passwordHash, err := hashPassword(randomSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to hash placeholder secret: %w", err)
		}

		existingUser, err = s.userRepo.CreateVerified(ctx, name, email, passwordHash)
		if err != nil {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}
	}

	return s.issueCredentials(ctx, existingUser, token.PurposeFederated, token.FederatedTokenTTL)
}

// issueCredentials mints the full credential set for a signed-in user:
// bearer token, stored refresh token and Redis session.
func (s *Service) issueCredentials(ctx context.Context, u *user.User, purpose string, ttl time.Duration) (*LoginResult, error) {
	bearer, err := s.codec.Issue(token.Claims{
		UserID:  u.ID.String(),
		Email:   u.Email,
		Name:    u.Name,
		Phone:   u.Phone,
		Address: u.Address,
		IsAdmin: u.IsAdmin,
		Purpose: purpose,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.refreshTokens.Store(ctx, u.ID, refreshToken, time.Now().Add(refreshTokenTTL)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	sessionID, err := s.sessions.Create(ctx, u.ID, u.Email, u.Name, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &LoginResult{
		Token:        bearer,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		User:         u,
	}, nil
}

// RefreshAccessToken exchanges a live refresh token for a fresh bearer
// and a replacement refresh token. The old token is revoked before the
// replacement exists, so each value works at most once.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	rt, err := s.refreshTokens.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		if errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	existingUser, err := s.userRepo.GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ttl := token.LoginTokenTTL
	if existingUser.IsAdmin {
		ttl = token.AdminTokenTTL
	}

	bearer, err := s.codec.Issue(token.Claims{
		UserID:  existingUser.ID.String(),
		Email:   existingUser.Email,
		Name:    existingUser.Name,
		Phone:   existingUser.Phone,
		Address: existingUser.Address,
		IsAdmin: existingUser.IsAdmin,
		Purpose: token.PurposeLogin,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	newRefreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.refreshTokens.Store(ctx, existingUser.ID, newRefreshToken, time.Now().Add(refreshTokenTTL)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &LoginResult{
		Token:        bearer,
		RefreshToken: newRefreshToken,
		User:         existingUser,
	}, nil
}

// VerifyEmail flips the verified flag using a verification token.
// The token must both validate cryptographically AND match the value
// currently stored on the user row; a rotated or already-used token is
// rejected even when its signature still verifies.
func (s *Service) VerifyEmail(ctx context.Context, tokenStr string) error {
	claims, err := s.codec.VerifyPurpose(tokenStr, token.PurposeVerify)
	if err != nil {
		return ErrInvalidVerificationToken
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.EmailVerified {
		return ErrAlreadyVerified
	}

	if existingUser.VerificationToken == nil || *existingUser.VerificationToken != tokenStr {
		return ErrInvalidVerificationToken
	}

	if err := s.userRepo.MarkEmailVerified(ctx, existingUser.ID); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// RequestPasswordReset sends a reset email, gated by two independent
// cooldowns: 5 minutes since the last request, and 24 hours since the
// last successful reset or change. An unknown email reports success.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Don't reveal if user exists
			return nil
		}
		s.logger.Warn("failed to get user for password reset", "error", err)
		return nil
	}

	now := time.Now()

	if v := ratelimit.CheckCooldown(existingUser.LastResetRequestTime, ratelimit.ResetRequestCooldown, now); !v.Allowed {
		return &ratelimit.Error{Verdict: v, Unit: ratelimit.UnitMinutes}
	}
	if v := ratelimit.CheckCooldown(existingUser.LastPasswordReset, ratelimit.PasswordResetCooldown, now); !v.Allowed {
		return &ratelimit.Error{Verdict: v, Unit: ratelimit.UnitHours}
	}

	resetToken, err := s.codec.Issue(token.Claims{
		UserID:  existingUser.ID.String(),
		Email:   existingUser.Email,
		Purpose: token.PurposeReset,
	}, token.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.userRepo.SetLastResetRequest(ctx, existingUser.ID, now); err != nil {
		return fmt.Errorf("failed to record reset request: %w", err)
	}

	// Send reset email in goroutine (non-blocking)
	go func() {
		emailCtx := context.Background()
		if err := s.email.SendPasswordResetEmail(emailCtx, email, resetToken); err != nil {
			s.logger.Warn("failed to send password reset email", "email", email, "error", err)
		}
	}()

	return nil
}

// ResetPassword sets a new password using a valid reset token. Reset
// tokens are stateless and die only by expiry; the 24-hour mark
// advanced here is what blocks a replay from resetting again.
func (s *Service) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	claims, err := s.codec.VerifyPurpose(tokenStr, token.PurposeReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ErrInvalidResetToken
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash, time.Now()); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ChangePassword lets an authenticated user rotate their password,
// subject to the 24-hour cooldown shared with password reset.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	existingUser, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !verifyPassword(existingUser.PasswordHash, currentPassword) {
		return ErrWrongPassword
	}

	if v := ratelimit.CheckCooldown(existingUser.LastPasswordReset, ratelimit.PasswordResetCooldown, time.Now()); !v.Allowed {
		return &ratelimit.Error{Verdict: v, Unit: ratelimit.UnitHours}
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash, time.Now()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// UpdateProfile applies a profile edit behind the 7-day cooldown.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone, address string) error {
	if name == "" {
		return ErrMissingFields
	}

	existingUser, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if v := ratelimit.CheckCooldown(existingUser.LastProfileEdit, ratelimit.ProfileEditCooldown, time.Now()); !v.Allowed {
		return &ratelimit.Error{Verdict: v, Unit: ratelimit.UnitDays}
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, name, phone, address, time.Now()); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

// GetUser returns the profile of an authenticated user.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// AdminUpdateUser applies an operator edit to an arbitrary account.
// The admin flag is mutated nowhere else.
func (s *Service) AdminUpdateUser(ctx context.Context, userID uuid.UUID, edit user.AdminEdit) error {
	return s.userRepo.AdminUpdate(ctx, userID, edit)
}

// Logout destroys the server-side session and revokes the presented
// refresh token. The bearer token cannot be revoked; clients drop
// their cached copy.
func (s *Service) Logout(ctx context.Context, sessionID, refreshToken string) error {
	if refreshToken != "" {
		if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}

	if sessionID == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, sessionID)
}

// generateRandomToken creates a cryptographically secure opaque token.
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// resendVerification rotates the stored verification token and emails
// a fresh link. Failures are logged only; the caller still reports
// the unverified state.
func (s *Service) resendVerification(ctx context.Context, u *user.User) {
	verificationToken, err := s.codec.Issue(token.Claims{
		Email:   u.Email,
		Purpose: token.PurposeVerify,
	}, token.VerifyTokenTTL)
	if err != nil {
		s.logger.Warn("failed to issue verification token", "error", err)
		return
	}

	if err := s.userRepo.UpdateVerificationToken(ctx, u.ID, verificationToken); err != nil {
		s.logger.Warn("failed to rotate verification token", "error", err)
		return
	}

	go func() {
		emailCtx := context.Background()
		if err := s.email.SendVerificationEmail(emailCtx, u.Email, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", u.Email, "error", err)
		}
	}()
}
