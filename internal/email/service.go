package email

import (
	"context"
	"fmt"
	"net/smtp"

	"storefront-api/internal/logging"
)

// Dispatcher is the outbound notification contract. Implementations
// must not panic across the caller boundary; pipeline callers treat
// every returned error as log-and-continue.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, htmlBody, replyTo string) error
}

// Service sends templated HTML email over SMTP.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	fromName     string
	frontendURL  string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromName, frontendURL string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
		fromName:     fromName,
		frontendURL:  frontendURL,
	}
}

// Send delivers a single HTML message. No retry or backoff; callers
// must not assume delivery.
func (s *Service) Send(ctx context.Context, to, subject, htmlBody, replyTo string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n",
		s.fromName, s.fromEmail, to, subject,
	)
	if replyTo != "" {
		headers += fmt.Sprintf("Reply-To: %s\r\n", replyTo)
	}
	headers += "MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n"

	msg := []byte(headers + htmlBody + "\r\n")

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	if err := smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

// SendVerificationEmail sends an email verification link to the user.
// Designed to be called in a goroutine.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	verificationLink := fmt.Sprintf("%s/verify?token=%s", s.frontendURL, token)

	body, err := renderVerificationEmail(verificationLink)
	if err != nil {
		logger.Error("failed to render verification email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.Send(ctx, toEmail, "Verify your email address", body, ""); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return err
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link to the user.
// Designed to be called in a goroutine.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)

	body, err := renderPasswordResetEmail(resetLink)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.Send(ctx, toEmail, "Reset your password", body, ""); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return err
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}
