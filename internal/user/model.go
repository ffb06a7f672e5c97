package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // Never expose password hash in JSON
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	IsAdmin       bool      `json:"is_admin"`

	// Stored verification token; a presented token must match this
	// value even when its signature is valid.
	VerificationToken *string `json:"-"`

	// Cooldown marks consulted by the security action limiter.
	LastResetRequestTime *time.Time `json:"-"`
	LastPasswordReset    *time.Time `json:"-"`
	LastProfileEdit      *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
