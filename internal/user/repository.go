package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"storefront-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, name, email, passwordHash, phone, verificationToken string) (*User, error) {
	dbUser := &database.User{
		Name:              name,
		Email:             email,
		PasswordHash:      passwordHash,
		Phone:             phone,
		VerificationToken: &verificationToken,
		EmailVerified:     false,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// CreateVerified inserts a user whose email is already trusted
// (federated login: the identity provider vouched for the address).
func (r *Repository) CreateVerified(ctx context.Context, name, email, passwordHash string) (*User, error) {
	dbUser := &database.User{
		Name:          name,
		Email:         email,
		PasswordHash:  passwordHash,
		EmailVerified: true,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkEmailVerified flips the verified flag and clears the stored
// verification token so the token cannot be replayed.
func (r *Repository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verified = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	return nil
}

// UpdateVerificationToken rotates the stored verification token,
// invalidating any previously issued one.
func (r *Repository) UpdateVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verification_token = ?", token).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	return nil
}

// UpdatePassword replaces the password hash and advances the
// last_password_reset mark in the same statement. The mark moves only
// here, on the gated action's success.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("last_password_reset = ?", at).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
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

// SetLastResetRequest advances the reset-request mark after a reset
// email was actually dispatched.
func (r *Repository) SetLastResetRequest(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_reset_request_time = ?", at).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set last reset request time: %w", err)
	}

	return nil
}

// UpdateProfile applies a profile edit and advances its cooldown mark.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, address string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("name = ?", name).
		Set("phone = ?", phone).
		Set("address = ?", address).
		Set("last_profile_edit = ?", at).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
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

// AdminEdit holds the optional fields an operator may change.
// Nil fields are left untouched.
type AdminEdit struct {
	Name    *string
	Phone   *string
	Address *string
	IsAdmin *bool
}

// AdminUpdate applies an operator edit. Every field goes through a
// bound parameter; no part of the statement is built from user input.
func (r *Repository) AdminUpdate(ctx context.Context, id uuid.UUID, edit AdminEdit) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = NOW()").
		Where("id = ?", id)

	if edit.Name != nil {
		q = q.Set("name = ?", *edit.Name)
	}
	if edit.Phone != nil {
		q = q.Set("phone = ?", *edit.Phone)
	}
	if edit.Address != nil {
		q = q.Set("address = ?", *edit.Address)
	}
	if edit.IsAdmin != nil {
		q = q.Set("is_admin = ?", *edit.IsAdmin)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
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

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                   dbu.ID,
		Name:                 dbu.Name,
		Email:                dbu.Email,
		PasswordHash:         dbu.PasswordHash,
		Phone:                dbu.Phone,
		Address:              dbu.Address,
		EmailVerified:        dbu.EmailVerified,
		IsAdmin:              dbu.IsAdmin,
		VerificationToken:    dbu.VerificationToken,
		LastResetRequestTime: dbu.LastResetRequestTime,
		LastPasswordReset:    dbu.LastPasswordReset,
		LastProfileEdit:      dbu.LastProfileEdit,
		CreatedAt:            dbu.CreatedAt,
		UpdatedAt:            dbu.UpdatedAt,
	}
}
