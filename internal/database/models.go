package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table model. Cooldown marks live on the row so
// a single read fetches everything the action limiter needs.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                   uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name                 string     `bun:"name,notnull"`
	Email                string     `bun:"email,notnull,unique"`
	PasswordHash         string     `bun:"password_hash,notnull"`
	Phone                string     `bun:"phone,nullzero"`
	Address              string     `bun:"address,nullzero"`
	EmailVerified        bool       `bun:"email_verified,notnull,default:false"`
	VerificationToken    *string    `bun:"verification_token,nullzero"`
	IsAdmin              bool       `bun:"is_admin,notnull,default:false"`
	LastResetRequestTime *time.Time `bun:"last_reset_request_time,nullzero"`
	LastPasswordReset    *time.Time `bun:"last_password_reset,nullzero"`
	LastProfileEdit      *time.Time `bun:"last_profile_edit,nullzero"`
	CreatedAt            time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// Order is the orders table model. InvoicePDFURL starts null and is set
// exactly once by the background fulfillment task.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              uuid.UUID    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID          uuid.UUID    `bun:"user_id,notnull,type:uuid"`
	TotalAmount     float64      `bun:"total_amount,notnull"`
	Status          string       `bun:"status,notnull,default:'pending'"`
	ShippingAddress string       `bun:"shipping_address,notnull"`
	PaymentMethod   string       `bun:"payment_method,notnull"`
	InvoicePDFURL   *string      `bun:"invoice_pdf_url,nullzero"`
	CreatedAt       time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	Items           []*OrderItem `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem snapshots catalog data at purchase time so historical
// invoices stay stable when the catalog changes.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	OrderID   uuid.UUID `bun:"order_id,notnull,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Image     string    `bun:"image,nullzero"`
	Quantity  int       `bun:"quantity,notnull"`
	UnitPrice float64   `bun:"unit_price,notnull"`
}
