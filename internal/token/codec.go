package token

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Token lifetimes by issuing context.
const (
	LoginTokenTTL     = 48 * time.Hour
	AdminTokenTTL     = 8 * time.Hour
	ResetTokenTTL     = 1 * time.Hour
	VerifyTokenTTL    = 24 * time.Hour
	FederatedTokenTTL = 7 * 24 * time.Hour
)

// Purposes keep token kinds from being swapped: a login token can
// never pass as a reset token.
const (
	PurposeLogin     = "login"
	PurposeReset     = "reset"
	PurposeVerify    = "verify"
	PurposeFederated = "federated"
)

// Claims is the per-call claim set embedded in a token. UserID and Email
// are mandatory for login tokens; verification tokens carry only Email.
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	Purpose   string    `json:"purpose"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Codec creates and validates PASETO v4.local tokens.
// It holds no state beyond the shared symmetric key; issued tokens
// are never persisted.
type Codec struct {
	symmetricKey paseto.V4SymmetricKey
}

func NewCodec(symmetricKey []byte) (*Codec, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &Codec{symmetricKey: key}, nil
}

// Issue encrypts the given claims into a token valid for ttl.
// Optional claims are embedded only when set.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()

	t := paseto.NewToken()
	t.SetIssuedAt(now)
	t.SetExpiration(now.Add(ttl))
	t.SetString("email", claims.Email)
	t.SetString("purpose", claims.Purpose)
	if claims.UserID != "" {
		t.SetString("user_id", claims.UserID)
	}
	if claims.Name != "" {
		t.SetString("name", claims.Name)
	}
	if claims.Phone != "" {
		t.SetString("phone", claims.Phone)
	}
	if claims.Address != "" {
		t.SetString("address", claims.Address)
	}
	if claims.IsAdmin {
		if err := t.Set("is_admin", true); err != nil {
			return "", fmt.Errorf("failed to set admin claim: %w", err)
		}
	}

	return t.V4Encrypt(c.symmetricKey, nil), nil
}

// Verify decrypts and validates a token, returning its claims.
// Expiration is checked by the parser; a wrong key, garbage input and
// a tampered payload all collapse to ErrInvalidToken.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	parser := paseto.NewParser()

	t, err := parser.ParseV4Local(c.symmetricKey, tokenStr, nil)
	if err != nil {
		if errors.Is(err, &paseto.RuleError{}) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	email, err := t.GetString("email")
	if err != nil {
		return nil, ErrInvalidToken
	}

	purpose, err := t.GetString("purpose")
	if err != nil {
		return nil, ErrInvalidToken
	}

	issuedAt, err := t.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := t.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		Email:     email,
		Purpose:   purpose,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	// Optional claims: absence is not an error
	if v, err := t.GetString("user_id"); err == nil {
		claims.UserID = v
	}
	if v, err := t.GetString("name"); err == nil {
		claims.Name = v
	}
	if v, err := t.GetString("phone"); err == nil {
		claims.Phone = v
	}
	if v, err := t.GetString("address"); err == nil {
		claims.Address = v
	}
	var isAdmin bool
	if err := t.Get("is_admin", &isAdmin); err == nil {
		claims.IsAdmin = isAdmin
	}

	return claims, nil
}

// VerifyPurpose is Verify plus a purpose check.
func (c *Codec) VerifyPurpose(tokenStr, purpose string) (*Claims, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
