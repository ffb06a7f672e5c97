package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
)

// RefreshToken is the server-side record behind an opaque refresh
// token. The token itself is never stored, only its hash.
type RefreshToken struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RedisRefreshStore keeps refresh tokens in Redis: one hash per token
// plus a revocation marker that outlives the token's own key, so a
// rotated-out token stays dead for its full original lifetime.
type RedisRefreshStore struct {
	client *redis.Client
}

func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

func refreshTokenKey(tokenHash string) string {
	return fmt.Sprintf("refresh_token:%s", tokenHash)
}

func revokedTokenKey(tokenHash string) string {
	return fmt.Sprintf("refresh_token:revoked:%s", tokenHash)
}

func userTokensKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_refresh_tokens:%s", userID.String())
}

// hashToken derives the storage key from a token so a Redis dump never
// yields usable credentials.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Store persists a refresh token with a TTL matching its expiry.
func (r *RedisRefreshStore) Store(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	tokenHash := hashToken(token)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token expiration time is in the past")
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, refreshTokenKey(tokenHash), map[string]interface{}{
		"user_id":    userID.String(),
		"expires_at": expiresAt.Unix(),
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, refreshTokenKey(tokenHash), ttl)

	// Track the user's live tokens so logout-everywhere stays possible
	pipe.SAdd(ctx, userTokensKey(userID), tokenHash)
	pipe.Expire(ctx, userTokensKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// Get resolves a refresh token. Revocation wins over presence: a token
// that was rotated out is reported revoked even while its data key lives.
func (r *RedisRefreshStore) Get(ctx context.Context, token string) (*RefreshToken, error) {
	tokenHash := hashToken(token)

	revoked, err := r.client.Exists(ctx, revokedTokenKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked > 0 {
		return nil, ErrRefreshTokenRevoked
	}

	data, err := r.client.HGetAll(ctx, refreshTokenKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	expiresAtUnix, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}
	expiresAt := time.Unix(expiresAtUnix, 0)

	if time.Now().After(expiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	createdAtUnix, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}

	return &RefreshToken{
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Unix(createdAtUnix, 0),
	}, nil
}

// Revoke marks a refresh token as dead for the remainder of its
// lifetime. Revoking an unknown token reports ErrRefreshTokenNotFound.
func (r *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	tokenHash := hashToken(token)

	exists, err := r.client.Exists(ctx, refreshTokenKey(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if exists == 0 {
		return ErrRefreshTokenNotFound
	}

	ttl, err := r.client.TTL(ctx, refreshTokenKey(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to get token TTL: %w", err)
	}
	if ttl <= 0 {
		ttl = refreshTokenTTL
	}

	if err := r.client.Set(ctx, revokedTokenKey(tokenHash), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllForUser kills every live refresh token of one user.
func (r *RedisRefreshStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	tokenHashes, err := r.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get user tokens: %w", err)
	}
	if len(tokenHashes) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, tokenHash := range tokenHashes {
		ttl, _ := r.client.TTL(ctx, refreshTokenKey(tokenHash)).Result()
		if ttl <= 0 {
			ttl = refreshTokenTTL
		}
		pipe.Set(ctx, revokedTokenKey(tokenHash), "1", ttl)
	}
	pipe.Del(ctx, userTokensKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	return nil
}
