package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-held identity reference addressed by the
// opaque cookie value.
type Session struct {
	ID        string
	UserID    uuid.UUID
	Email     string
	Name      string
	IsAdmin   bool
	CreatedAt time.Time
}

// Store keeps sessions in Redis, one hash per session with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create stores a new session and returns its opaque ID.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, email, name string, isAdmin bool) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	key := sessionKey(id)
	now := time.Now()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID.String(),
		"email":      email,
		"name":       name,
		"is_admin":   strconv.FormatBool(isAdmin),
		"created_at": now.Unix(),
	})
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return id, nil
}

// Get looks up a session by ID. Expired sessions vanish via TTL and
// surface as ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	return sessionFromFields(id, data)
}

// sessionFromFields maps a Redis hash back onto a Session. A hash
// missing or mangling a required field is corrupt, not merely stale.
func sessionFromFields(id string, data map[string]string) (*Session, error) {
	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session %q: %w", id, err)
	}

	createdAtUnix, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %q: %w", id, err)
	}

	isAdmin, _ := strconv.ParseBool(data["is_admin"])

	return &Session{
		ID:        id,
		UserID:    userID,
		Email:     data["email"],
		Name:      data["name"],
		IsAdmin:   isAdmin,
		CreatedAt: time.Unix(createdAtUnix, 0),
	}, nil
}

// Destroy removes a session. Destroying a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
