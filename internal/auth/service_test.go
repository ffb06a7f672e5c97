package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/logging"
	"storefront-api/internal/session"
	"storefront-api/internal/token"
	"storefront-api/internal/user"
)

type fakeUserStore struct {
	byID map[uuid.UUID]*user.User
}

func newFakeUserStore(users ...*user.User) *fakeUserStore {
	s := &fakeUserStore{byID: make(map[uuid.UUID]*user.User)}
	for _, u := range users {
		s.byID[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(_ context.Context, name, email, passwordHash, phone, verificationToken string) (*user.User, error) {
	u := &user.User{
		ID:                uuid.New(),
		Name:              name,
		Email:             email,
		PasswordHash:      passwordHash,
		Phone:             phone,
		VerificationToken: &verificationToken,
	}
	s.byID[u.ID] = u
	return u, nil
}

func (s *fakeUserStore) CreateVerified(_ context.Context, name, email, passwordHash string) (*user.User, error) {
	u := &user.User{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		PasswordHash:  passwordHash,
		EmailVerified: true,
	}
	s.byID[u.ID] = u
	return u, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	if u, ok := s.byID[id]; ok {
		u.EmailVerified = true
		u.VerificationToken = nil
	}
	return nil
}

func (s *fakeUserStore) UpdateVerificationToken(_ context.Context, id uuid.UUID, tok string) error {
	if u, ok := s.byID[id]; ok {
		u.VerificationToken = &tok
	}
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	u, ok := s.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.LastPasswordReset = &at
	return nil
}

func (s *fakeUserStore) SetLastResetRequest(_ context.Context, id uuid.UUID, at time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.LastResetRequestTime = &at
	}
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uuid.UUID, name, phone, address string, at time.Time) error {
	u, ok := s.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Name, u.Phone, u.Address = name, phone, address
	u.LastProfileEdit = &at
	return nil
}

func (s *fakeUserStore) AdminUpdate(_ context.Context, id uuid.UUID, edit user.AdminEdit) error {
	u, ok := s.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	if edit.IsAdmin != nil {
		u.IsAdmin = *edit.IsAdmin
	}
	return nil
}

type fakeSessionStore struct {
	sessions map[string]*session.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*session.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, userID uuid.UUID, email, name string, isAdmin bool) (string, error) {
	id := uuid.NewString()
	s.sessions[id] = &session.Session{ID: id, UserID: userID, Email: email, Name: name, IsAdmin: isAdmin}
	return id, nil
}

func (s *fakeSessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (s *fakeSessionStore) Destroy(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type fakeRefreshStore struct {
	tokens  map[string]*RefreshToken
	revoked map[string]bool
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{
		tokens:  make(map[string]*RefreshToken),
		revoked: make(map[string]bool),
	}
}

func (s *fakeRefreshStore) Store(_ context.Context, userID uuid.UUID, tok string, expiresAt time.Time) error {
	s.tokens[tok] = &RefreshToken{UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (s *fakeRefreshStore) Get(_ context.Context, tok string) (*RefreshToken, error) {
	if s.revoked[tok] {
		return nil, ErrRefreshTokenRevoked
	}
	rt, ok := s.tokens[tok]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}
	return rt, nil
}

func (s *fakeRefreshStore) Revoke(_ context.Context, tok string) error {
	if _, ok := s.tokens[tok]; !ok {
		return ErrRefreshTokenNotFound
	}
	s.revoked[tok] = true
	return nil
}

func (s *fakeRefreshStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	for tok, rt := range s.tokens {
		if rt.UserID == userID {
			s.revoked[tok] = true
		}
	}
	return nil
}

type fakeEmailSender struct{}

func (fakeEmailSender) SendVerificationEmail(context.Context, string, string) error { return nil }
func (fakeEmailSender) SendPasswordResetEmail(context.Context, string, string) error { return nil }

func testCodec(t *testing.T) *token.Codec {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	codec, err := token.NewCodec(key)
	require.NoError(t, err)
	return codec
}

func newServiceFixture(t *testing.T) (*Service, *fakeUserStore, *fakeSessionStore, *fakeRefreshStore) {
	t.Helper()
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	refresh := newFakeRefreshStore()
	svc := NewService(users, testCodec(t), sessions, refresh, fakeEmailSender{}, logging.NewLogger(true))
	return svc, users, sessions, refresh
}

func verifiedUser(t *testing.T, users *fakeUserStore, password string) *user.User {
	t.Helper()
	hash, err := hashPassword(password)
	require.NoError(t, err)
	u, err := users.CreateVerified(context.Background(), "Buyer One", "buyer@example.com", hash)
	require.NoError(t, err)
	return u
}

func TestLogin_IssuesRefreshToken(t *testing.T) {
	svc, users, _, refresh := newServiceFixture(t)
	verifiedUser(t, users, "correct horse")

	result, err := svc.Login(context.Background(), "buyer@example.com", "correct horse")
	require.NoError(t, err)

	require.NotEmpty(t, result.RefreshToken)
	_, err = refresh.Get(context.Background(), result.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAccessToken_RotatesToken(t *testing.T) {
	svc, users, _, _ := newServiceFixture(t)
	u := verifiedUser(t, users, "correct horse")

	login, err := svc.Login(context.Background(), "buyer@example.com", "correct horse")
	require.NoError(t, err)

	refreshed, err := svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.Token)
	require.NotEmpty(t, refreshed.RefreshToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, u.ID, refreshed.User.ID)

	// The spent token is dead; each value works at most once
	_, err = svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	// The replacement works
	_, err = svc.RefreshAccessToken(context.Background(), refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAccessToken_UnknownToken(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	_, err := svc.RefreshAccessToken(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestLogout_RevokesCredentials(t *testing.T) {
	svc, users, sessions, _ := newServiceFixture(t)
	verifiedUser(t, users, "correct horse")

	login, err := svc.Login(context.Background(), "buyer@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.SessionID, login.RefreshToken))

	_, err = sessions.Get(context.Background(), login.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestLogout_UnknownRefreshTokenIgnored(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	assert.NoError(t, svc.Logout(context.Background(), "", "never-issued"))
}
