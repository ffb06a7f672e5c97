package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewCodec_KeyLength(t *testing.T) {
	_, err := NewCodec([]byte("short"))
	require.Error(t, err)

	_, err = NewCodec(testKey(1))
	require.NoError(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	in := Claims{
		UserID:  "0d4907e1-6ff2-4b27-8d40-7a2a8a4b61f5",
		Email:   "buyer@example.com",
		Name:    "Buyer One",
		Phone:   "+8801700000000",
		Address: "12 Market Road",
		Purpose: PurposeLogin,
	}

	tokenStr, err := codec.Issue(in, LoginTokenTTL)
	require.NoError(t, err)

	out, err := codec.Verify(tokenStr)
	require.NoError(t, err)

	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Email, out.Email)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Phone, out.Phone)
	assert.Equal(t, in.Address, out.Address)
	assert.Equal(t, PurposeLogin, out.Purpose)
	assert.False(t, out.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(LoginTokenTTL), out.ExpiresAt, 5*time.Second)
}

func TestIssueVerify_AdminClaim(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	tokenStr, err := codec.Issue(Claims{
		UserID:  "8b9d9a5e-32a7-4e56-b7a1-1f0c9f2f7c11",
		Email:   "admin@example.com",
		IsAdmin: true,
		Purpose: PurposeLogin,
	}, AdminTokenTTL)
	require.NoError(t, err)

	out, err := codec.Verify(tokenStr)
	require.NoError(t, err)
	assert.True(t, out.IsAdmin)
}

func TestVerify_WrongKey(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	other, err := NewCodec(testKey(2))
	require.NoError(t, err)

	tokenStr, err := codec.Issue(Claims{
		UserID:  "user-1",
		Email:   "buyer@example.com",
		Purpose: PurposeLogin,
	}, LoginTokenTTL)
	require.NoError(t, err)

	_, err = other.Verify(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	_, err = codec.Verify("v4.local.not-a-real-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	tokenStr, err := codec.Issue(Claims{
		UserID:  "user-1",
		Email:   "buyer@example.com",
		Purpose: PurposeLogin,
	}, -1*time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(tokenStr)
	require.Error(t, err)
}

func TestVerifyPurpose(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	tokenStr, err := codec.Issue(Claims{
		UserID:  "user-1",
		Email:   "buyer@example.com",
		Purpose: PurposeLogin,
	}, LoginTokenTTL)
	require.NoError(t, err)

	_, err = codec.VerifyPurpose(tokenStr, PurposeReset)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	claims, err := codec.VerifyPurpose(tokenStr, PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", claims.Email)
}

func TestVerificationToken_EmailOnly(t *testing.T) {
	codec, err := NewCodec(testKey(1))
	require.NoError(t, err)

	tokenStr, err := codec.Issue(Claims{
		Email:   "new@example.com",
		Purpose: PurposeVerify,
	}, VerifyTokenTTL)
	require.NoError(t, err)

	out, err := codec.VerifyPurpose(tokenStr, PurposeVerify)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", out.Email)
	assert.Empty(t, out.UserID)
}
