package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields(userID uuid.UUID) map[string]string {
	return map[string]string{
		"user_id":    userID.String(),
		"email":      "buyer@example.com",
		"name":       "Buyer One",
		"is_admin":   "true",
		"created_at": "1757000000",
	}
}

func TestSessionFromFields(t *testing.T) {
	userID := uuid.New()

	sess, err := sessionFromFields("sid-1", validFields(userID))
	require.NoError(t, err)

	assert.Equal(t, "sid-1", sess.ID)
	assert.Equal(t, userID, sess.UserID)
	assert.Equal(t, "buyer@example.com", sess.Email)
	assert.Equal(t, "Buyer One", sess.Name)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, time.Unix(1757000000, 0), sess.CreatedAt)
}

func TestSessionFromFields_CorruptUserID(t *testing.T) {
	fields := validFields(uuid.New())
	fields["user_id"] = "not-a-uuid"

	_, err := sessionFromFields("sid-1", fields)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt session")
}

func TestSessionFromFields_CorruptCreatedAt(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "non-numeric", value: "yesterday"},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields(uuid.New())
			fields["created_at"] = tt.value

			_, err := sessionFromFields("sid-1", fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "corrupt session")
		})
	}
}
