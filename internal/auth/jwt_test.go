package auth_test

import (
	"chatroom/backend/internal/auth"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := auth.NewTokenManager("secret", time.Hour)

	token, issued, err := m.Issue("u1", "a@example.com", auth.TokenAccess)
	require.NoError(t, err)

	claims, err := m.Validate(token, auth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)
	assert.NotEmpty(t, claims.ID)
	assert.InDelta(t, time.Hour.Seconds(), m.Remaining(claims).Seconds(), 5)
}

func TestTokenManager_RejectsWrongTypeSecretAndExpiry(t *testing.T) {
	m := auth.NewTokenManager("secret", time.Hour)
	verify, _, err := m.Issue("u1", "a@example.com", auth.TokenVerify)
	require.NoError(t, err)

	_, err = m.Validate(verify, auth.TokenAccess)
	assert.Error(t, err, "verification tokens must not authenticate")

	other := auth.NewTokenManager("other-secret", time.Hour)
	_, err = other.Validate(verify, auth.TokenVerify)
	assert.Error(t, err)

	_, err = m.Validate("not-a-jwt", auth.TokenAccess)
	assert.Error(t, err)

	expired := auth.NewTokenManager("secret", time.Nanosecond)
	token, _, err := expired.Issue("u1", "a@example.com", auth.TokenAccess)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = expired.Validate(token, auth.TokenAccess)
	assert.ErrorContains(t, err, "expired")
}

func TestPasswordHasher(t *testing.T) {
	h := auth.NewPasswordHasherWithCost(4)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, h.Verify("hunter22", hash))
	assert.False(t, h.Verify("hunter23", hash))
}
