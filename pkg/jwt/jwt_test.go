package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret", "test")
	userID, tenantID := uuid.New(), uuid.New()

	token, err := s.GenerateToken(userID, tenantID, "Amina", "cashier", time.Hour)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "cashier", claims.Role)
	assert.Equal(t, "test", claims.Issuer)
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner("secret", "test")

	_, err := s.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	other, err := NewSigner("other", "test").GenerateToken(uuid.New(), uuid.New(), "x", "owner", time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := s.GenerateToken(uuid.New(), uuid.New(), "x", "owner", -time.Minute)
	require.NoError(t, err)
	_, err = s.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noTenant, err := s.GenerateToken(uuid.New(), uuid.Nil, "x", "owner", time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateToken(noTenant)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
