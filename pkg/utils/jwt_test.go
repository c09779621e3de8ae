package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "z-writer")

	token, err := m.GenerateToken("u-1", time.Minute)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "z-writer")

	token, err := m.GenerateToken("u-1", -time.Minute)
	require.NoError(t, err)

	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongSecretOrIssuer(t *testing.T) {
	token, err := NewJWTManager("other", "z-writer").GenerateToken("u-1", time.Minute)
	require.NoError(t, err)
	_, err = NewJWTManager("secret", "z-writer").ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err = NewJWTManager("secret", "someone-else").GenerateToken("u-1", time.Minute)
	require.NoError(t, err)
	_, err = NewJWTManager("secret", "z-writer").ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
