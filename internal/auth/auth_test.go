package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	signed, claims, err := tokens.GenerateToken("01HX", "a@b.com", "operator")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "01HX", got.UserID)
	assert.Equal(t, claims.ID, got.ID)
}

func TestTokens_RejectsOtherSecretAndExpiry(t *testing.T) {
	a, err := NewTokens("secret-a", time.Hour)
	require.NoError(t, err)
	b, err := NewTokens("secret-b", time.Hour)
	require.NoError(t, err)

	signed, _, err := a.GenerateToken("1", "a@b.com", "operator")
	require.NoError(t, err)
	_, err = b.ValidateToken(signed)
	require.Error(t, err)

	expired, err := NewTokens("secret-a", -time.Minute)
	require.NoError(t, err)
	signed, _, err = expired.GenerateToken("1", "a@b.com", "operator")
	require.NoError(t, err)
	_, err = a.ValidateToken(signed)
	require.Error(t, err)
}

func TestNewTokens_EmptySecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	require.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("correct horse", hash))
	require.Error(t, VerifyPassword("wrong", hash))
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.True(t, IsCode(code), code)
	}
	assert.False(t, IsCode("12345"))
	assert.False(t, IsCode("12345a"))
	assert.False(t, IsCode("١٢٣٤٥٦"))
}
