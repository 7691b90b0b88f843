package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundtrip(t *testing.T) {
	s := &Service{}

	hash, err := s.hashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, s.verifyPassword(hash, "correct horse battery staple"))
	assert.False(t, s.verifyPassword(hash, "wrong password"))
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	s := &Service{}

	first, err := s.hashPassword("password123")
	require.NoError(t, err)
	second, err := s.hashPassword("password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, s.verifyPassword(first, "password123"))
	assert.True(t, s.verifyPassword(second, "password123"))
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	s := &Service{}

	assert.False(t, s.verifyPassword("not-a-hash", "password"))
	assert.False(t, s.verifyPassword("$argon2id$v=19$garbage", "password"))
	assert.False(t, s.verifyPassword("", "password"))
}

func TestRegisterValidation(t *testing.T) {
	s := &Service{}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "", "password123", ErrEmailRequired},
		{"invalid email", "not-an-email", "password123", ErrInvalidEmailFormat},
		{"oversized email", strings.Repeat("a", 250) + "@x.io", "password123", ErrInvalidEmailFormat},
		{"empty password", "user@example.com", "", ErrPasswordRequired},
		{"short password", "user@example.com", "1234567", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Register(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateRandomTokenIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := generateRandomToken()
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.False(t, seen[token])
		seen[token] = true
	}
}
