package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
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

func TestPasetoServiceRequires32ByteKey(t *testing.T) {
	_, err := NewPasetoService([]byte("too short"))
	assert.Error(t, err)

	_, err = NewPasetoService(testKey(1))
	assert.NoError(t, err)
}

func TestCreateAndVerifyToken(t *testing.T) {
	svc, err := NewPasetoService(testKey(1))
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.CreateToken(userID, "user@example.com", time.Minute)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyTokenRejectsWrongKey(t *testing.T) {
	issuer, err := NewPasetoService(testKey(1))
	require.NoError(t, err)
	verifier, err := NewPasetoService(testKey(2))
	require.NoError(t, err)

	token, err := issuer.CreateToken(uuid.New(), "user@example.com", time.Minute)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc, err := NewPasetoService(testKey(1))
	require.NoError(t, err)

	_, err = svc.VerifyToken("v4.local.not-a-real-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
