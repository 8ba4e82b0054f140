package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerifyRoundTrip(t *testing.T) {
	a, err := NewAuthenticator("test-secret")
	require.NoError(t, err)

	userID := uuid.New()
	token, err := a.MintToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a1, err := NewAuthenticator("secret-one")
	require.NoError(t, err)
	a2, err := NewAuthenticator("secret-two")
	require.NoError(t, err)

	token, err := a1.MintToken(uuid.New())
	require.NoError(t, err)

	_, err = a2.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a, err := NewAuthenticator("test-secret")
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := a.VerifyToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := NewAuthenticator("")
	assert.Error(t, err)
}
