// internal/auth/session_test.go
package auth

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	Init()
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := CreateToken(userID)
	require.NoError(t, err)

	resolved, err := Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, resolved)
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	token, err := CreateToken(uuid.New())
	require.NoError(t, err)

	_, err = Authenticate(token + "x")
	assert.Error(t, err)

	_, err = Authenticate("not-a-jwt")
	assert.Error(t, err)
}
