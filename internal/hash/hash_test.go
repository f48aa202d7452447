package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	h, err := HashPassword("password")
	require.NoError(t, err)
	require.NotEqual(t, "password", h)

	require.True(t, CheckPassword(h, "password"))
	require.False(t, CheckPassword(h, "wrong"))
}

func TestCheckMalformedHash(t *testing.T) {
	require.False(t, CheckPassword("not-a-bcrypt-hash", "password"))
	require.False(t, CheckPassword("", "password"))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("password")
	require.NoError(t, err)
	h2, err := HashPassword("password")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
