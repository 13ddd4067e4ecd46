package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptRoundTrip(t *testing.T) {
	hash, err := HashPasswordAsBcrypt("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash(hash, "s3cret"))
	assert.False(t, CheckPasswordHash(hash, "other"))
}

func TestDeriveKeyIsDeterministicPerPurpose(t *testing.T) {
	a1, err := DeriveKey([]byte("secret"), "a", 32)
	require.NoError(t, err)
	a2, err := DeriveKey([]byte("secret"), "a", 32)
	require.NoError(t, err)
	b, err := DeriveKey([]byte("secret"), "b", 32)
	require.NoError(t, err)

	assert.Len(t, a1, 32)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
}

func TestCookieKeys(t *testing.T) {
	hashKey, blockKey, err := CookieKeys("panel-secret")
	require.NoError(t, err)
	assert.Len(t, hashKey, 64)
	assert.Len(t, blockKey, 32)
	assert.NotEqual(t, hashKey[:32], blockKey)
}
