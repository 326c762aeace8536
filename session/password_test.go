package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordFormat(t *testing.T) {
	hash, err := HashPassword("Admin@Regime123!")
	require.NoError(t, err)

	parts := strings.Split(hash, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 64)
	assert.Equal(t, "100000", parts[1])
	assert.Len(t, parts[2], 128)

	other, err := HashPassword("Admin@Regime123!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Admin@Regime123!")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("Admin@Regime123!", hash))
	assert.False(t, VerifyPassword("admin@regime123!", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"abc",
		"salt:100000",
		"salt::deadbeef",
		"salt:notanumber:deadbeef",
		"salt:-5:deadbeef",
		"salt:100000:zz",
		"salt:100000:deadbeef",
		"salt:99999999999:" + strings.Repeat("00", 64),
	} {
		assert.False(t, VerifyPassword("whatever", encoded), "hash %q", encoded)
	}
}

func TestVerifyPasswordAcceptsBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("Admin@Regime123!"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword("Admin@Regime123!", string(raw)))
	assert.False(t, VerifyPassword("wrong", string(raw)))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestIsEncodedHash(t *testing.T) {
	hash, err := HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)
	raw, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, IsEncodedHash(hash))
	assert.True(t, IsEncodedHash(string(raw)))
	assert.False(t, IsEncodedHash("Str0ng!Passw0rd"))
	assert.False(t, IsEncodedHash("$2b$garbage"))
	assert.False(t, IsEncodedHash("salt:100000:deadbeef"))
}
