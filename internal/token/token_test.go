package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789-0123456789-ok"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RejectsUndersizedSecret(t *testing.T) {
	_, err := NewCodec("too-short", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestNewCodec_RejectsNonPositiveTTL(t *testing.T) {
	_, err := NewCodec(testSecret, 0)
	require.Error(t, err)
}

func TestMint_RequiresSubject(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.Mint("", []string{"ROLE_USER"})
	require.Error(t, err)
}

func TestVerify_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	roles := []string{"ROLE_USER", "ROLE_ADMIN"}
	signed, err := codec.Mint("alice", roles)
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, roles, claims.Roles)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestVerify_EmptyRoleSet(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Mint("bob", nil)
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Empty(t, claims.Roles)
}

func TestVerify_MutatedPayloadFailsBadSignature(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Mint("alice", []string{"ROLE_ADMIN"})
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	// Flip one byte inside the subject value so the payload stays valid JSON
	// but no longer matches the MAC.
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	idx := strings.Index(string(payload), "alice")
	require.GreaterOrEqual(t, idx, 0)
	payload[idx] = 'b'
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = codec.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_WrongKeyFailsBadSignature(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("another-secret-0123456789-0123456789", time.Hour)
	require.NoError(t, err)

	signed, err := other.Mint("alice", []string{"ROLE_USER"})
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_ExpiredFailsExpired(t *testing.T) {
	codec := newTestCodec(t)

	// Sign an already-expired token with the same key so the signature is
	// valid and only the expiry check can fail.
	claims := Claims{
		Roles: []string{"ROLE_USER"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_GarbageFailsMalformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, tokenString := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := codec.Verify(tokenString)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", tokenString)
	}
}

func TestVerify_UnsignedAlgorithmFailsUnsupported(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractSubjectUnchecked(t *testing.T) {
	codec := newTestCodec(t)

	signed, err := codec.Mint("carol", []string{"ROLE_USER"})
	require.NoError(t, err)

	subject, err := codec.ExtractSubjectUnchecked(signed)
	require.NoError(t, err)
	assert.Equal(t, "carol", subject)
}

func TestExtractSubjectUnchecked_IgnoresExpiry(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dave",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	subject, err := codec.ExtractSubjectUnchecked(signed)
	require.NoError(t, err)
	assert.Equal(t, "dave", subject)

	// The full verify must still reject it.
	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestExtractSubjectUnchecked_Malformed(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.ExtractSubjectUnchecked("garbage")
	assert.ErrorIs(t, err, ErrMalformed)
}
