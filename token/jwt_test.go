package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

func testClaims(t *testing.T) interfaces.Claims {
	t.Helper()
	addr, err := interfaces.NewWalletAddressFromHex("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	require.NoError(t, err)
	return interfaces.Claims{
		Address:  addr,
		Username: "alice",
		Role:     interfaces.RoleAdmin,
		Permissions: interfaces.Permissions{
			CanRead: true, CanWrite: true, CanDelete: true,
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec([]byte("test-master-secret"), 0)
	require.NoError(t, err)

	claims := testClaims(t)
	tokenString, err := codec.Issue(claims)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	got, err := codec.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestCodec_Expired(t *testing.T) {
	codec, err := NewCodec([]byte("test-master-secret"), time.Minute)
	require.NoError(t, err)

	tokenString, err := codec.Issue(testClaims(t))
	require.NoError(t, err)

	codec.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = codec.Verify(tokenString)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestCodec_WrongKey(t *testing.T) {
	codecA, err := NewCodec([]byte("secret-a"), time.Hour)
	require.NoError(t, err)
	codecB, err := NewCodec([]byte("secret-b"), time.Hour)
	require.NoError(t, err)

	tokenString, err := codecA.Issue(testClaims(t))
	require.NoError(t, err)

	_, err = codecB.Verify(tokenString)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestCodec_Garbage(t *testing.T) {
	codec, err := NewCodec([]byte("test-master-secret"), time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify("not.a.jwt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil, time.Hour)
	assert.Error(t, err)
}
