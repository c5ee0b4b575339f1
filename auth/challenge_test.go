package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

func testAddr(t *testing.T, hex string) interfaces.WalletAddress {
	t.Helper()
	addr, err := interfaces.NewWalletAddressFromHex(hex)
	require.NoError(t, err)
	return addr
}

func TestChallengeStore_TakeIsDestructive(t *testing.T) {
	store := NewMemoryChallengeStore(0)
	addr := testAddr(t, "0x1111111111111111111111111111111111111111")

	store.Put(addr, "challenge-1")

	msg, ok := store.Take(addr)
	require.True(t, ok)
	assert.Equal(t, "challenge-1", msg)

	_, ok = store.Take(addr)
	assert.False(t, ok)
}

func TestChallengeStore_LastWriterWins(t *testing.T) {
	store := NewMemoryChallengeStore(0)
	addr := testAddr(t, "0x1111111111111111111111111111111111111111")

	store.Put(addr, "first")
	store.Put(addr, "second")

	msg, ok := store.Take(addr)
	require.True(t, ok)
	assert.Equal(t, "second", msg)
}

func TestChallengeStore_Expiry(t *testing.T) {
	store := NewMemoryChallengeStore(5 * time.Minute)
	addr := testAddr(t, "0x2222222222222222222222222222222222222222")

	base := time.Now()
	store.now = func() time.Time { return base }
	store.Put(addr, "stale")

	store.now = func() time.Time { return base.Add(6 * time.Minute) }
	_, ok := store.Take(addr)
	assert.False(t, ok)

	// An expired Take still removes the entry.
	store.now = func() time.Time { return base }
	_, ok = store.Take(addr)
	assert.False(t, ok)
}

func TestChallengeStore_AddressIsolation(t *testing.T) {
	store := NewMemoryChallengeStore(0)
	a := testAddr(t, "0x3333333333333333333333333333333333333333")
	b := testAddr(t, "0x4444444444444444444444444444444444444444")

	store.Put(a, "for-a")

	_, ok := store.Take(b)
	assert.False(t, ok)

	msg, ok := store.Take(a)
	require.True(t, ok)
	assert.Equal(t, "for-a", msg)
}

func TestIssuer_MessageFormat(t *testing.T) {
	store := NewMemoryChallengeStore(0)
	issuer := NewIssuer(store, "")
	addr := testAddr(t, "0x5555555555555555555555555555555555555555")

	msg, err := issuer.Issue(addr)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^Authenticate with InvisiCipher: \d+-\d+$`), msg)

	stored, ok := issuer.Consume(addr)
	require.True(t, ok)
	assert.Equal(t, msg, stored)
}

func TestIssuer_FreshChallengeReplacesPrior(t *testing.T) {
	store := NewMemoryChallengeStore(0)
	issuer := NewIssuer(store, "TestApp")
	addr := testAddr(t, "0x6666666666666666666666666666666666666666")

	first, err := issuer.Issue(addr)
	require.NoError(t, err)
	second, err := issuer.Issue(addr)
	require.NoError(t, err)

	stored, ok := issuer.Consume(addr)
	require.True(t, ok)
	assert.Equal(t, second, stored)
	// The first challenge is gone even though it was never consumed.
	assert.NotEqual(t, first, stored)
}
