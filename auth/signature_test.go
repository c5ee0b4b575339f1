package auth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// signMessage signs a personal message the way wallets do, returning the
// hex-encoded signature with v as 27/28.
func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(PersonalMessageHash(message), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return "0x" + hex.EncodeToString(sig)
}

func keyAddress(key *ecdsa.PrivateKey) interfaces.WalletAddress {
	var addr interfaces.WalletAddress
	copy(addr[:], crypto.PubkeyToAddress(key.PublicKey).Bytes())
	return addr
}

func TestRecoverSigner_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := "Authenticate with InvisiCipher: 123456-1700000000000"
	signature := signMessage(t, key, message)

	recovered, err := RecoverSigner(message, signature)
	require.NoError(t, err)
	assert.True(t, recovered.Equal(keyAddress(key)))
}

func TestRecoverSigner_WrongMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signature := signMessage(t, key, "original message")

	// Recovery over a different message yields a different address, never an
	// error.
	recovered, err := RecoverSigner("tampered message", signature)
	require.NoError(t, err)
	assert.False(t, recovered.Equal(keyAddress(key)))
}

func TestRecoverSigner_MalformedSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
	}{
		{name: "not hex", signature: "0xzzzz"},
		{name: "too short", signature: "0xdeadbeef"},
		{name: "empty", signature: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverSigner("message", tt.signature)
			require.Error(t, err)
			assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
		})
	}
}

func TestRecoverSigner_AcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := "raw recovery id"
	sig, err := crypto.Sign(PersonalMessageHash(message), key)
	require.NoError(t, err)

	// Without the +27 offset some clients emit.
	recovered, err := RecoverSigner(message, hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.True(t, recovered.Equal(keyAddress(key)))
}

func TestPersonalMessageHash_IncludesLength(t *testing.T) {
	// Same content, different lengths, must hash differently.
	a := PersonalMessageHash("ab")
	b := PersonalMessageHash("abc")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
