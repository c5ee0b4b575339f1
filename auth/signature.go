package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// personalMessagePrefix is the fixed prefix wallets prepend before hashing,
// followed by the decimal byte length of the message.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalMessageHash computes the Keccak-256 digest wallets sign for a
// personal message.
func PersonalMessageHash(message string) []byte {
	prefixed := fmt.Sprintf("%s%d%s", personalMessagePrefix, len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverSigner recovers the wallet address that produced signature over
// message using the personal-message scheme. The signature is the 65-byte
// hex-encoded (r, s, v) tuple as emitted by wallets, with v being 27 or 28.
//
// Every failure mode, from malformed encoding to an unrecoverable point, is
// reported as an auth-kind error so callers treat it as a normal failed
// authentication rather than aborting their flow.
func RecoverSigner(message, signature string) (interfaces.WalletAddress, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return interfaces.WalletAddress{}, apperr.Auth("malformed signature encoding", err)
	}
	if len(sig) != crypto.SignatureLength {
		return interfaces.WalletAddress{}, apperr.Auth(fmt.Sprintf("invalid signature length %d", len(sig)), nil)
	}

	// Wallets emit v as 27/28; recovery expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(PersonalMessageHash(message), sig)
	if err != nil {
		return interfaces.WalletAddress{}, apperr.Auth("failed to recover address from signature", err)
	}

	recovered := crypto.PubkeyToAddress(*pubkey)
	var addr interfaces.WalletAddress
	copy(addr[:], recovered.Bytes())
	return addr, nil
}
