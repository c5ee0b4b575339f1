package auth

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// CredentialHash computes the deterministic credential commitment anchored on
// the ledger: Keccak-256 over the packed concatenation of the UTF-8 bytes of
// username, the UTF-8 bytes of role, and the JSON serialization of the
// permission set, with no length delimiters between fields. This matches the
// contract's abi.encodePacked(string, string, bytes) expectation.
//
// The permissions JSON byte sequence must be identical at registration and
// verification time: interfaces.Permissions has a fixed field order and
// encoding/json emits struct fields deterministically, so two logically
// identical permission sets always serialize to the same bytes. Do not swap
// the serialization for a map-based one.
func CredentialHash(username string, role interfaces.Role, permissions interfaces.Permissions) [32]byte {
	permJSON, err := json.Marshal(permissions)
	if err != nil {
		// A struct of three bools cannot fail to marshal.
		panic(err)
	}
	return [32]byte(crypto.Keccak256Hash([]byte(username), []byte(role), permJSON))
}

// PermissionsBytes returns the exact byte sequence of the permission set as
// used inside the commitment and in the ledger write.
func PermissionsBytes(permissions interfaces.Permissions) []byte {
	permJSON, err := json.Marshal(permissions)
	if err != nil {
		panic(err)
	}
	return permJSON
}
