package auth

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

func TestCredentialHash_Deterministic(t *testing.T) {
	perms := interfaces.Permissions{CanRead: true, CanWrite: false, CanDelete: true}

	a := CredentialHash("alice", interfaces.RoleAdmin, perms)
	b := CredentialHash("alice", interfaces.RoleAdmin, perms)
	assert.Equal(t, a, b)
}

func TestCredentialHash_SensitiveToEveryField(t *testing.T) {
	perms := interfaces.Permissions{CanRead: true}
	base := CredentialHash("alice", interfaces.RoleAdmin, perms)

	assert.NotEqual(t, base, CredentialHash("alicf", interfaces.RoleAdmin, perms))
	assert.NotEqual(t, base, CredentialHash("alice", interfaces.RolePatient, perms))
	assert.NotEqual(t, base, CredentialHash("alice", interfaces.RoleAdmin, interfaces.Permissions{CanRead: true, CanWrite: true}))
}

func TestCredentialHash_PackedEncoding(t *testing.T) {
	perms := interfaces.Permissions{CanRead: true, CanWrite: true, CanDelete: false}

	// The commitment is Keccak-256 over username || role || permissionsJSON
	// with no delimiters, matching the contract's packed encoding.
	packed := append([]byte("alice"), []byte("admin")...)
	packed = append(packed, PermissionsBytes(perms)...)
	expected := [32]byte(crypto.Keccak256Hash(packed))

	assert.Equal(t, expected, CredentialHash("alice", interfaces.RoleAdmin, perms))
}

func TestPermissionsBytes_FixedFieldOrder(t *testing.T) {
	got := PermissionsBytes(interfaces.Permissions{CanRead: true, CanWrite: false, CanDelete: true})
	assert.Equal(t, `{"canRead":true,"canWrite":false,"canDelete":true}`, string(got))
}
