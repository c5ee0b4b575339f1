// Package interfaces defines the core types and collaborator contracts of the
// secure image service. It provides the contract between components without
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WalletAddress is a 20-byte Ethereum account address used as user identity.
// The canonical string form is lowercase hex with a 0x prefix.
type WalletAddress [20]byte

// NewWalletAddressFromHex parses and validates a wallet address. The input
// must be exactly 40 hex digits after an optional 0x prefix.
func NewWalletAddressFromHex(addr string) (WalletAddress, error) {
	clean := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(clean) != 40 {
		return WalletAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return WalletAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res WalletAddress
	copy(res[:], addrBytes)
	return res, nil
}

// String returns the canonical lowercase 0x-prefixed form.
func (addr WalletAddress) String() string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr WalletAddress) Bytes() []byte {
	return addr[:]
}

// Equal compares two wallet addresses.
func (addr WalletAddress) Equal(other WalletAddress) bool {
	return addr == other
}

// Role is the fixed access role assigned at registration.
type Role string

const (
	// RoleAdmin may run the store pipeline and read any patient's records.
	RoleAdmin Role = "admin"
	// RolePatient may read records anchored against their own address.
	RolePatient Role = "patient"
)

// Validate checks that the role is one of the two supported values.
func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RolePatient:
		return nil
	default:
		return fmt.Errorf("role must be either %q or %q", RoleAdmin, RolePatient)
	}
}

// Permissions is the per-user permission set.
//
// Field order is part of the credential commitment contract: the JSON
// serialization of this struct is hashed into the on-chain commitment, and
// encoding/json emits struct fields in declaration order. Reordering the
// fields changes every commitment and makes existing registrations
// unverifiable.
type Permissions struct {
	CanRead   bool `json:"canRead"`
	CanWrite  bool `json:"canWrite"`
	CanDelete bool `json:"canDelete"`
}

// Profile is a registered user identity. The document store owns it; the
// ledger holds only the credential commitment.
type Profile struct {
	Address     WalletAddress `json:"address"`
	Username    string        `json:"username"`
	Role        Role          `json:"role"`
	Permissions Permissions   `json:"permissions"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// CID is an IPFS content identifier of an encrypted artifact.
type CID string

// Validate performs the basic shape check used throughout the service.
// IPFS-style identifiers ("Qm", 46+ chars) and the 64-hex-digit identifiers
// of the local backends are both accepted.
func (c CID) Validate() error {
	if strings.HasPrefix(string(c), "Qm") && len(c) >= 46 {
		return nil
	}
	if len(c) == 64 {
		if _, err := hex.DecodeString(string(c)); err == nil {
			return nil
		}
	}
	return errors.New("invalid content identifier format")
}

// String returns the CID as a string.
func (c CID) String() string { return string(c) }

// AnchorReceipt reports a confirmed ledger write.
type AnchorReceipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// PipelineRecord is created at the end of a successful store pipeline and is
// immutable afterwards.
type PipelineRecord struct {
	CID            CID           `json:"cid"`
	PatientAddress WalletAddress `json:"patientAddress"`
	UploadedBy     WalletAddress `json:"uploadedBy"`
	BlockNumber    uint64        `json:"blockNumber"`
	TxHash         string        `json:"txHash"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Claims are the attributes embedded in a bearer token.
type Claims struct {
	Address     WalletAddress `json:"address"`
	Username    string        `json:"username"`
	Role        Role          `json:"role"`
	Permissions Permissions   `json:"permissions"`
}

// RegisterOutcome distinguishes the two success shapes of registration.
// Rejection is an error, not an outcome value.
type RegisterOutcome int

const (
	// RegisterAnchored means the profile was persisted and the credential
	// commitment was anchored on the ledger.
	RegisterAnchored RegisterOutcome = iota
	// RegisterPersistedOnly means the profile was persisted but the ledger
	// anchor failed; the registration is durable yet unverifiable until a
	// later anchor exists.
	RegisterPersistedOnly
)

// String returns the outcome name.
func (o RegisterOutcome) String() string {
	switch o {
	case RegisterAnchored:
		return "anchored"
	case RegisterPersistedOnly:
		return "persisted-only"
	default:
		return "unknown"
	}
}

// RegisterResult is the three-valued registration outcome: an error from
// Register means rejected; otherwise Outcome tells callers whether the
// anchor exists, and AnchorErr carries the underlying cause when it does not.
type RegisterResult struct {
	Outcome   RegisterOutcome
	Profile   Profile
	Receipt   *AnchorReceipt
	AnchorErr error
}
