package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrProfileExists is returned by IdentityStore.Create for a duplicate address.
	ErrProfileExists = errors.New("profile already exists")

	// ErrProfileNotFound is returned by IdentityStore.Get for an unknown address.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrArtifactNotFound is returned by ArtifactCache.Get when no entry
	// exists for the CID.
	ErrArtifactNotFound = errors.New("cached artifact not found")

	// ErrContentUnavailable is returned by content backends that cannot be
	// reached.
	ErrContentUnavailable = errors.New("content backend unavailable")
)

// IdentityStore is the document store holding user profiles, keyed by
// wallet address. It is the source of truth for profile fields.
type IdentityStore interface {
	// Create persists a new profile. Returns ErrProfileExists if the
	// address is already registered.
	Create(ctx context.Context, profile Profile) error

	// Get loads the profile for an address. Returns ErrProfileNotFound if
	// the address is not registered.
	Get(ctx context.Context, address WalletAddress) (Profile, error)
}

// ChallengeStore holds single-use sign-in challenges keyed by address.
// Put replaces any prior unconsumed challenge; Take removes atomically.
type ChallengeStore interface {
	Put(address WalletAddress, message string)
	Take(address WalletAddress) (string, bool)
}

// CredentialLedger anchors and reads credential commitments on the ledger.
type CredentialLedger interface {
	// AnchorCredential writes the commitment for user, signed by the
	// service operator identity, and waits for inclusion.
	AnchorCredential(ctx context.Context, user WalletAddress, username string, role Role, permissions Permissions) (AnchorReceipt, error)

	// ReadCredentialHash returns the anchored commitment for the address.
	// An absent record and the all-zero sentinel both yield found=false.
	ReadCredentialHash(ctx context.Context, user WalletAddress) (hash [32]byte, found bool, err error)
}

// RecordLedger anchors and reads content pointers on the ledger.
type RecordLedger interface {
	// AnchorPointer records cid against the patient address and waits for
	// inclusion.
	AnchorPointer(ctx context.Context, patient WalletAddress, cid CID) (AnchorReceipt, error)

	// ReadPointers returns all CIDs anchored against the patient address.
	ReadPointers(ctx context.Context, patient WalletAddress) ([]CID, error)
}

// ContentStore is the content-addressed network holding encrypted artifacts.
type ContentStore interface {
	// Upload pushes data and returns its content identifier.
	Upload(ctx context.Context, data []byte) (CID, error)

	// Download retrieves the content for a CID.
	Download(ctx context.Context, cid CID) ([]byte, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string
}

// TransformService is the opaque embed/reveal/encrypt/decrypt collaborator.
// Each operation takes and returns binary image payloads.
type TransformService interface {
	Embed(ctx context.Context, cover, secret []byte) ([]byte, error)
	Reveal(ctx context.Context, stego []byte) ([]byte, error)
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ArtifactCache bridges the store and retrieve pipelines across requests by
// retaining the pre-encryption stego artifact keyed by its encrypted
// counterpart's CID. The cache does not bind the bytes to the CID; a
// substituted entry is undetectable at this layer.
type ArtifactCache interface {
	Put(cid CID, data []byte) error
	Get(cid CID) ([]byte, error)
}

// RecordIndex is the local index of pipeline records, consulted before
// falling back to ledger reads.
type RecordIndex interface {
	Insert(ctx context.Context, record PipelineRecord) error
	ByPatient(ctx context.Context, patient WalletAddress) ([]PipelineRecord, error)
	ByCID(ctx context.Context, cid CID) (PipelineRecord, bool, error)
}

// TokenCodec issues and verifies bearer tokens.
type TokenCodec interface {
	Issue(claims Claims) (string, error)
	Verify(token string) (Claims, error)
}
