// Package auth implements the wallet-based authentication protocol.
//
// Identity is established by proving control of an Ethereum key: the service
// issues a single-use challenge message, the wallet signs it with the
// standard personal-message scheme, and the service recovers the signer
// address from the signature. Registered-credential integrity is additionally
// cross-checked against an on-chain commitment: the Keccak-256 hash of the
// profile's packed (username, role, permissions) fields must equal the value
// anchored on the ledger at registration time.
//
// The package contains four pieces:
//
//   - MemoryChallengeStore / Issuer: per-address single-use challenges
//   - RecoverSigner: personal-message signature recovery
//   - CredentialHash: the deterministic credential commitment codec
//   - Service: the register/authenticate state machine composing the rest
package auth
