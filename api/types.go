// Package api defines the request and response shapes of the HTTP API.
// Every endpoint responds with the same envelope: a success flag, a human
// readable message, and an operation-specific data payload.
package api

import "github.com/invisicipher/secure-image-backend/interfaces"

// Response is the envelope wrapping every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RegisterRequest creates a user profile bound to a wallet address.
type RegisterRequest struct {
	Address     string                 `json:"address"`
	Username    string                 `json:"username"`
	Role        string                 `json:"role"`
	Permissions interfaces.Permissions `json:"permissions"`
}

// RegisterData reports the registration outcome. Anchored is false when the
// profile was persisted but the ledger anchor failed; AnchorError then
// carries the cause.
type RegisterData struct {
	Address     string `json:"address"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	Anchored    bool   `json:"anchored"`
	TxHash      string `json:"txHash,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	AnchorError string `json:"anchorError,omitempty"`
}

// ChallengeData carries a freshly issued sign-in challenge.
type ChallengeData struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// AuthenticateRequest completes the challenge-response flow.
type AuthenticateRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// AuthenticateData carries the issued bearer token and the authenticated
// identity.
type AuthenticateData struct {
	Token       string                 `json:"token"`
	Address     string                 `json:"address"`
	Username    string                 `json:"username"`
	Role        string                 `json:"role"`
	Permissions interfaces.Permissions `json:"permissions"`
}

// CheckUserData reports whether an address is registered.
type CheckUserData struct {
	Registered bool   `json:"registered"`
	Role       string `json:"role,omitempty"`
}

// StoreData reports a completed store pipeline run.
type StoreData struct {
	CID         string `json:"cid"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// RecordData is one pipeline record in a listing. Ledger-fallback entries
// have only the CID and patient address set.
type RecordData struct {
	CID            string `json:"cid"`
	PatientAddress string `json:"patientAddress"`
	UploadedBy     string `json:"uploadedBy,omitempty"`
	BlockNumber    uint64 `json:"blockNumber,omitempty"`
	TxHash         string `json:"txHash,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}
