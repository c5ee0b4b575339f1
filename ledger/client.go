// Package ledger provides clients for the two on-chain contracts: the
// credential chain anchoring user commitments and the record chain anchoring
// content pointers against patient addresses.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/invisicipher/secure-image-backend/auth"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

// ErrNoTransactOpts is returned when a write is attempted without first
// setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// credentialChainABI matches the UserCredentialChain contract. The contract
// recomputes keccak256(abi.encodePacked(username, role, permissions)) and
// stores it as the record hash.
const credentialChainABI = `[
	{"type":"function","name":"storeCredential","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"username","type":"string"},{"name":"role","type":"string"},{"name":"permissions","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"getUserRecord","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"username","type":"string"},{"name":"role","type":"string"},{"name":"permissions","type":"bytes"},{"name":"recordHash","type":"bytes32"}]}
]`

// recordChainABI matches the ImageRecordChain contract mapping patient
// addresses to lists of content identifiers.
const recordChainABI = `[
	{"type":"function","name":"storeIPFSHash","stateMutability":"nonpayable","inputs":[{"name":"patient","type":"address"},{"name":"cid","type":"string"}],"outputs":[]},
	{"type":"function","name":"getIPFSHashes","stateMutability":"view","inputs":[{"name":"patient","type":"address"}],"outputs":[{"name":"","type":"string[]"}]}
]`

func parseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		// The ABIs are compile-time constants; a parse failure is a bug.
		panic(err)
	}
	return parsed
}

var (
	parsedCredentialABI = parseABI(credentialChainABI)
	parsedRecordABI     = parseABI(recordChainABI)
)

// CredentialLedgerClient implements interfaces.CredentialLedger against the
// UserCredentialChain contract.
type CredentialLedgerClient struct {
	contract *bind.BoundContract
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewCredentialLedgerClient creates a client for the contract at the given
// address. It requires a ContractBackend for reads and a DeployBackend to
// wait for transaction inclusion.
func NewCredentialLedgerClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) *CredentialLedgerClient {
	return &CredentialLedgerClient{
		contract: bind.NewBoundContract(address, parsedCredentialABI, client, client, client),
		backend:  backend,
		address:  address,
	}
}

// SetTransactOpts sets the transaction options required for writes. This
// must be called before AnchorCredential.
func (c *CredentialLedgerClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// AnchorCredential submits a storeCredential transaction and waits for it to
// be mined. Gas is estimated by the binding layer when not set on the
// transact options. The returned receipt carries the transaction hash and
// the block number of inclusion.
func (c *CredentialLedgerClient) AnchorCredential(ctx context.Context, user interfaces.WalletAddress, username string, role interfaces.Role, permissions interfaces.Permissions) (interfaces.AnchorReceipt, error) {
	if c.auth == nil {
		return interfaces.AnchorReceipt{}, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx

	permBytes := auth.PermissionsBytes(permissions)
	tx, err := c.contract.Transact(&opts, "storeCredential", common.Address(user), username, string(role), permBytes)
	if err != nil {
		return interfaces.AnchorReceipt{}, fmt.Errorf("storeCredential transaction failed: %w", err)
	}

	return c.waitReceipt(ctx, tx)
}

// ReadCredentialHash reads the anchored commitment for the address. An
// absent record and the contract's all-zero sentinel are both reported as
// found=false.
func (c *CredentialLedgerClient) ReadCredentialHash(ctx context.Context, user interfaces.WalletAddress) ([32]byte, bool, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.contract.Call(opts, &out, "getUserRecord", common.Address(user)); err != nil {
		return [32]byte{}, false, fmt.Errorf("getUserRecord call failed: %w", err)
	}

	hash := *abi.ConvertType(out[3], new([32]byte)).(*[32]byte)
	if hash == [32]byte{} {
		return [32]byte{}, false, nil
	}
	return hash, true, nil
}

func (c *CredentialLedgerClient) waitReceipt(ctx context.Context, tx *types.Transaction) (interfaces.AnchorReceipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return interfaces.AnchorReceipt{}, fmt.Errorf("waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return interfaces.AnchorReceipt{}, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	return interfaces.AnchorReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// RecordLedgerClient implements interfaces.RecordLedger against the
// ImageRecordChain contract.
type RecordLedgerClient struct {
	contract *bind.BoundContract
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewRecordLedgerClient creates a client for the contract at the given address.
func NewRecordLedgerClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) *RecordLedgerClient {
	return &RecordLedgerClient{
		contract: bind.NewBoundContract(address, parsedRecordABI, client, client, client),
		backend:  backend,
		address:  address,
	}
}

// SetTransactOpts sets the transaction options required for writes.
func (c *RecordLedgerClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// AnchorPointer submits a storeIPFSHash transaction and waits for inclusion.
func (c *RecordLedgerClient) AnchorPointer(ctx context.Context, patient interfaces.WalletAddress, cid interfaces.CID) (interfaces.AnchorReceipt, error) {
	if c.auth == nil {
		return interfaces.AnchorReceipt{}, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "storeIPFSHash", common.Address(patient), string(cid))
	if err != nil {
		return interfaces.AnchorReceipt{}, fmt.Errorf("storeIPFSHash transaction failed: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return interfaces.AnchorReceipt{}, fmt.Errorf("waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return interfaces.AnchorReceipt{}, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	return interfaces.AnchorReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// ReadPointers returns all content identifiers anchored for the patient.
func (c *RecordLedgerClient) ReadPointers(ctx context.Context, patient interfaces.WalletAddress) ([]interfaces.CID, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.contract.Call(opts, &out, "getIPFSHashes", common.Address(patient)); err != nil {
		return nil, fmt.Errorf("getIPFSHashes call failed: %w", err)
	}

	raw := *abi.ConvertType(out[0], new([]string)).(*[]string)
	cids := make([]interfaces.CID, len(raw))
	for i, s := range raw {
		cids[i] = interfaces.CID(s)
	}
	return cids, nil
}
