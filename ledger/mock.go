package ledger

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// MockCredentialLedger implements interfaces.CredentialLedger for testing.
type MockCredentialLedger struct {
	mock.Mock
}

func (m *MockCredentialLedger) AnchorCredential(ctx context.Context, user interfaces.WalletAddress, username string, role interfaces.Role, permissions interfaces.Permissions) (interfaces.AnchorReceipt, error) {
	args := m.Called(ctx, user, username, role, permissions)
	return args.Get(0).(interfaces.AnchorReceipt), args.Error(1)
}

func (m *MockCredentialLedger) ReadCredentialHash(ctx context.Context, user interfaces.WalletAddress) ([32]byte, bool, error) {
	args := m.Called(ctx, user)
	return args.Get(0).([32]byte), args.Bool(1), args.Error(2)
}

// MockRecordLedger implements interfaces.RecordLedger for testing.
type MockRecordLedger struct {
	mock.Mock
}

func (m *MockRecordLedger) AnchorPointer(ctx context.Context, patient interfaces.WalletAddress, cid interfaces.CID) (interfaces.AnchorReceipt, error) {
	args := m.Called(ctx, patient, cid)
	return args.Get(0).(interfaces.AnchorReceipt), args.Error(1)
}

func (m *MockRecordLedger) ReadPointers(ctx context.Context, patient interfaces.WalletAddress) ([]interfaces.CID, error) {
	args := m.Called(ctx, patient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.CID), args.Error(1)
}
