package docstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testAddress(t *testing.T, hex string) interfaces.WalletAddress {
	t.Helper()
	addr, err := interfaces.NewWalletAddressFromHex(hex)
	require.NoError(t, err)
	return addr
}

func TestProfiles_CreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	addr := testAddress(t, "0x1111111111111111111111111111111111111111")
	profile := interfaces.Profile{
		Address:  addr,
		Username: "alice",
		Role:     interfaces.RoleAdmin,
		Permissions: interfaces.Permissions{
			CanRead: true, CanWrite: true, CanDelete: false,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, db.Create(ctx, profile))

	got, err := db.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, profile.Address, got.Address)
	assert.Equal(t, profile.Username, got.Username)
	assert.Equal(t, profile.Role, got.Role)
	assert.Equal(t, profile.Permissions, got.Permissions)
	assert.True(t, profile.CreatedAt.Equal(got.CreatedAt))
}

func TestProfiles_DuplicateAddress(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	profile := interfaces.Profile{
		Address:   testAddress(t, "0x2222222222222222222222222222222222222222"),
		Username:  "bob",
		Role:      interfaces.RolePatient,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(ctx, profile))

	profile.Username = "mallory"
	err := db.Create(ctx, profile)
	assert.ErrorIs(t, err, interfaces.ErrProfileExists)

	// Original row untouched
	got, err := db.Get(ctx, profile.Address)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
}

func TestProfiles_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), testAddress(t, "0x3333333333333333333333333333333333333333"))
	assert.ErrorIs(t, err, interfaces.ErrProfileNotFound)
}

func TestRecords_InsertAndLookup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	patient := testAddress(t, "0x4444444444444444444444444444444444444444")
	admin := testAddress(t, "0x5555555555555555555555555555555555555555")

	records := []interfaces.PipelineRecord{
		{
			CID:            "QmFirstCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX1",
			PatientAddress: patient,
			UploadedBy:     admin,
			BlockNumber:    100,
			TxHash:         "0xaaa",
			CreatedAt:      time.Now().Add(-time.Hour).UTC(),
		},
		{
			CID:            "QmSecondCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX2",
			PatientAddress: patient,
			UploadedBy:     admin,
			BlockNumber:    101,
			TxHash:         "0xbbb",
			CreatedAt:      time.Now().UTC(),
		},
	}
	for _, r := range records {
		require.NoError(t, db.Insert(ctx, r))
	}

	got, err := db.ByPatient(ctx, patient)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// newest first
	assert.Equal(t, records[1].CID, got[0].CID)
	assert.Equal(t, records[0].CID, got[1].CID)

	record, found, err := db.ByCID(ctx, records[0].CID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, patient, record.PatientAddress)
	assert.Equal(t, admin, record.UploadedBy)
	assert.Equal(t, uint64(100), record.BlockNumber)

	_, found, err = db.ByCID(ctx, "QmUnknownCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecords_ByPatientIsolation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	patientA := testAddress(t, "0x6666666666666666666666666666666666666666")
	patientB := testAddress(t, "0x7777777777777777777777777777777777777777")

	require.NoError(t, db.Insert(ctx, interfaces.PipelineRecord{
		CID:            "QmPatientACidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX4",
		PatientAddress: patientA,
		UploadedBy:     patientA,
		CreatedAt:      time.Now(),
	}))

	got, err := db.ByPatient(ctx, patientB)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStores_MatchSQLiteBehavior(t *testing.T) {
	ctx := context.Background()

	ids := NewMemoryIdentityStore()
	addr := testAddress(t, "0x8888888888888888888888888888888888888888")
	profile := interfaces.Profile{Address: addr, Username: "carol", Role: interfaces.RolePatient}

	require.NoError(t, ids.Create(ctx, profile))
	assert.ErrorIs(t, ids.Create(ctx, profile), interfaces.ErrProfileExists)

	got, err := ids.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Username)

	idx := NewMemoryRecordIndex()
	record := interfaces.PipelineRecord{CID: "QmMemCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX5", PatientAddress: addr}
	require.NoError(t, idx.Insert(ctx, record))

	_, found, err := idx.ByCID(ctx, record.CID)
	require.NoError(t, err)
	assert.True(t, found)
}
