package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/docstore"
	"github.com/invisicipher/secure-image-backend/interfaces"
	"github.com/invisicipher/secure-image-backend/ledger"
)

// fakeTransform is an invertible transform so store and retrieve round-trip
// in tests without the sidecar services.
type fakeTransform struct {
	embedErr, encryptErr, decryptErr, revealErr error
}

func (f *fakeTransform) Embed(ctx context.Context, cover, secret []byte) ([]byte, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := append([]byte("stego:"), secret...)
	return out, nil
}

func (f *fakeTransform) Reveal(ctx context.Context, stego []byte) ([]byte, error) {
	if f.revealErr != nil {
		return nil, f.revealErr
	}
	return stego[len("stego:"):], nil
}

func (f *fakeTransform) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if f.encryptErr != nil {
		return nil, f.encryptErr
	}
	return append([]byte("enc:"), plaintext...), nil
}

func (f *fakeTransform) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return ciphertext[len("enc:"):], nil
}

// memContent is an in-memory content store keyed by sha256 hex.
type memContent struct {
	data      map[interfaces.CID][]byte
	uploadErr error
}

func newMemContent() *memContent {
	return &memContent{data: make(map[interfaces.CID][]byte)}
}

func (m *memContent) Upload(ctx context.Context, data []byte) (interfaces.CID, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	sum := sha256.Sum256(data)
	cid := interfaces.CID(hex.EncodeToString(sum[:]))
	m.data[cid] = data
	return cid, nil
}

func (m *memContent) Download(ctx context.Context, cid interfaces.CID) ([]byte, error) {
	data, ok := m.data[cid]
	if !ok {
		return nil, interfaces.ErrArtifactNotFound
	}
	return data, nil
}

func (m *memContent) Available(ctx context.Context) bool { return true }
func (m *memContent) Name() string                       { return "mem" }

// memCache is an in-memory artifact cache.
type memCache struct {
	data   map[interfaces.CID][]byte
	putErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[interfaces.CID][]byte)}
}

func (m *memCache) Put(cid interfaces.CID, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.data[cid] = data
	return nil
}

func (m *memCache) Get(cid interfaces.CID) ([]byte, error) {
	data, ok := m.data[cid]
	if !ok {
		return nil, interfaces.ErrArtifactNotFound
	}
	return data, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addr(t *testing.T, hex string) interfaces.WalletAddress {
	t.Helper()
	a, err := interfaces.NewWalletAddressFromHex(hex)
	require.NoError(t, err)
	return a
}

type fixture struct {
	orch      *Orchestrator
	content   *memContent
	cache     *memCache
	transform *fakeTransform
	ledger    *ledger.MockRecordLedger
	index     *docstore.MemoryRecordIndex
	admin     interfaces.Claims
	patient   interfaces.Claims
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		content:   newMemContent(),
		cache:     newMemCache(),
		transform: &fakeTransform{},
		ledger:    new(ledger.MockRecordLedger),
		index:     docstore.NewMemoryRecordIndex(),
	}
	f.orch = NewOrchestrator(f.content, f.transform, f.cache, f.ledger, f.index, testLogger())
	f.admin = interfaces.Claims{
		Address: addr(t, "0xadadadadadadadadadadadadadadadadadadadad"),
		Role:    interfaces.RoleAdmin,
	}
	f.patient = interfaces.Claims{
		Address: addr(t, "0x1111111111111111111111111111111111111111"),
		Role:    interfaces.RolePatient,
	}
	return f
}

func TestStore_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt := interfaces.AnchorReceipt{TxHash: "0xfeed", BlockNumber: 42}
	f.ledger.On("AnchorPointer", mock.Anything, f.patient.Address, mock.Anything).Return(receipt, nil)

	result, err := f.orch.Store(ctx, f.admin.Address, f.patient.Address, []byte("cover"), []byte("secret"))
	require.NoError(t, err)
	require.NotEmpty(t, result.CID)
	assert.Equal(t, receipt, result.Receipt)

	// Ciphertext is on the content store, stego in the cache under the
	// ciphertext CID.
	ciphertext, err := f.content.Download(ctx, result.CID)
	require.NoError(t, err)
	assert.Equal(t, []byte("enc:stego:secret"), ciphertext)

	stego, err := f.cache.Get(result.CID)
	require.NoError(t, err)
	assert.Equal(t, []byte("stego:secret"), stego)

	// Record indexed with the receipt fields.
	record, found, err := f.index.ByCID(ctx, result.CID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, f.patient.Address, record.PatientAddress)
	assert.Equal(t, f.admin.Address, record.UploadedBy)
	assert.Equal(t, uint64(42), record.BlockNumber)
	assert.Equal(t, "0xfeed", record.TxHash)

	f.ledger.AssertExpectations(t)
}

func TestStore_EmptyInputs(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Store(context.Background(), f.admin.Address, f.patient.Address, nil, []byte("secret"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStore_EmbedFailure(t *testing.T) {
	f := newFixture(t)
	f.transform.embedErr = errors.New("stego service down")

	_, err := f.orch.Store(context.Background(), f.admin.Address, f.patient.Address, []byte("c"), []byte("s"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
	assert.Equal(t, StageEmbed, apperr.StageOf(err))
	assert.Empty(t, f.content.data)
	f.ledger.AssertNotCalled(t, "AnchorPointer", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.content.uploadErr = errors.New("node unreachable")

	_, err := f.orch.Store(context.Background(), f.admin.Address, f.patient.Address, []byte("c"), []byte("s"))
	require.Error(t, err)
	assert.Equal(t, StageUpload, apperr.StageOf(err))
	assert.Empty(t, f.cache.data)
	f.ledger.AssertNotCalled(t, "AnchorPointer", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_AnchorFailure_LeavesOrphan(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("AnchorPointer", mock.Anything, f.patient.Address, mock.Anything).
		Return(interfaces.AnchorReceipt{}, errors.New("tx reverted"))

	_, err := f.orch.Store(context.Background(), f.admin.Address, f.patient.Address, []byte("c"), []byte("s"))
	require.Error(t, err)
	assert.Equal(t, StageAnchor, apperr.StageOf(err))

	// Earlier stages are not rolled back.
	assert.Len(t, f.content.data, 1)
	assert.Len(t, f.cache.data, 1)

	// And nothing was indexed.
	records, err := f.index.ByPatient(context.Background(), f.patient.Address)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRetrieve_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.On("AnchorPointer", mock.Anything, f.patient.Address, mock.Anything).
		Return(interfaces.AnchorReceipt{TxHash: "0x1", BlockNumber: 7}, nil)

	secret := []byte("hidden scan")
	result, err := f.orch.Store(ctx, f.admin.Address, f.patient.Address, []byte("cover"), secret)
	require.NoError(t, err)

	got, err := f.orch.Retrieve(ctx, f.patient, result.CID)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	// Admin can retrieve the same record.
	got, err = f.orch.Retrieve(ctx, f.admin, result.CID)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestRetrieve_PatientCannotAccessOthersRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := addr(t, "0x2222222222222222222222222222222222222222")
	f.ledger.On("AnchorPointer", mock.Anything, other, mock.Anything).
		Return(interfaces.AnchorReceipt{}, nil)

	result, err := f.orch.Store(ctx, f.admin.Address, other, []byte("cover"), []byte("secret"))
	require.NoError(t, err)

	_, err = f.orch.Retrieve(ctx, f.patient, result.CID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestRetrieve_LedgerFallbackAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Content exists but the local index knows nothing about it, as after a
	// restart with a fresh database.
	ciphertext := []byte("enc:stego:restored")
	cid, err := f.content.Upload(ctx, ciphertext)
	require.NoError(t, err)
	require.NoError(t, f.cache.Put(cid, []byte("stego:restored")))

	f.ledger.On("ReadPointers", mock.Anything, f.patient.Address).Return([]interfaces.CID{cid}, nil)

	got, err := f.orch.Retrieve(ctx, f.patient, cid)
	require.NoError(t, err)
	assert.Equal(t, []byte("restored"), got)
	f.ledger.AssertExpectations(t)
}

func TestRetrieve_MissingCachedStegoIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ciphertext := []byte("enc:stego:lost")
	cid, err := f.content.Upload(ctx, ciphertext)
	require.NoError(t, err)

	_, err = f.orch.Retrieve(ctx, f.admin, cid)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRetrieve_UnknownCID(t *testing.T) {
	f := newFixture(t)
	sum := sha256.Sum256([]byte("nothing here"))
	cid := interfaces.CID(hex.EncodeToString(sum[:]))

	_, err := f.orch.Retrieve(context.Background(), f.admin, cid)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRetrieve_InvalidCID(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Retrieve(context.Background(), f.admin, "not-a-cid")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRecords_PatientScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := addr(t, "0x3333333333333333333333333333333333333333")
	_, err := f.orch.Records(ctx, f.patient, other)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	// Admin can list anyone.
	f.ledger.On("ReadPointers", mock.Anything, other).Return([]interfaces.CID{}, nil)
	records, err := f.orch.Records(ctx, f.admin, other)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecords_LedgerFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cid := interfaces.CID("QmLedgerOnlyCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX1")
	f.ledger.On("ReadPointers", mock.Anything, f.patient.Address).Return([]interfaces.CID{cid}, nil)

	records, err := f.orch.Records(ctx, f.patient, f.patient.Address)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, cid, records[0].CID)
	assert.Equal(t, f.patient.Address, records[0].PatientAddress)
}
