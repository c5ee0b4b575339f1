package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	data := []byte("stego payload bytes")
	cid, err := store.Upload(context.Background(), data)
	require.NoError(t, err)

	// CID is the sha256 hex of the content
	sum := sha256.Sum256(data)
	assert.Equal(t, interfaces.CID(hex.EncodeToString(sum[:])), cid)

	got, err := store.Download(context.Background(), cid)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_NotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), interfaces.CID("deadbeef"))
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)
}

func TestFileStore_Available(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)

	assert.True(t, store.Available(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, store.Available(context.Background()))
}

func TestFileArtifactCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileArtifactCache(dir, testLogger())
	require.NoError(t, err)

	cid := interfaces.CID("QmTestCidForStegoArtifactXXXXXXXXXXXXXXXXXXXXX1")
	data := []byte("pre-encryption stego image")

	_, err = cache.Get(cid)
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)

	require.NoError(t, cache.Put(cid, data))

	got, err := cache.Get(cid)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// stored under the stego_<cid>.png naming scheme
	_, err = os.Stat(filepath.Join(dir, "stego_"+string(cid)+".png"))
	assert.NoError(t, err)
}

func TestFileArtifactCache_Overwrite(t *testing.T) {
	cache, err := NewFileArtifactCache(t.TempDir(), testLogger())
	require.NoError(t, err)

	cid := interfaces.CID("QmOverwriteCidXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX1")
	require.NoError(t, cache.Put(cid, []byte("first")))
	require.NoError(t, cache.Put(cid, []byte("second")))

	got, err := cache.Get(cid)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestFactory_SchemeDispatch(t *testing.T) {
	factory := NewFactory(testLogger())

	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{name: "file scheme", uri: "file://" + t.TempDir(), wantErr: false},
		{name: "ipfs scheme", uri: "ipfs://localhost:5001", wantErr: false},
		{name: "unsupported scheme", uri: "ftp://example.com", wantErr: true},
		{name: "empty file path", uri: "file://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.ContentStoreFor(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, store)
			}
		})
	}
}
