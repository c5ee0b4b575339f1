package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// FileStore implements interfaces.ContentStore on the local file system,
// for development and testing. Content identifiers are the SHA-256 hash of
// the data in hex.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates a file-backed content store rooted at baseDir.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// Upload writes data under its SHA-256 hash and returns the hash as CID.
func (s *FileStore) Upload(ctx context.Context, data []byte) (interfaces.CID, error) {
	hash := sha256.Sum256(data)
	cid := interfaces.CID(hex.EncodeToString(hash[:]))

	path := filepath.Join(s.baseDir, string(cid))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return cid, fmt.Errorf("failed to write file: %w", err)
	}

	s.log.Debug("Stored content in file backend",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return cid, nil
}

// Download reads the content for a CID. Returns ErrArtifactNotFound if no
// file exists for it.
func (s *FileStore) Download(ctx context.Context, cid interfaces.CID) ([]byte, error) {
	path := filepath.Join(s.baseDir, filepath.Base(string(cid)))

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Available checks that the base directory exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	return err == nil
}

// Name returns a unique identifier for this backend.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}
