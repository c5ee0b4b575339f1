package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// stegoFilePattern names cached stego artifacts after the CID of their
// encrypted counterpart. Retrieval looks the file up under the same name.
const stegoFilePattern = "stego_%s.png"

// FileArtifactCache implements interfaces.ArtifactCache on a local
// directory. Entries are plain files; nothing binds the bytes to the CID
// they are stored under.
type FileArtifactCache struct {
	baseDir string
	log     *slog.Logger
}

// NewFileArtifactCache creates an artifact cache rooted at baseDir,
// creating the directory if needed.
func NewFileArtifactCache(baseDir string, log *slog.Logger) (*FileArtifactCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileArtifactCache{baseDir: baseDir, log: log}, nil
}

// Put stores data under the CID, overwriting any prior entry.
func (c *FileArtifactCache) Put(cid interfaces.CID, data []byte) error {
	p := c.pathFor(cid)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write cached artifact: %w", err)
	}
	c.log.Debug("Cached stego artifact",
		slog.String("cid", string(cid)),
		slog.Int("size", len(data)))
	return nil
}

// Get returns the cached bytes for a CID, or ErrArtifactNotFound if no
// entry exists.
func (c *FileArtifactCache) Get(cid interfaces.CID) ([]byte, error) {
	data, err := os.ReadFile(c.pathFor(cid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read cached artifact: %w", err)
	}
	return data, nil
}

func (c *FileArtifactCache) pathFor(cid interfaces.CID) string {
	// filepath.Base strips any path components a malformed CID might carry.
	return filepath.Join(c.baseDir, filepath.Base(fmt.Sprintf(stegoFilePattern, cid)))
}
