package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// IPFSStore implements interfaces.ContentStore against an IPFS node's HTTP API.
type IPFSStore struct {
	shell *shell.Shell
	host  string
	port  string
	log   *slog.Logger
}

// NewIPFSStore creates a content store connected to the IPFS API at host:port.
func NewIPFSStore(host, port string, log *slog.Logger) *IPFSStore {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	return &IPFSStore{
		shell: shell.NewShell(apiURL),
		host:  host,
		port:  port,
		log:   log,
	}
}

// Upload adds data to IPFS and returns the content identifier assigned by
// the network. Returns ErrContentUnavailable if the node is not accessible.
func (s *IPFSStore) Upload(ctx context.Context, data []byte) (interfaces.CID, error) {
	start := time.Now()

	if !s.shell.IsUp() {
		s.log.Warn("IPFS node unavailable",
			slog.String("host", s.host),
			slog.String("port", s.port))
		return "", interfaces.ErrContentUnavailable
	}

	cid, err := s.shell.Add(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	s.log.Debug("Uploaded content to IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.CID(cid), nil
}

// Download retrieves the content for a CID. Returns ErrArtifactNotFound for
// unknown content and ErrContentUnavailable if the node is not accessible.
func (s *IPFSStore) Download(ctx context.Context, cid interfaces.CID) ([]byte, error) {
	start := time.Now()

	if !s.shell.IsUp() {
		s.log.Warn("IPFS node unavailable",
			slog.String("host", s.host),
			slog.String("port", s.port))
		return nil, interfaces.ErrContentUnavailable
	}

	reader, err := s.shell.Cat(fmt.Sprintf("/ipfs/%s", cid))
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "invalid path") {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	s.log.Debug("Downloaded content from IPFS",
		slog.String("cid", string(cid)),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Available checks if the IPFS node is accessible.
func (s *IPFSStore) Available(ctx context.Context) bool {
	return s.shell.IsUp()
}

// Name returns a unique identifier for this backend.
func (s *IPFSStore) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", s.host, s.port)
}
