package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// Factory creates content stores from URI strings.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a new factory instance that can create content stores.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// ContentStoreFor creates a content store from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - ipfs:// - IPFS node API
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) ContentStoreFor(locationURI string) (interfaces.ContentStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid content store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ipfs":
		return f.createIPFSStore(u)
	case "s3":
		return f.createS3Store(u)
	case "file":
		return f.createFileStore(u)
	default:
		return nil, fmt.Errorf("unsupported content store scheme: %s", u.Scheme)
	}
}

// createIPFSStore creates an IPFS content store.
// URI format: ipfs://host:port
func (f *Factory) createIPFSStore(u *url.URL) (interfaces.ContentStore, error) {
	f.log.Debug("Creating IPFS content store", slog.String("uri", u.String()))

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	return NewIPFSStore(host, port, f.log), nil
}

// createS3Store creates an S3 or S3-compatible content store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
// The store supports both public buckets (read-only) and authenticated access.
func (f *Factory) createS3Store(u *url.URL) (interfaces.ContentStore, error) {
	f.log.Debug("Creating S3 content store", slog.String("uri", u.String()))

	bucketName := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1" // Default region
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
		f.log.Debug("Using embedded credentials for write access")
	} else {
		f.log.Debug("No credentials provided, S3 bucket assumed to be public, write operations may fail")
	}

	return NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createFileStore creates a file system content store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (f *Factory) createFileStore(u *url.URL) (interfaces.ContentStore, error) {
	f.log.Debug("Creating file content store", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}

	return NewFileStore(path, f.log)
}
