// Package storage provides the content-addressed backends holding encrypted
// artifacts, plus the temporary cache bridging the store and retrieve
// pipelines.
//
// Content backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - file:///var/lib/secure-image/content/
//   - s3://ACCESS:SECRET@bucket-name/prefix/?region=us-west-2
//
// The IPFS backend returns the network's own content identifiers; the file
// and S3 backends derive the identifier from the SHA-256 hash of the data,
// so either way the identifier is a deterministic function of content.
//
// The artifact cache is not content-addressed: it stores the pre-encryption
// stego artifact under a filename keyed by the CID of its encrypted
// counterpart. Nothing ties the cached bytes to that CID.
package storage
