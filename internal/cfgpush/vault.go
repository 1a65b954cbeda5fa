package cfgpush

import "io"

// Vault stores archived copies of pushed configurations.
// Keys are slash-separated ("<identifier>/<content key>") and backends map
// them onto their own namespace.
type Vault interface {
	// PutContent stores content under key.
	// The operation is idempotent: storing the same key multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutContent(key string, r io.Reader, size int64) error

	// GetContent retrieves content by key and writes it to w.
	GetContent(key string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
