package cfgpush

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NameDeriver maps an arrival's path to the repository identifier it is
// committed under.
//
// The device token is read from a fixed segment of the slash-separated path,
// so SegmentIndex has to match the depth of the deployment's watch root.
// With the default of 3, "/srv/ftp/switch01_core backup.gz" yields "switch01".
type NameDeriver struct {
	Extension    string
	SegmentIndex int
}

// NewNameDeriver creates a NameDeriver for archives with the given suffix.
func NewNameDeriver(extension string, segmentIndex int) *NameDeriver {
	return &NameDeriver{Extension: extension, SegmentIndex: segmentIndex}
}

// Derive returns the identifier for path. Paths that do not have a non-empty
// token at the configured segment return an error wrapping ErrMalformedName.
func (d *NameDeriver) Derive(path string) (string, error) {
	name := strings.TrimSuffix(filepath.ToSlash(path), d.Extension)

	segments := strings.Split(name, "/")
	if d.SegmentIndex < 0 || d.SegmentIndex >= len(segments) {
		return "", fmt.Errorf("%w: %q has %d path segments, need index %d", ErrMalformedName, path, len(segments), d.SegmentIndex)
	}

	fields := strings.Fields(segments[d.SegmentIndex])
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: segment %d of %q is empty", ErrMalformedName, d.SegmentIndex, path)
	}

	token := fields[0]
	// Device names may use either separator.
	if i := strings.IndexAny(token, "_-"); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty device token in %q", ErrMalformedName, path)
	}
	return token, nil
}
