package cfgpush

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Decompress reads a whole gzip stream and decodes it as ISO-8859-1 text.
// Network devices emit their configuration in Latin-1, so every byte maps to
// exactly one rune and decoding never fails.
func Decompress(r io.Reader) (string, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, transform.NewReader(zr, charmap.ISO8859_1.NewDecoder())); err != nil {
		return "", fmt.Errorf("decompressing: %w", err)
	}
	return buf.String(), nil
}
