package testutil

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"
)

// GzipLatin1 encodes text as ISO-8859-1 and gzips it, the way devices upload
// their configuration backups.
func GzipLatin1(t testing.TB, text string) []byte {
	t.Helper()

	raw, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encoding latin-1: %v", err)
	}
	return Gzip(t, []byte(raw))
}

// Gzip compresses data.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
