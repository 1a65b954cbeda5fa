package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"cfgpush/internal/cfgpush"
)

// testHeader marks TestEncryptor output so it never equals the plaintext.
var testHeader = []byte("CPENC\x00\x00\x00")

// TestEncryptor is a reversible, keyless Encryptor for tests and for the
// "test" encryption type. Unlock accepts only the passphrase given to Setup,
// when Setup was called.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	setup      bool
	encrypted  int
}

var _ cfgpush.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	e.setup = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	e.mu.Lock()
	e.encrypted++
	e.mu.Unlock()
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (cfgpush.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setup && passphrase != e.passphrase {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// Encrypted returns how many streams have been encrypted.
func (e *TestEncryptor) Encrypted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encrypted
}

// TestDecryptionContext strips the header written by TestEncryptor.
type TestDecryptionContext struct{}

var _ cfgpush.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
