package testutil

import "cfgpush/internal/encryption"

// NewTestEncryptor creates the keyless test encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
