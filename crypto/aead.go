package crypto

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NewAEAD returns the IETF ChaCha20-Poly1305 construction for a session key.
func NewAEAD(key [KeySize]byte) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305: %w", err)
	}
	return aead, nil
}

// NewCiphers builds the outbound and inbound AEADs for a set of session keys.
func NewCiphers(keys *SessionKeys) (seal, open cipher.AEAD, err error) {
	if keys == nil {
		return nil, nil, fmt.Errorf("nil session keys")
	}
	seal, err = NewAEAD(keys.EncryptKey)
	if err != nil {
		return nil, nil, err
	}
	open, err = NewAEAD(keys.DecryptKey)
	if err != nil {
		return nil, nil, err
	}
	return seal, open, nil
}
