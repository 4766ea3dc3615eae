package pairing

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/flynn/noise"
	"github.com/opd-ai/airtunes/crypto"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// ErrInvalidIdentityKey indicates a configured identity key is malformed.
var ErrInvalidIdentityKey = errors.New("pairing: invalid identity key")

// Identity is the accessory's long-term X25519 key pair. The public half is
// sent to controllers in the second handshake message.
type Identity struct {
	Private [32]byte
	Public  [32]byte
}

// NewIdentity generates a random identity.
func NewIdentity() (*Identity, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	id, err := IdentityFromPrivate(priv)
	crypto.ZeroBytes(priv[:])
	return id, err
}

// IdentityFromPrivate derives the public key for priv.
func IdentityFromPrivate(priv [32]byte) (*Identity, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityKey, err)
	}

	id := &Identity{Private: priv}
	copy(id.Public[:], pub)
	return id, nil
}

// LoadIdentity decodes a hex-encoded private key. An empty string generates
// a fresh identity, which controllers will not recognise after a restart.
func LoadIdentity(hexKey string) (*Identity, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		logrus.WithFields(logrus.Fields{
			"function": "LoadIdentity",
		}).Warn("No identity key configured, generating an ephemeral one")
		return NewIdentity()
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityKey, err)
	}
	defer crypto.ZeroBytes(raw)
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: need 32 bytes, got %d", ErrInvalidIdentityKey, len(raw))
	}

	var priv [32]byte
	copy(priv[:], raw)
	defer crypto.ZeroBytes(priv[:])
	return IdentityFromPrivate(priv)
}

// PublicHex returns the public key in hex, for logs and client pinning.
func (id *Identity) PublicHex() string {
	return hex.EncodeToString(id.Public[:])
}

// Wipe clears the private key.
func (id *Identity) Wipe() {
	if id == nil {
		return
	}
	crypto.ZeroBytes(id.Private[:])
}

func (id *Identity) dhKey() noise.DHKey {
	key := noise.DHKey{
		Private: make([]byte, 32),
		Public:  make([]byte, 32),
	}
	copy(key.Private, id.Private[:])
	copy(key.Public, id.Public[:])
	return key
}
