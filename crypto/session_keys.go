package crypto

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a ChaCha20-Poly1305 key.
	KeySize = 32

	// NonceSize is the size of an IETF ChaCha20-Poly1305 nonce.
	NonceSize = 12

	// nonceCounterOffset is where the 64-bit counter sits inside the nonce.
	nonceCounterOffset = NonceSize - 8
)

// HKDF parameters used to expand a pairing secret into control channel keys.
const (
	controlSalt     = "Control-Salt"
	controlWriteKey = "Control-Write-Encryption-Key"
	controlReadKey  = "Control-Read-Encryption-Key"
)

// ErrEmptySecret is returned when key derivation is given no input secret.
var ErrEmptySecret = errors.New("empty shared secret")

// Role selects which side of the control channel a set of keys belongs to.
type Role uint8

const (
	// Accessory is the receiver side: it decrypts with the controller's
	// write key and encrypts with the controller's read key.
	Accessory Role = iota
	// Controller is the sender side.
	Controller
)

func (r Role) String() string {
	switch r {
	case Accessory:
		return "accessory"
	case Controller:
		return "controller"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// SessionKeys holds the symmetric key material and per-direction nonce
// counters for one control connection. The keys are owned by the pairing
// subsystem; the framing layer only advances the counters.
type SessionKeys struct {
	EncryptKey   [KeySize]byte
	DecryptKey   [KeySize]byte
	EncryptNonce uint64
	DecryptNonce uint64
}

// DeriveSessionKeys expands a shared secret into the two control channel
// keys with HKDF-SHA512. Both sides derive from the same secret and get
// mirrored keys: what the controller encrypts with, the accessory decrypts
// with.
func DeriveSessionKeys(secret []byte, role Role) (*SessionKeys, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	writeKey, err := expandKey(secret, controlWriteKey)
	if err != nil {
		return nil, err
	}
	readKey, err := expandKey(secret, controlReadKey)
	if err != nil {
		return nil, err
	}

	keys := &SessionKeys{}
	switch role {
	case Accessory:
		keys.DecryptKey = writeKey
		keys.EncryptKey = readKey
	case Controller:
		keys.EncryptKey = writeKey
		keys.DecryptKey = readKey
	default:
		return nil, fmt.Errorf("unknown role %s", role)
	}

	ZeroBytes(writeKey[:], readKey[:])
	return keys, nil
}

func expandKey(secret []byte, info string) ([KeySize]byte, error) {
	var key [KeySize]byte
	r := hkdf.New(sha512.New, secret, []byte(controlSalt), []byte(info))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("hkdf expand %s: %w", info, err)
	}
	return key, nil
}

// Nonce lays a frame counter out as a 12-byte AEAD nonce: four zero bytes
// followed by the little-endian counter.
func Nonce(counter uint64) [NonceSize]byte {
	var n [NonceSize]byte
	binary.LittleEndian.PutUint64(n[nonceCounterOffset:], counter)
	return n
}

// Wipe erases the key material. Counters are reset so the struct cannot be
// reused by accident.
func (k *SessionKeys) Wipe() {
	if k == nil {
		return
	}
	ZeroBytes(k.EncryptKey[:], k.DecryptKey[:])
	k.EncryptNonce = 0
	k.DecryptNonce = 0
}
