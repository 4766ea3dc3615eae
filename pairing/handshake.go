package pairing

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/airtunes/crypto"
	"github.com/sirupsen/logrus"
)

var (
	// ErrHandshakeNotComplete indicates keys were requested too early.
	ErrHandshakeNotComplete = errors.New("pairing: handshake not complete")
	// ErrHandshakeComplete indicates a message arrived after completion.
	ErrHandshakeComplete = errors.New("pairing: handshake already complete")
	// ErrWrongRole indicates a step was called on the wrong side.
	ErrWrongRole = errors.New("pairing: operation not valid for this role")
	// ErrPeerMismatch indicates the accessory's static key was not the pinned one.
	ErrPeerMismatch = errors.New("pairing: accessory key does not match")
	// ErrInvalidSecret indicates the session secret payload was malformed.
	ErrInvalidSecret = errors.New("pairing: invalid session secret")
)

// Role is the side of the handshake.
type Role uint8

const (
	// Initiator is the controller (the AirPlay sender).
	Initiator Role = iota
	// Responder is the accessory (this receiver).
	Responder
)

// secretSize is the length of the session secret carried in message 2.
const secretSize = 32

// Handshake runs a two-message Noise NX exchange:
//
//	-> e
//	<- e, ee, s, es   [payload: session secret]
//
// The accessory proves its static identity and sends a fresh session secret
// under the handshake encryption. Both sides feed the secret to
// crypto.DeriveSessionKeys. It stands in for HAP pair-verify and is not
// compatible with it.
type Handshake struct {
	role       Role
	state      *noise.HandshakeState
	pinnedPeer []byte
	complete   bool
	keys       *crypto.SessionKeys
}

func newHandshake(role Role, static *noise.DHKey) (*noise.HandshakeState, error) {
	config := noise.Config{
		CipherSuite: noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256),
		Random:      rand.Reader,
		Pattern:     noise.HandshakeNX,
		Initiator:   role == Initiator,
	}
	if static != nil {
		config.StaticKeypair = *static
	}
	state, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}
	return state, nil
}

// NewResponder creates the accessory side for identity id.
func NewResponder(id *Identity) (*Handshake, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: nil identity", ErrInvalidIdentityKey)
	}
	static := id.dhKey()
	state, err := newHandshake(Responder, &static)
	if err != nil {
		return nil, err
	}
	return &Handshake{role: Responder, state: state}, nil
}

// NewInitiator creates the controller side. When accessoryKey is non-nil the
// handshake fails unless the accessory presents that static public key.
func NewInitiator(accessoryKey []byte) (*Handshake, error) {
	if accessoryKey != nil && len(accessoryKey) != 32 {
		return nil, fmt.Errorf("%w: pinned key must be 32 bytes, got %d", ErrPeerMismatch, len(accessoryKey))
	}
	state, err := newHandshake(Initiator, nil)
	if err != nil {
		return nil, err
	}
	return &Handshake{
		role:       Initiator,
		state:      state,
		pinnedPeer: append([]byte(nil), accessoryKey...),
	}, nil
}

// Start produces the controller's first message.
func (h *Handshake) Start() ([]byte, error) {
	if h.role != Initiator {
		return nil, ErrWrongRole
	}
	if h.complete {
		return nil, ErrHandshakeComplete
	}
	msg, _, _, err := h.state.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("initiator write failed: %w", err)
	}
	return msg, nil
}

// Respond consumes the controller's first message and returns the reply.
// The accessory's session keys are available once Respond succeeds.
func (h *Handshake) Respond(msg1 []byte) ([]byte, error) {
	if h.role != Responder {
		return nil, ErrWrongRole
	}
	if h.complete {
		return nil, ErrHandshakeComplete
	}

	if _, _, _, err := h.state.ReadMessage(nil, msg1); err != nil {
		return nil, fmt.Errorf("responder read failed: %w", err)
	}

	secret := make([]byte, secretSize)
	defer crypto.ZeroBytes(secret)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}

	msg2, _, _, err := h.state.WriteMessage(nil, secret)
	if err != nil {
		return nil, fmt.Errorf("responder write failed: %w", err)
	}

	if err := h.finish(secret, crypto.Accessory); err != nil {
		return nil, err
	}
	return msg2, nil
}

// Finish consumes the accessory's reply and derives the controller keys.
func (h *Handshake) Finish(msg2 []byte) error {
	if h.role != Initiator {
		return ErrWrongRole
	}
	if h.complete {
		return ErrHandshakeComplete
	}

	secret, _, _, err := h.state.ReadMessage(nil, msg2)
	if err != nil {
		return fmt.Errorf("initiator read failed: %w", err)
	}
	defer crypto.ZeroBytes(secret)

	if len(secret) != secretSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidSecret, len(secret))
	}
	if len(h.pinnedPeer) > 0 && !bytes.Equal(h.pinnedPeer, h.state.PeerStatic()) {
		return ErrPeerMismatch
	}

	return h.finish(secret, crypto.Controller)
}

func (h *Handshake) finish(secret []byte, role crypto.Role) error {
	keys, err := crypto.DeriveSessionKeys(secret, role)
	if err != nil {
		return fmt.Errorf("derive session keys: %w", err)
	}
	h.keys = keys
	h.complete = true

	fields := crypto.KeyFields(keys)
	fields["function"] = "Handshake.finish"
	fields["role"] = role.String()
	logrus.WithFields(fields).Debug("Pairing handshake complete")
	return nil
}

// IsComplete reports whether session keys are available.
func (h *Handshake) IsComplete() bool {
	return h.complete
}

// SessionKeys returns the derived keys. Every call returns the same value,
// whose nonce counters the connection advances.
func (h *Handshake) SessionKeys() (*crypto.SessionKeys, error) {
	if !h.complete {
		return nil, ErrHandshakeNotComplete
	}
	return h.keys, nil
}

// PeerStatic returns the accessory's static public key as seen by the
// controller.
func (h *Handshake) PeerStatic() ([]byte, error) {
	if h.role != Initiator {
		return nil, ErrWrongRole
	}
	if !h.complete {
		return nil, ErrHandshakeNotComplete
	}
	return append([]byte(nil), h.state.PeerStatic()...), nil
}

// Wipe clears the derived keys.
func (h *Handshake) Wipe() {
	h.keys.Wipe()
}
