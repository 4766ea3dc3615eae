package pairing

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/opd-ai/airtunes/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

var _ interfaces.IKeyProvider = (*Handshake)(nil)

func pair(t *testing.T, id *Identity, pinned []byte) (controller, accessory *Handshake) {
	t.Helper()

	controller, err := NewInitiator(pinned)
	require.NoError(t, err)
	accessory, err = NewResponder(id)
	require.NoError(t, err)

	msg1, err := controller.Start()
	require.NoError(t, err)
	msg2, err := accessory.Respond(msg1)
	require.NoError(t, err)
	require.NoError(t, controller.Finish(msg2))
	return controller, accessory
}

func TestHandshakeMirroredKeys(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	controller, accessory := pair(t, id, nil)
	assert.True(t, controller.IsComplete())
	assert.True(t, accessory.IsComplete())

	ck, err := controller.SessionKeys()
	require.NoError(t, err)
	ak, err := accessory.SessionKeys()
	require.NoError(t, err)

	assert.Equal(t, ck.EncryptKey, ak.DecryptKey)
	assert.Equal(t, ck.DecryptKey, ak.EncryptKey)
	assert.NotEqual(t, ck.EncryptKey, ck.DecryptKey)

	again, err := accessory.SessionKeys()
	require.NoError(t, err)
	assert.Same(t, ak, again)

	peer, err := controller.PeerStatic()
	require.NoError(t, err)
	assert.Equal(t, id.Public[:], peer)
}

func TestHandshakeFreshKeysPerSession(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	_, first := pair(t, id, nil)
	_, second := pair(t, id, nil)

	k1, _ := first.SessionKeys()
	k2, _ := second.SessionKeys()
	assert.NotEqual(t, k1.EncryptKey, k2.EncryptKey)
}

func TestHandshakePinnedKey(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	other, err := NewIdentity()
	require.NoError(t, err)

	pair(t, id, id.Public[:])

	controller, err := NewInitiator(other.Public[:])
	require.NoError(t, err)
	accessory, err := NewResponder(id)
	require.NoError(t, err)

	msg1, err := controller.Start()
	require.NoError(t, err)
	msg2, err := accessory.Respond(msg1)
	require.NoError(t, err)
	assert.ErrorIs(t, controller.Finish(msg2), ErrPeerMismatch)
	assert.False(t, controller.IsComplete())

	_, err = NewInitiator([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHandshakeRejectsTamperedReply(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	controller, err := NewInitiator(nil)
	require.NoError(t, err)
	accessory, err := NewResponder(id)
	require.NoError(t, err)

	msg1, err := controller.Start()
	require.NoError(t, err)
	msg2, err := accessory.Respond(msg1)
	require.NoError(t, err)

	msg2[len(msg2)-1] ^= 0xFF
	assert.Error(t, controller.Finish(msg2))
	_, err = controller.SessionKeys()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
}

func TestHandshakeRoleAndOrderErrors(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)

	accessory, err := NewResponder(id)
	require.NoError(t, err)
	_, err = accessory.Start()
	assert.ErrorIs(t, err, ErrWrongRole)
	assert.ErrorIs(t, accessory.Finish(nil), ErrWrongRole)
	_, err = accessory.PeerStatic()
	assert.ErrorIs(t, err, ErrWrongRole)
	_, err = accessory.Respond([]byte("short"))
	assert.Error(t, err)

	controller, err := NewInitiator(nil)
	require.NoError(t, err)
	_, err = controller.Respond(nil)
	assert.ErrorIs(t, err, ErrWrongRole)
	_, err = controller.PeerStatic()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)

	c, a := pair(t, id, nil)
	_, err = a.Respond(nil)
	assert.ErrorIs(t, err, ErrHandshakeComplete)
	assert.ErrorIs(t, c.Finish(nil), ErrHandshakeComplete)
	_, err = c.Start()
	assert.ErrorIs(t, err, ErrHandshakeComplete)

	_, err = NewResponder(nil)
	assert.ErrorIs(t, err, ErrInvalidIdentityKey)
}

func TestHandshakeWipe(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	_, accessory := pair(t, id, nil)

	keys, _ := accessory.SessionKeys()
	accessory.Wipe()
	assert.Equal(t, [32]byte{}, keys.EncryptKey)

	var empty Handshake
	assert.NotPanics(t, empty.Wipe)
}

func TestIdentityFromPrivate(t *testing.T) {
	var priv [32]byte
	for i := range priv {
		priv[i] = byte(i + 1)
	}
	id, err := IdentityFromPrivate(priv)
	require.NoError(t, err)

	want, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, want, id.Public[:])
	assert.Equal(t, hex.EncodeToString(want), id.PublicHex())

	id.Wipe()
	assert.Equal(t, [32]byte{}, id.Private)
}

func TestLoadIdentity(t *testing.T) {
	key := strings.Repeat("a1", 32)
	id, err := LoadIdentity(" " + key + "\n")
	require.NoError(t, err)

	raw, _ := hex.DecodeString(key)
	assert.Equal(t, raw, id.Private[:])

	generated, err := LoadIdentity("")
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, generated.Public)

	_, err = LoadIdentity("zz")
	assert.ErrorIs(t, err, ErrInvalidIdentityKey)
	_, err = LoadIdentity("abcd")
	assert.ErrorIs(t, err, ErrInvalidIdentityKey)
}
