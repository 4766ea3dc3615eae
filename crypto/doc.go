// Package crypto implements the key material and AEAD primitives for the
// encrypted RTSP control channel.
//
// # Core Types
//
//   - [SessionKeys]: the encrypt/decrypt keys and per-direction nonce
//     counters for one connection
//   - [Role]: which side of the channel a set of keys belongs to
//
// # Key Derivation
//
// A pairing secret is expanded into the two directional keys with
// HKDF-SHA512, salt "Control-Salt", and the info strings
// "Control-Write-Encryption-Key" and "Control-Read-Encryption-Key":
//
//	keys, err := crypto.DeriveSessionKeys(secret, crypto.Accessory)
//
// # Nonces
//
// Frames are sealed with IETF ChaCha20-Poly1305. The 12-byte nonce is four
// zero bytes followed by the little-endian 64-bit frame counter of that
// direction:
//
//	nonce := crypto.Nonce(keys.DecryptNonce)
//
// A counter value is used for exactly one frame and advances by one after
// each frame is processed successfully.
//
// # Secure Memory
//
// [SecureWipe] and [ZeroBytes] overwrite buffers that held key material or
// plaintext. [SessionKeys.Wipe] erases both keys.
package crypto
