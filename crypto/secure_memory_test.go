package crypto

import (
	"errors"
	"testing"
)

// TestSecureWipeEdgeCases tests edge cases for SecureWipe
func TestSecureWipeEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		expectErr bool
	}{
		{name: "nil slice", input: nil, expectErr: true},
		{name: "empty slice", input: []byte{}, expectErr: false},
		{name: "single byte", input: []byte{0xFF}, expectErr: false},
		{name: "max block", input: make([]byte, 1024), expectErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.input {
				tt.input[i] = byte(i%255) + 1
			}

			err := SecureWipe(tt.input)
			if tt.expectErr && !errors.Is(err, ErrNilBuffer) {
				t.Errorf("Expected ErrNilBuffer, got %v", err)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			for i, b := range tt.input {
				if b != 0 {
					t.Fatalf("byte %d not wiped: %#x", i, b)
				}
			}
		})
	}
}

func TestZeroBytesNilSafe(t *testing.T) {
	ZeroBytes(nil)

	secret := []byte("control-channel-secret")
	ZeroBytes(secret)
	for _, b := range secret {
		if b != 0 {
			t.Fatalf("secret not wiped: %q", secret)
		}
	}
}

func TestZeroBytesMultipleBuffers(t *testing.T) {
	key := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := []byte("len|ciphertext|tag")
	var unallocated []byte

	ZeroBytes(key, unallocated, frame)

	for name, buf := range map[string][]byte{"key": key, "frame": frame} {
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("%s byte %d not wiped: %#x", name, i, b)
			}
		}
	}
}
