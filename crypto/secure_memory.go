package crypto

import (
	"errors"
	"runtime"
)

// ErrNilBuffer is returned by SecureWipe for a nil slice.
var ErrNilBuffer = errors.New("crypto: cannot wipe nil buffer")

// SecureWipe overwrites data with zeros in place. The slice is kept alive
// until the stores complete so they are not dropped as dead writes.
func SecureWipe(data []byte) error {
	if data == nil {
		return ErrNilBuffer
	}
	clear(data)
	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes wipes every buffer in bufs. Nil buffers are skipped, so callers
// can pass fields that may never have been allocated.
func ZeroBytes(bufs ...[]byte) {
	for _, b := range bufs {
		if b != nil {
			_ = SecureWipe(b)
		}
	}
}
