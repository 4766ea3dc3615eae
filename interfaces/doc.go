// Package interfaces defines the collaborator contracts of the RTSP control
// channel core.
//
// The core never owns a network connection or key material directly. It
// drives an [ISocket], a non-blocking byte stream that reports would-block
// instead of suspending, and borrows keys from an [IKeyProvider] once pairing
// has completed:
//
//	keys, err := provider.SessionKeys()
//	if err != nil {
//	    return err
//	}
//	conn.EnableEncryption(keys)
//
// Production sockets live in the transport package; the testing package
// provides a scripted in-memory implementation for deterministic tests.
package interfaces
