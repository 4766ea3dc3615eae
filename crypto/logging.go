package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SecureFieldHash creates a short preview of sensitive data for logging.
// Only the first 4 bytes are shown.
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		previewLen := 4
		if len(data) < previewLen {
			previewLen = len(data)
		}
		preview = fmt.Sprintf("%x", data[:previewLen])
		if len(data) > previewLen {
			preview += "..."
		}
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}

// KeyFields returns log fields describing a set of session keys without
// exposing them.
func KeyFields(keys *SessionKeys) logrus.Fields {
	if keys == nil {
		return logrus.Fields{"keys": "nil"}
	}
	fields := SecureFieldHash(keys.EncryptKey[:], "encrypt_key")
	for k, v := range SecureFieldHash(keys.DecryptKey[:], "decrypt_key") {
		fields[k] = v
	}
	fields["encrypt_nonce"] = keys.EncryptNonce
	fields["decrypt_nonce"] = keys.DecryptNonce
	return fields
}
