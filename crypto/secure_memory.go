package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe erases the contents of a byte slice holding sensitive data —
// a retired write token key or AEAD key, for instance. It returns an error
// if data is nil.
//
// XORing a slice with itself zeros it while using subtle.XORBytes, which
// the compiler cannot fold away the way it could a plain zeroing loop.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	subtle.XORBytes(data, data, data)

	// Keep data reachable until after the wipe so the compiler can't
	// reorder it away as a dead store.
	runtime.KeepAlive(data)

	return nil
}

// ZeroBytes wipes data, discarding the nil-slice error.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}
