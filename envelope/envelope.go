package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/crisscross-dht/crisscrossdht/crypto"
)

// Magic identifies a CrissCrossDHT cluster-framed packet, distinguishing it
// from stray traffic on the shared UDP socket (spec §4.3).
var Magic = [2]byte{'0', 'A'}

// ClusterIDSize is the length in bytes of the cluster identifier carried in
// the clear, right after Magic.
const ClusterIDSize = 32

// aadString is the additional authenticated data bound into every seal, per
// spec §6. It doesn't vary per cluster; the cluster key itself already
// scopes the ciphertext to one cluster.
const aadString = "AES256GCM"

const (
	ivSize  = 32
	keySize = 32
)

var (
	// ErrShortPacket is returned when a packet is too small to contain a
	// valid magic, cluster id, and sealed body.
	ErrShortPacket = errors.New("envelope: packet too short")
	// ErrBadMagic is returned when the leading magic bytes don't match.
	ErrBadMagic = errors.New("envelope: bad magic")
	// ErrBadKeySize is returned when a cluster key isn't exactly 32 bytes.
	ErrBadKeySize = errors.New("envelope: cluster key must be 32 bytes")
)

var log = logrus.WithFields(logrus.Fields{"package": "envelope"})

// Frame is a decoded but still-sealed packet: the cluster it claims to
// belong to, plus the opaque sealed body.
type Frame struct {
	ClusterID [ClusterIDSize]byte
	Sealed    []byte
}

// ParseFrame strips Magic and the cluster id from a raw inbound packet,
// without attempting to open the sealed body — the caller looks up the
// cluster key by ClusterID first.
func ParseFrame(packet []byte) (*Frame, error) {
	if len(packet) < len(Magic)+ClusterIDSize {
		return nil, ErrShortPacket
	}
	if !bytes.Equal(packet[:len(Magic)], Magic[:]) {
		return nil, ErrBadMagic
	}
	f := &Frame{Sealed: packet[len(Magic)+ClusterIDSize:]}
	copy(f.ClusterID[:], packet[len(Magic):len(Magic)+ClusterIDSize])
	return f, nil
}

// BuildFrame prepends Magic and clusterID to a sealed body, producing the
// bytes that go on the wire.
func BuildFrame(clusterID [ClusterIDSize]byte, sealed []byte) []byte {
	out := make([]byte, 0, len(Magic)+ClusterIDSize+len(sealed))
	out = append(out, Magic[:]...)
	out = append(out, clusterID[:]...)
	out = append(out, sealed...)
	return out
}

// Seal encrypts plaintext under a cluster's shared key, in the layout
// iv(32) ‖ tag(16) ‖ ciphertext, with aadString bound as additional
// authenticated data (spec §4.3, §6). The 32-byte IV is generated fresh
// per call and only its first 12 bytes are used as the GCM nonce; the
// wider field matches the fixed layout every cluster message shares.
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, ErrBadKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	nonce := iv[:gcm.NonceSize()]

	sealed := gcm.Seal(nil, nonce, plaintext, []byte(aadString))
	// sealed = ciphertext ‖ tag(16); split so the wire layout is
	// iv(32) ‖ tag(16) ‖ ciphertext rather than ciphertext ‖ tag.
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext := sealed[:tagStart]
	tag := sealed[tagStart:]

	out := make([]byte, 0, ivSize+len(tag)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open reverses Seal, returning an error if the key, AAD, or ciphertext
// don't match what was sealed.
func Open(key, sealed []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, ErrBadKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < ivSize+gcm.Overhead() {
		log.WithFields(crypto.SecureFieldHash(sealed, "sealed")).Warn("sealed body too short")
		return nil, ErrShortPacket
	}

	iv := sealed[:ivSize]
	tag := sealed[ivSize : ivSize+gcm.Overhead()]
	ciphertext := sealed[ivSize+gcm.Overhead():]
	nonce := iv[:gcm.NonceSize()]

	combined := make([]byte, 0, len(ciphertext)+len(tag))
	combined = append(combined, ciphertext...)
	combined = append(combined, tag...)

	plaintext, err := gcm.Open(nil, nonce, combined, []byte(aadString))
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}
