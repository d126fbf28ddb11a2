package ids

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Size is the byte length of every NodeID, raw or hashed.
const Size = 32

// NodeID is a 32-byte opaque identifier. Hash derives a hashed id from raw
// bytes, but the routing table compares ids exactly as they are supplied
// to it; it does not hash them itself.
type NodeID [Size]byte

// Bits is the bit width of a NodeID, and therefore the maximum number of
// k-buckets a routing table can ever hold.
const Bits = Size * 8

// String returns the hexadecimal representation of id.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Hash derives a NodeID from arbitrary-length data via SHA3-256: a raw
// node id's hashed form, a value's content address, or a name string's
// lookup id. Node ids received from peers or configuration are used as
// given and are not passed through Hash.
func Hash(data []byte) NodeID {
	return NodeID(sha3.Sum256(data))
}

// Generate returns 32 bytes of cryptographically secure randomness, hashed
// once through SHA3-256, suitable for use as a fresh raw NodeID.
//
// Per spec §4.1, gen_node_id produces raw entropy and then hashes it; callers
// that need the raw form for signing should call Random instead and derive
// the hashed form separately via Hash.
func Generate() (NodeID, error) {
	raw, err := Random()
	if err != nil {
		return NodeID{}, err
	}
	return Hash(raw[:]), nil
}

// Random returns 32 bytes of cryptographically secure randomness.
func Random() (NodeID, error) {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		return NodeID{}, err
	}
	return id, nil
}

// XOR computes the bitwise XOR distance between two equal-length ids.
func XOR(a, b NodeID) NodeID {
	var out NodeID
	for i := 0; i < Size; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less orders two distances lexicographically by byte, which is equivalent
// to ordering them as big-endian unsigned integers. It is the tie-break rule
// used throughout the search engine and routing table.
func Less(a, b NodeID) bool {
	for i := 0; i < Size; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// CompareDistance orders a and b by their XOR distance to target: it returns
// true if a is strictly closer to target than b is. Ties are broken by the
// lexicographic order of the ids themselves, per spec §4.6 edge cases.
func CompareDistance(a, b, target NodeID) bool {
	da, db := XOR(a, target), XOR(b, target)
	if da != db {
		return Less(da, db)
	}
	return Less(a, b)
}

// BucketIndex returns the count of leading bits shared between self and
// other — equivalently, the position of the first differing bit in their XOR
// distance. Identical ids yield Bits (256). Callers place a node in bucket
// min(BucketIndex(self, other), lastBucketIndex), since only the last bucket
// is permitted to hold overflow before a split (spec §4.1, §4.5).
func BucketIndex(self, other NodeID) int {
	d := XOR(self, other)
	for i := 0; i < Size; i++ {
		if d[i] == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if d[i]&(0x80>>uint(bit)) != 0 {
				return i*8 + bit
			}
		}
	}
	return Bits
}

// InBucketRange returns a random id that shares exactly i leading bits with
// self — i.e. BucketIndex(self, result) == i for i < Bits. It is used to
// target random-bucket refresh lookups (spec §4.1, §4.5 bucket maintenance).
//
// For i == Bits the only id sharing all 256 bits with self is self itself.
func InBucketRange(self NodeID, i int) (NodeID, error) {
	if i < 0 || i > Bits {
		return NodeID{}, errInvalidBucket
	}
	if i == Bits {
		return self, nil
	}

	var out NodeID
	if _, err := rand.Read(out[:]); err != nil {
		return NodeID{}, err
	}

	byteIdx, bitIdx := i/8, i%8

	// Copy the leading byteIdx bytes verbatim so the shared prefix matches.
	copy(out[:byteIdx], self[:byteIdx])

	// The bit at position i must differ from self (that's what makes the
	// shared-prefix length exactly i, not more); bits before it within the
	// same byte must match self.
	mask := byte(0xFF << uint(8-bitIdx))
	flip := byte(0x80 >> uint(bitIdx))
	out[byteIdx] = (self[byteIdx] & mask) | (^self[byteIdx] & flip) | (out[byteIdx] &^ (mask | flip))

	return out, nil
}
