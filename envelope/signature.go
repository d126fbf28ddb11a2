package envelope

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/crisscross-dht/crisscrossdht/crypto"
	"github.com/crisscross-dht/crisscrossdht/ids"
)

// SigningContext is domain-separation context string bound into every
// signature, so a signature minted for CrissCrossDHT can never be replayed
// as valid input to an unrelated Schnorr-signing protocol (spec §9 "Token
// design" decision carried over to signatures).
const SigningContext = "CrissCross-DHT"

var (
	ErrInvalidPublicKey  = errors.New("envelope: invalid public key")
	ErrInvalidSignature  = errors.New("envelope: invalid signature encoding")
	ErrSignatureMismatch = errors.New("envelope: signature verification failed")
)

// combineFields canonicalizes an arbitrary list of signable fields into a
// single byte string: each field (and the fixed signing context) is
// prefixed with its length as a big-endian uint32, so no field's content
// can be reinterpreted as a boundary between two other fields.
func combineFields(fields ...[]byte) []byte {
	total := len(SigningContext) + 4
	for _, f := range fields {
		total += len(f) + 4
	}
	out := make([]byte, 0, total)
	out = appendField(out, []byte(SigningContext))
	for _, f := range fields {
		out = appendField(out, f)
	}
	return out
}

func appendField(dst []byte, field []byte) []byte {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(field)))
	dst = append(dst, lenBytes[:]...)
	dst = append(dst, field...)
	return dst
}

// u64Field renders v as an 8-byte big-endian field, the canonicalization
// this implementation freezes for every integer folded into a signed
// message (spec §9 open question on combine()'s integer encoding).
func u64Field(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// digestFields hashes the canonical message combineFields produces, since
// schnorr.Sign operates on a fixed-size hash rather than an arbitrary-length
// message.
func digestFields(fields ...[]byte) [32]byte {
	return sha256.Sum256(combineFields(fields...))
}

func signFields(privKey *secp256k1.PrivateKey, fields ...[]byte) ([]byte, error) {
	h := digestFields(fields...)
	sig, err := schnorr.Sign(privKey, h[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func verifyFields(pubKeyBytes, sig []byte, fields ...[]byte) error {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		log.WithFields(crypto.SecureFieldHash(pubKeyBytes, "pubkey")).Debug("rejecting malformed public key")
		return ErrInvalidPublicKey
	}

	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	h := digestFields(fields...)
	if !parsed.Verify(h[:], pubKey) {
		log.WithFields(crypto.SecureFieldHash(pubKeyBytes, "pubkey")).Debug("schnorr verification failed")
		return ErrSignatureMismatch
	}
	return nil
}

// combine is kept as the name-record-specific canonicalization exercised by
// TestCombineDistinguishesFieldBoundaries; it's combineFields specialized to
// (name, value, seq).
func combine(name string, value []byte, seq uint64) []byte {
	return combineFields([]byte(name), value, u64Field(seq))
}

// SchnorrSign signs a name record's (name, value, seq) tuple with privKey,
// returning the 64-byte compact signature encoding — sig_ns in spec §3's
// name record, spec §4.2 "store_name".
func SchnorrSign(privKey *secp256k1.PrivateKey, name string, value []byte, seq uint64) ([]byte, error) {
	return signFields(privKey, []byte(name), value, u64Field(seq))
}

// SchnorrVerify checks that sig is a valid Schnorr signature over (name,
// value, seq) under the 33-byte compressed public key pubKeyBytes.
func SchnorrVerify(pubKeyBytes, sig []byte, name string, value []byte, seq uint64) error {
	return verifyFields(pubKeyBytes, sig, []byte(name), value, u64Field(seq))
}

// ValueSign signs an immutable value record's (key, value, ttl) tuple —
// the sig a store query carries, verified against the cluster's declared
// write key (spec §3 "Value record": "Signature covers combine(key, value,
// ttl)", spec §4.7 "store").
func ValueSign(privKey *secp256k1.PrivateKey, key ids.NodeID, value []byte, ttl uint64) ([]byte, error) {
	return signFields(privKey, key[:], value, u64Field(ttl))
}

// ValueVerify checks sig against (key, value, ttl) under pubKeyBytes.
func ValueVerify(pubKeyBytes, sig []byte, key ids.NodeID, value []byte, ttl uint64) error {
	return verifyFields(pubKeyBytes, sig, key[:], value, u64Field(ttl))
}

// ClusterSign signs a name record's (name, value, seq, ttl) tuple under the
// cluster's write key — sig_cluster, required only when the cluster is
// write-gated (spec §3 "Name record": "signature_cluster covers
// combine(name, value, generation, ttl) under the cluster key").
func ClusterSign(privKey *secp256k1.PrivateKey, name string, value []byte, seq, ttl uint64) ([]byte, error) {
	return signFields(privKey, []byte(name), value, u64Field(seq), u64Field(ttl))
}

// ClusterVerify checks sig against (name, value, seq, ttl) under pubKeyBytes.
func ClusterVerify(pubKeyBytes, sig []byte, name string, value []byte, seq, ttl uint64) error {
	return verifyFields(pubKeyBytes, sig, []byte(name), value, u64Field(seq), u64Field(ttl))
}
