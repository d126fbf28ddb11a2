package envelope

import (
	"crypto/rand"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPrivKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	var raw [32]byte
	_, err := rand.Read(raw[:])
	require.NoError(t, err)
	return secp256k1.PrivKeyFromBytes(raw[:])
}

func TestSchnorrSignAndVerify(t *testing.T) {
	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()

	sig, err := SchnorrSign(priv, "alice.cross", []byte("v1"), 1)
	require.NoError(t, err)

	err = SchnorrVerify(pub, sig, "alice.cross", []byte("v1"), 1)
	assert.NoError(t, err)
}

func TestSchnorrVerifyRejectsTamperedValue(t *testing.T) {
	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()

	sig, err := SchnorrSign(priv, "alice.cross", []byte("v1"), 1)
	require.NoError(t, err)

	err = SchnorrVerify(pub, sig, "alice.cross", []byte("v2"), 1)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSchnorrVerifyRejectsWrongKey(t *testing.T) {
	priv := randomPrivKey(t)
	other := randomPrivKey(t)

	sig, err := SchnorrSign(priv, "alice.cross", []byte("v1"), 1)
	require.NoError(t, err)

	err = SchnorrVerify(other.PubKey().SerializeCompressed(), sig, "alice.cross", []byte("v1"), 1)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSchnorrVerifyRejectsStaleSeq(t *testing.T) {
	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()

	sig, err := SchnorrSign(priv, "alice.cross", []byte("v1"), 5)
	require.NoError(t, err)

	err = SchnorrVerify(pub, sig, "alice.cross", []byte("v1"), 4)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestCombineDistinguishesFieldBoundaries(t *testing.T) {
	a := combine("ab", []byte("c"), 0)
	b := combine("a", []byte("bc"), 0)
	assert.NotEqual(t, a, b)
}
