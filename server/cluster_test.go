package server

import (
	"crypto/rand"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisscross-dht/crisscrossdht/envelope"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

func randomPrivKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	var raw [32]byte
	_, err := rand.Read(raw[:])
	require.NoError(t, err)
	return secp256k1.PrivKeyFromBytes(raw[:])
}

// discardConn is a net.PacketConn that records writes without touching a
// real socket, for tests that only exercise handler logic.
type discardConn struct {
	net.PacketConn
	written [][]byte
}

func (d *discardConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	d.written = append(d.written, cp)
	return len(b), nil
}

func (d *discardConn) Close() error { return nil }

func newTestCluster(t *testing.T) *Cluster {
	t.Helper()
	self, err := ids.Random()
	require.NoError(t, err)

	var clusterID [envelope.ClusterIDSize]byte
	clusterID[0] = 0x01

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	clock := &tokenClock{now: time.Unix(0, 0)}
	return NewCluster(clusterID, key, self, &discardConn{}, clock)
}

func TestHandlePingRespondsWithOwnID(t *testing.T) {
	c := newTestCluster(t)
	peerID, err := ids.Random()
	require.NoError(t, err)

	reply, err := c.handle(netip.MustParseAddrPort("10.0.0.5:6881"), &wire.Message{
		Query: wire.QueryPing, Args: &wire.PingArgs{ID: peerID},
	})
	require.NoError(t, err)
	assert.Equal(t, c.Self, reply.Result.(*wire.PingResult).ID)
}

func TestHandleStoreAndFindValue(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")

	value := []byte("hello world")
	key := ids.Hash(value)
	token := c.Tokens.Mint(peerAddr, key)

	_, err := c.handleStore(peerAddr, &wire.StoreArgs{ID: c.Self, Key: key, Value: value, Token: token})
	require.NoError(t, err)

	stored, ok := c.Store.GetValue(key)
	require.True(t, ok)
	assert.Equal(t, value, stored)

	reply, err := c.handleFindValue(&wire.FindValueArgs{ID: c.Self, Key: key})
	require.NoError(t, err)
	res := reply.Result.(*wire.ValueResult)
	assert.True(t, res.Found)
	assert.Equal(t, value, res.Value)
}

func TestHandleStoreRejectsBadToken(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")

	value := []byte("hello world")
	key := ids.Hash(value)

	_, err := c.handleStore(peerAddr, &wire.StoreArgs{ID: c.Self, Key: key, Value: value, Token: []byte("bogus")})
	assert.Error(t, err)
}

func TestHandleStoreRejectsValueNotMatchingKey(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")

	value := []byte("hello world")
	wrongKey, err := ids.Random()
	require.NoError(t, err)
	token := c.Tokens.Mint(peerAddr, wrongKey)

	_, err = c.handleStore(peerAddr, &wire.StoreArgs{ID: c.Self, Key: wrongKey, Value: value, Token: token})
	assert.Error(t, err)
}

func TestHandleGetPeersMintsUsableToken(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")
	infoHash, err := ids.Random()
	require.NoError(t, err)

	resp, err := c.handleGetPeers(peerAddr, &wire.GetPeersArgs{ID: c.Self, InfoHash: infoHash})
	require.NoError(t, err)

	token := resp.Result.(*wire.PeersResult).Token
	assert.True(t, c.Tokens.Verify(token, peerAddr, infoHash))
}

func TestHandleAnnouncePeerThenGetPeersReturnsIt(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")
	infoHash, err := ids.Random()
	require.NoError(t, err)

	tokenResp, err := c.handleGetPeers(peerAddr, &wire.GetPeersArgs{ID: c.Self, InfoHash: infoHash})
	require.NoError(t, err)
	token := tokenResp.Result.(*wire.PeersResult).Token

	_, err = c.handleAnnouncePeer(peerAddr, &wire.AnnouncePeerArgs{
		ID: c.Self, InfoHash: infoHash, Port: 6881, Token: token,
	})
	require.NoError(t, err)

	resp, err := c.handleGetPeers(peerAddr, &wire.GetPeersArgs{ID: c.Self, InfoHash: infoHash})
	require.NoError(t, err)
	res := resp.Result.(*wire.PeersResult)
	assert.True(t, res.Found)
	require.Len(t, res.Peers4, 1)
	assert.Equal(t, uint16(6881), res.Peers4[0].Port())
}

func TestHandleFindNodeReturnsClosest(t *testing.T) {
	c := newTestCluster(t)
	other, err := ids.Random()
	require.NoError(t, err)
	c.Table.Insert(nodeFixture(t, other))

	target, err := ids.Random()
	require.NoError(t, err)
	reply, err := c.handleFindNode(&wire.FindNodeArgs{ID: c.Self, Target: target})
	require.NoError(t, err)

	res := reply.Result.(*wire.NodesResult)
	assert.NotEmpty(t, append(res.Nodes4, res.Nodes6...))
}

func TestHandleStoreRejectsUnsignedValueWhenClusterWriteGated(t *testing.T) {
	c := newTestCluster(t)
	priv := randomPrivKey(t)
	c.WriteKey = priv.PubKey().SerializeCompressed()

	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")
	value := []byte("hello world")
	key := ids.Hash(value)
	token := c.Tokens.Mint(peerAddr, key)

	_, err := c.handleStore(peerAddr, &wire.StoreArgs{
		ID: c.Self, Key: key, Value: value, TTL: 3600, Token: token,
	})
	assert.Error(t, err)
}

func TestHandleStoreAcceptsValidSignatureWhenClusterWriteGated(t *testing.T) {
	c := newTestCluster(t)
	priv := randomPrivKey(t)
	c.WriteKey = priv.PubKey().SerializeCompressed()

	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")
	value := []byte("hello world")
	key := ids.Hash(value)
	token := c.Tokens.Mint(peerAddr, key)

	sig, err := envelope.ValueSign(priv, key, value, 3600)
	require.NoError(t, err)

	_, err = c.handleStore(peerAddr, &wire.StoreArgs{
		ID: c.Self, Key: key, Value: value, TTL: 3600, Signature: sig, Token: token,
	})
	require.NoError(t, err)

	stored, ok := c.Store.GetValue(key)
	require.True(t, ok)
	assert.Equal(t, value, stored)
}

// ownedName derives a name whose hash(hash(pubkey)) binding holds, the
// only names a given keypair is allowed to publish under.
func ownedName(t *testing.T, pub []byte) string {
	t.Helper()
	h := ids.Hash(pub)
	return string(h[:])
}

func TestHandleStoreNameRejectsNameNotOwnedByKey(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")

	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()
	name := "alice.cross"
	value := []byte("record")

	sig, err := envelope.SchnorrSign(priv, name, value, 1)
	require.NoError(t, err)

	nameID := ids.Hash([]byte(name))
	token := c.Tokens.Mint(peerAddr, nameID)

	_, err = c.handleStoreName(peerAddr, &wire.StoreNameArgs{
		ID: c.Self, Name: name, Value: value, Seq: 1,
		PublicKey: pub, Signature: sig, Token: token,
	})
	assert.Error(t, err)
}

func TestHandleStoreNameAcceptsOwnedNameWithValidSignature(t *testing.T) {
	c := newTestCluster(t)
	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")

	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()
	name := ownedName(t, pub)
	value := []byte("record")

	sig, err := envelope.SchnorrSign(priv, name, value, 1)
	require.NoError(t, err)

	nameID := ids.Hash([]byte(name))
	token := c.Tokens.Mint(peerAddr, nameID)

	_, err = c.handleStoreName(peerAddr, &wire.StoreNameArgs{
		ID: c.Self, Name: name, Value: value, Seq: 1,
		PublicKey: pub, Signature: sig, Token: token,
	})
	require.NoError(t, err)

	rec, ok := c.Store.GetName(nameID)
	require.True(t, ok)
	assert.Equal(t, value, rec.Value)
}

func TestHandleStoreNameRejectsMissingClusterSignatureWhenWriteGated(t *testing.T) {
	c := newTestCluster(t)
	clusterPriv := randomPrivKey(t)
	c.WriteKey = clusterPriv.PubKey().SerializeCompressed()

	peerAddr := netip.MustParseAddrPort("10.0.0.5:6881")
	priv := randomPrivKey(t)
	pub := priv.PubKey().SerializeCompressed()
	name := ownedName(t, pub)
	value := []byte("record")

	sig, err := envelope.SchnorrSign(priv, name, value, 1)
	require.NoError(t, err)

	nameID := ids.Hash([]byte(name))
	token := c.Tokens.Mint(peerAddr, nameID)

	_, err = c.handleStoreName(peerAddr, &wire.StoreNameArgs{
		ID: c.Self, Name: name, Value: value, TTL: 3600, Seq: 1,
		PublicKey: pub, Signature: sig, Token: token,
	})
	assert.Error(t, err)

	clusterSig, err := envelope.ClusterSign(clusterPriv, name, value, 1, 3600)
	require.NoError(t, err)

	_, err = c.handleStoreName(peerAddr, &wire.StoreNameArgs{
		ID: c.Self, Name: name, Value: value, TTL: 3600, Seq: 1,
		PublicKey: pub, Signature: sig, ClusterSignature: clusterSig, Token: token,
	})
	require.NoError(t, err)
}
