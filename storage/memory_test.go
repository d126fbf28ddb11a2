package storage

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

func TestValueRoundTrip(t *testing.T) {
	m := NewMemory()
	key, err := ids.Random()
	require.NoError(t, err)

	_, ok := m.GetValue(key)
	assert.False(t, ok)

	m.PutValue(key, []byte("hello"))
	v, ok := m.GetValue(key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestPutNameRejectsStaleSeq(t *testing.T) {
	m := NewMemory()
	nameID, err := ids.Random()
	require.NoError(t, err)

	assert.True(t, m.PutName(nameID, NameRecord{Value: []byte("v1"), Seq: 5}))
	assert.False(t, m.PutName(nameID, NameRecord{Value: []byte("v0"), Seq: 4}))
	assert.False(t, m.PutName(nameID, NameRecord{Value: []byte("v1-replay"), Seq: 5}))
	assert.True(t, m.PutName(nameID, NameRecord{Value: []byte("v2"), Seq: 6}))

	rec, ok := m.GetName(nameID)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), rec.Value)
}

func TestPeerAnnouncements(t *testing.T) {
	m := NewMemory()
	infoHash, err := ids.Random()
	require.NoError(t, err)

	addr := netip.MustParseAddrPort("10.0.0.1:6881")
	now := time.Unix(0, 0)
	m.PutPeer(infoHash, addr, now)

	peers := m.GetPeers(infoHash)
	require.Len(t, peers, 1)
	assert.Equal(t, addr, peers[0].Addr)

	m.PutPeer(infoHash, addr, now.Add(time.Minute))
	peers = m.GetPeers(infoHash)
	require.Len(t, peers, 1, "re-announcing the same address should refresh, not duplicate")
}
