package search

import (
	"context"
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

// fakeTransport simulates a tiny network of nodes, each knowing some
// subset of the others, so a lookup actually has to hop to converge.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[ids.NodeID]func(*wire.Message) (*wire.Message, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[ids.NodeID]func(*wire.Message) (*wire.Message, error))}
}

func (f *fakeTransport) on(id ids.NodeID, fn func(*wire.Message) (*wire.Message, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[id] = fn
}

func (f *fakeTransport) Query(ctx context.Context, node *dht.Node, msg *wire.Message) (*wire.Message, error) {
	f.mu.Lock()
	fn, ok := f.responses[node.ID]
	f.mu.Unlock()
	if !ok {
		return nil, assertNeverCalled{}
	}
	return fn(msg)
}

type assertNeverCalled struct{}

func (assertNeverCalled) Error() string { return "no responder configured" }

func mustRandomID(t *testing.T) ids.NodeID {
	t.Helper()
	id, err := ids.Random()
	require.NoError(t, err)
	return id
}

func testAddr() netip.AddrPort { return netip.MustParseAddrPort("127.0.0.1:1") }

func TestFindNodeConvergesThroughIntermediateHop(t *testing.T) {
	self := mustRandomID(t)
	target := mustRandomID(t)
	mid := mustRandomID(t)
	near := mustRandomID(t)

	table := dht.NewRoutingTable(self, nil)
	midNode := dht.NewNode(mid, testAddr(), nil)
	table.Insert(midNode)

	transport := newFakeTransport()
	transport.on(mid, func(m *wire.Message) (*wire.Message, error) {
		return &wire.Message{
			Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryFindNode,
			Result: &wire.NodesResult{
				ID:     mid,
				Nodes4: []wire.CompactNode{{ID: near, Addr: testAddr()}},
			},
		}, nil
	})
	transport.on(near, func(m *wire.Message) (*wire.Message, error) {
		return &wire.Message{
			Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryFindNode,
			Result: &wire.NodesResult{ID: near},
		}, nil
	})

	e := NewEngine(table, transport, nil)
	closest, err := e.FindNode(context.Background(), target)
	require.NoError(t, err)

	var sawNear bool
	for _, n := range closest {
		if n.ID == near {
			sawNear = true
		}
	}
	assert.True(t, sawNear, "lookup should have discovered the node behind the intermediate hop")
}

func TestFindValueStopsAtFirstHit(t *testing.T) {
	self := mustRandomID(t)
	key := mustRandomID(t)
	holder := mustRandomID(t)

	table := dht.NewRoutingTable(self, nil)
	table.Insert(dht.NewNode(holder, testAddr(), nil))

	transport := newFakeTransport()
	transport.on(holder, func(m *wire.Message) (*wire.Message, error) {
		return &wire.Message{
			Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryFindValue,
			Result: &wire.ValueResult{ID: holder, Found: true, Value: []byte("payload")},
		}, nil
	})

	e := NewEngine(table, transport, nil)
	value, found, _, err := e.FindValue(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), value)
}

func TestFindValueMissReturnsClosest(t *testing.T) {
	self := mustRandomID(t)
	key := mustRandomID(t)
	n := mustRandomID(t)

	table := dht.NewRoutingTable(self, nil)
	table.Insert(dht.NewNode(n, testAddr(), nil))

	transport := newFakeTransport()
	transport.on(n, func(m *wire.Message) (*wire.Message, error) {
		return &wire.Message{
			Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryFindValue,
			Result: &wire.ValueResult{ID: n, Found: false},
		}, nil
	})

	e := NewEngine(table, transport, nil)
	_, found, closest, err := e.FindValue(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NotEmpty(t, closest)
}

func TestGetPeersCollectsTokensFromEveryContact(t *testing.T) {
	self := mustRandomID(t)
	infoHash := mustRandomID(t)
	n := mustRandomID(t)

	table := dht.NewRoutingTable(self, nil)
	table.Insert(dht.NewNode(n, testAddr(), nil))

	transport := newFakeTransport()
	transport.on(n, func(m *wire.Message) (*wire.Message, error) {
		return &wire.Message{
			Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryGetPeers,
			Result: &wire.PeersResult{ID: n, Token: []byte("tok"), Found: false},
		}, nil
	})

	e := NewEngine(table, transport, nil)
	res, err := e.GetPeers(context.Background(), infoHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), res.Tokens[n])
}

func TestStoreValueWritesToEveryConvergedContact(t *testing.T) {
	self := mustRandomID(t)
	key := mustRandomID(t)
	n := mustRandomID(t)

	table := dht.NewRoutingTable(self, nil)
	table.Insert(dht.NewNode(n, testAddr(), nil))

	transport := newFakeTransport()
	var storeCalled bool
	transport.on(n, func(m *wire.Message) (*wire.Message, error) {
		if m.Query == wire.QueryGetPeers {
			return &wire.Message{
				Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryGetPeers,
				Result: &wire.PeersResult{ID: n, Token: []byte("tok"), Found: false},
			}, nil
		}
		storeCalled = true
		args := m.Args.(*wire.StoreArgs)
		assert.Equal(t, []byte("tok"), args.Token)
		return &wire.Message{Class: wire.ClassResponse, TID: m.TID, Query: wire.QueryStore, Result: &wire.StoreResult{ID: n}}, nil
	})

	e := NewEngine(table, transport, nil)
	outcomes, err := e.StoreValue(context.Background(), key, []byte("value"), 0, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.True(t, storeCalled)
}
