package server

import (
	"net/netip"
	"testing"

	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
)

func nodeFixture(t *testing.T, id ids.NodeID) *dht.Node {
	t.Helper()
	return dht.NewNode(id, netip.MustParseAddrPort("127.0.0.1:6881"), nil)
}
