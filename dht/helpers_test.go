package dht

import (
	"net/netip"
	"testing"
)

func addr(t *testing.T) netip.AddrPort {
	t.Helper()
	return netip.MustParseAddrPort("127.0.0.1:6881")
}
