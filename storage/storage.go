package storage

import (
	"net/netip"
	"time"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// NameRecord is a signed, mutable record published under a name, ordered
// by Seq so a stale write can never clobber a newer one (spec §4.2
// "store_name", §8 property 7 "name-record monotonicity").
type NameRecord struct {
	Value     []byte
	Seq       uint64
	PublicKey []byte
	Signature []byte
	StoredAt  time.Time
}

// Peer is a single announced reachable address under an info hash, with
// the time it was last refreshed. Memory records this time but never
// expires announcements.
type Peer struct {
	Addr      netip.AddrPort
	StoredAt  time.Time
}

// Storage is the node-local persistence surface every handler writes
// through and reads from (spec §6). Implementations must be safe for
// concurrent use.
type Storage interface {
	// GetValue returns the immutable value stored under key, if any.
	GetValue(key ids.NodeID) ([]byte, bool)
	// PutValue stores an immutable value under key = hash(value).
	PutValue(key ids.NodeID, value []byte)

	// GetName returns the current record for name, if any.
	GetName(nameID ids.NodeID) (NameRecord, bool)
	// PutName stores rec under nameID if nothing is stored there yet or
	// rec.Seq is strictly greater than the stored Seq, returning false if
	// rec was rejected as stale (an equal Seq is rejected).
	PutName(nameID ids.NodeID, rec NameRecord) bool

	// GetPeers returns every peer announced under infoHash.
	GetPeers(infoHash ids.NodeID) []Peer
	// PutPeer records addr as reachable for infoHash, refreshing its
	// StoredAt if already present.
	PutPeer(infoHash ids.NodeID, addr netip.AddrPort, now time.Time)
}
