package storage

import (
	"net/netip"
	"sync"
	"time"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// Memory is an in-memory Storage implementation. It is the only
// implementation CrissCrossDHT ships: every node in the overlay holds its
// own shard of the keyspace in RAM, with no external dependency, matching
// a Kademlia node's usual role as a cache rather than a durable store
// (spec §4.2, §6).
type Memory struct {
	mu     sync.RWMutex
	values map[ids.NodeID][]byte
	names  map[ids.NodeID]NameRecord
	peers  map[ids.NodeID]map[netip.AddrPort]Peer
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[ids.NodeID][]byte),
		names:  make(map[ids.NodeID]NameRecord),
		peers:  make(map[ids.NodeID]map[netip.AddrPort]Peer),
	}
}

func (m *Memory) GetValue(key ids.NodeID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) PutValue(key ids.NodeID, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Memory) GetName(nameID ids.NodeID) (NameRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.names[nameID]
	return rec, ok
}

// PutName rejects rec if a record is already stored under nameID with a
// Seq greater than or equal to rec.Seq, preventing a replayed or
// out-of-order write from rolling a name record backward
// (spec §8 property 7).
func (m *Memory) PutName(nameID ids.NodeID, rec NameRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.names[nameID]
	if ok && existing.Seq >= rec.Seq {
		return false
	}
	m.names[nameID] = rec
	return true
}

func (m *Memory) GetPeers(infoHash ids.NodeID) []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.peers[infoHash]
	out := make([]Peer, 0, len(bucket))
	for _, p := range bucket {
		out = append(out, p)
	}
	return out
}

func (m *Memory) PutPeer(infoHash ids.NodeID, addr netip.AddrPort, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.peers[infoHash]
	if !ok {
		bucket = make(map[netip.AddrPort]Peer)
		m.peers[infoHash] = bucket
	}
	bucket[addr] = Peer{Addr: addr, StoredAt: now}
}
