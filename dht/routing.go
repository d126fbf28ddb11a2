// This file implements the routing table: a dynamic list of k-buckets
// organized by XOR distance from the table's own id, with the closest
// bucket to self able to split as it fills (spec §4.1, §4.5).
//
// Unlike a table that preallocates one bucket per bit of the id space,
// CrissCrossDHT's table starts with a single bucket covering the entire
// space and grows only the last bucket — the one that could contain the
// table's own id — splitting it in two each time it fills and its depth
// is still short of the full id width. Every other bucket's range is
// fixed once created, since it can never again contain the table's own
// id and so never needs to split further.
package dht

import (
	"sort"
	"sync"

	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("package", "dht")

// RoutingTable tracks the nodes a single DHT participant knows about,
// organized into k-buckets by XOR distance from self.
type RoutingTable struct {
	mu      sync.RWMutex
	self    ids.NodeID
	buckets []*Bucket
	tp      TimeProvider
}

// NewRoutingTable creates an empty table for self, starting with one
// bucket spanning the whole id space.
func NewRoutingTable(self ids.NodeID, tp TimeProvider) *RoutingTable {
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	return &RoutingTable{
		self:    self,
		buckets: []*Bucket{newBucket(tp)},
		tp:      tp,
	}
}

// Self returns the table's own id.
func (rt *RoutingTable) Self() ids.NodeID { return rt.self }

// bucketIndexFor returns which bucket id belongs in: its common-prefix
// length with self, clamped to the last bucket if the table hasn't split
// out that far yet. Caller must hold rt.mu.
func (rt *RoutingTable) bucketIndexFor(id ids.NodeID) int {
	cpl := ids.BucketIndex(rt.self, id)
	if cpl >= len(rt.buckets) {
		return len(rt.buckets) - 1
	}
	return cpl
}

// canSplit reports whether the last bucket is eligible to split: it must
// be the bucket self itself would fall into, and the table must not have
// already split out to the full id width.
func (rt *RoutingTable) canSplit(index int) bool {
	return index == len(rt.buckets)-1 && index < ids.Bits-1
}

// split divides the last bucket into two: the existing bucket keeps nodes
// whose common-prefix length with self is exactly its old index, and a new
// bucket, appended after it, takes nodes whose common-prefix length is
// greater.
func (rt *RoutingTable) split() {
	oldIndex := len(rt.buckets) - 1
	old := rt.buckets[oldIndex]

	next := newBucket(rt.tp)
	kept := old.nodes[:0:0]
	for _, n := range old.nodes {
		if ids.BucketIndex(rt.self, n.ID) > oldIndex {
			next.nodes = append(next.nodes, n)
		} else {
			kept = append(kept, n)
		}
	}
	old.nodes = kept
	rt.buckets = append(rt.buckets, next)
}

// Insert adds or refreshes node in the table, splitting the last bucket as
// needed (spec §4.5 insertion algorithm). It returns false if the node was
// dropped because its bucket was full of live nodes and not eligible to
// split.
func (rt *RoutingTable) Insert(node *Node) bool {
	if node.ID == rt.self {
		return false
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for {
		index := rt.bucketIndexFor(node.ID)
		bucket := rt.buckets[index]

		if bucket.Add(node, rt.tp) {
			return true
		}

		if !rt.canSplit(index) {
			log.WithFields(logrus.Fields{
				"bucket": index,
				"node":   node.ID.String(),
			}).Debug("dropping node, bucket full and not splittable")
			return false
		}

		rt.split()
	}
}

// Remove deletes id from whichever bucket holds it.
func (rt *RoutingTable) Remove(id ids.NodeID) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	index := rt.bucketIndexFor(id)
	return rt.buckets[index].Remove(id)
}

// Get returns the node for id, if the table knows it.
func (rt *RoutingTable) Get(id ids.NodeID) (*Node, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	index := rt.bucketIndexFor(id)
	return rt.buckets[index].Get(id)
}

// ClosestNodes returns up to count nodes ordered by increasing XOR
// distance to target, searched across every bucket rather than just the
// one target would hash into — a single bucket rarely holds count nodes
// once the table has split (spec §4.6 "closest_nodes").
func (rt *RoutingTable) ClosestNodes(target ids.NodeID, count int) []*Node {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var all []*Node
	for _, b := range rt.buckets {
		all = append(all, b.All()...)
	}

	sort.Slice(all, func(i, j int) bool {
		return ids.CompareDistance(all[i].ID, all[j].ID, target)
	})

	if len(all) > count {
		all = all[:count]
	}
	return all
}

// BucketCount returns how many buckets the table has split into.
func (rt *RoutingTable) BucketCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.buckets)
}

// NodeCount returns the total number of nodes across every bucket.
func (rt *RoutingTable) NodeCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.Size()
	}
	return total
}

// BucketSnapshot describes one bucket's state for inspection tooling.
type BucketSnapshot struct {
	Index int
	Size  int
	Nodes []*Node
}

// Snapshot returns a read-only view of every bucket, for diagnostics and
// tests.
func (rt *RoutingTable) Snapshot() []BucketSnapshot {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make([]BucketSnapshot, len(rt.buckets))
	for i, b := range rt.buckets {
		out[i] = BucketSnapshot{Index: i, Size: b.Size(), Nodes: b.All()}
	}
	return out
}

// forEachBucket applies fn to every bucket and its index, holding only a
// read lock for the duration of the iteration itself (not for fn's body,
// which may need to mutate a bucket).
func (rt *RoutingTable) forEachBucket(fn func(index int, b *Bucket)) {
	rt.mu.RLock()
	buckets := make([]*Bucket, len(rt.buckets))
	copy(buckets, rt.buckets)
	rt.mu.RUnlock()

	for i, b := range buckets {
		fn(i, b)
	}
}
