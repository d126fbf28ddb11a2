package dht

import (
	"sync"
	"time"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// BucketSize is k, the maximum number of nodes a bucket holds (spec §4.1).
const BucketSize = 8

// Bucket holds up to BucketSize nodes sharing a common range of distance
// from the table's own id. Nodes are kept least-recently-seen first, so
// the front of the slice is always the first eviction candidate.
type Bucket struct {
	mu          sync.RWMutex
	nodes       []*Node
	lastChanged time.Time
}

func newBucket(tp TimeProvider) *Bucket {
	return &Bucket{
		nodes:       make([]*Node, 0, BucketSize),
		lastChanged: tp.Now(),
	}
}

// Size returns the number of nodes currently in the bucket.
func (b *Bucket) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// HasSpace reports whether the bucket can accept another node without
// evicting one.
func (b *Bucket) HasSpace() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes) < BucketSize
}

// IsFull is the complement of HasSpace.
func (b *Bucket) IsFull() bool { return !b.HasSpace() }

// Age reports how long it has been since the bucket's membership last
// changed, the signal bucket maintenance uses to decide whether it needs
// refreshing (spec §9 "bucket maintenance").
func (b *Bucket) Age(now time.Time) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return now.Sub(b.lastChanged)
}

// find returns the index of id in nodes, or -1. Caller must hold a lock.
func (b *Bucket) find(id ids.NodeID) int {
	for i, n := range b.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the node with the given id, if present.
func (b *Bucket) Get(id ids.NodeID) (*Node, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.find(id); i >= 0 {
		return b.nodes[i], true
	}
	return nil, false
}

// Add inserts node, moving it to the most-recently-seen end if it was
// already present. Returns false if the bucket is full of nodes that
// aren't in StatusBad — the caller must evict or split before retrying.
func (b *Bucket) Add(node *Node, tp TimeProvider) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.find(node.ID); i >= 0 {
		b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
		b.nodes = append(b.nodes, node)
		b.lastChanged = tp.Now()
		return true
	}

	if len(b.nodes) < BucketSize {
		b.nodes = append(b.nodes, node)
		b.lastChanged = tp.Now()
		return true
	}

	for i, existing := range b.nodes {
		if existing.Status == StatusBad {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.nodes = append(b.nodes, node)
			b.lastChanged = tp.Now()
			return true
		}
	}

	return false
}

// Remove deletes id from the bucket, reporting whether it was present.
func (b *Bucket) Remove(id ids.NodeID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.find(id); i >= 0 {
		b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
		return true
	}
	return false
}

// All returns a snapshot copy of the bucket's nodes, oldest first.
func (b *Bucket) All() []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Filter removes every node for which keep returns false, returning the
// removed nodes. The maintenance review does not use it; it removes dead
// nodes one by one with Remove.
func (b *Bucket) Filter(keep func(*Node) bool) []*Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []*Node
	kept := b.nodes[:0:0]
	for _, n := range b.nodes {
		if keep(n) {
			kept = append(kept, n)
		} else {
			removed = append(removed, n)
		}
	}
	b.nodes = kept
	return removed
}

// Touch records that the bucket's membership changed just now, without
// altering its contents — used after an external mutation such as an
// in-place status update.
func (b *Bucket) Touch(tp TimeProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastChanged = tp.Now()
}
