package search

import (
	"sort"
	"sync"

	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
)

// maxShortlist bounds how many candidates a lookup tracks at once, so a
// chatty responder handing back hundreds of nodes can't make a single
// lookup grow unbounded.
const maxShortlist = 64

// shortlist is the set of candidate contacts an iterative lookup is
// converging toward target, ordered by distance and tracking which
// contacts have already been queried.
type shortlist struct {
	mu      sync.Mutex
	target  ids.NodeID
	entries []*dht.Node
	queried map[ids.NodeID]bool
}

func newShortlist(target ids.NodeID, seed []*dht.Node) *shortlist {
	s := &shortlist{
		target:  target,
		queried: make(map[ids.NodeID]bool),
	}
	s.insert(seed)
	return s
}

// insert merges candidates into the list, deduplicating by id and
// re-sorting by distance to target, then truncating to maxShortlist.
func (s *shortlist) insert(candidates []*dht.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[ids.NodeID]bool, len(s.entries))
	for _, n := range s.entries {
		seen[n.ID] = true
	}
	for _, n := range candidates {
		if n == nil || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.entries = append(s.entries, n)
	}

	sort.Slice(s.entries, func(i, j int) bool {
		return ids.CompareDistance(s.entries[i].ID, s.entries[j].ID, s.target)
	})
	if len(s.entries) > maxShortlist {
		s.entries = s.entries[:maxShortlist]
	}
}

// nextBatch returns up to n contacts that haven't been queried yet,
// closest first, and marks them as queried so a concurrent caller won't
// pick the same ones.
func (s *shortlist) nextBatch(n int) []*dht.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*dht.Node
	for _, c := range s.entries {
		if len(out) >= n {
			break
		}
		if s.queried[c.ID] {
			continue
		}
		s.queried[c.ID] = true
		out = append(out, c)
	}
	return out
}

// closest returns up to k contacts, regardless of query state.
func (s *shortlist) closest(k int) []*dht.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k > len(s.entries) {
		k = len(s.entries)
	}
	out := make([]*dht.Node, k)
	copy(out, s.entries[:k])
	return out
}

// exhausted reports whether every contact in the list has been queried,
// the iterative lookup's standard termination condition (spec §4.6,
// §8 property 9).
func (s *shortlist) exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.entries {
		if !s.queried[c.ID] {
			return false
		}
	}
	return true
}
