// This file implements the periodic maintenance CrissCrossDHT runs against
// a routing table: reviewing node liveness, refreshing the neighbourhood
// around self, and refreshing buckets that have gone stale or thin
// (spec §9 "Maintenance timers").
package dht

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// MaintenanceConfig controls how often each maintenance routine runs and
// the staleness thresholds it reviews nodes and buckets against. Each
// routine first runs after a uniform delay between 0 and its interval, and
// after that waits its interval plus up to 100% uniform jitter between
// runs, so a fleet of nodes started together doesn't re-synchronize its
// maintenance traffic.
type MaintenanceConfig struct {
	ReviewInterval        time.Duration
	NeighbourhoodInterval time.Duration
	BucketInterval        time.Duration

	// QuestionableAfter is how long a good node can go unseen before the
	// next review tick demotes it to questionable.
	QuestionableAfter time.Duration
	// DeleteAfter is kept for config compatibility; the review routine does
	// not read it. Deletion waits for a failed ping on a review tick after
	// the one that demoted the node, so a single lost packet can't evict a
	// live peer.
	DeleteAfter time.Duration

	StaleBucketAfter time.Duration
	ThinBucketSize   int
}

// DefaultMaintenanceConfig returns CrissCrossDHT's defaults.
func DefaultMaintenanceConfig() *MaintenanceConfig {
	return &MaintenanceConfig{
		ReviewInterval:        5 * time.Minute,
		NeighbourhoodInterval: 5 * time.Minute,
		BucketInterval:        3 * time.Minute,
		QuestionableAfter:     15 * time.Minute,
		DeleteAfter:           15 * time.Minute,
		StaleBucketAfter:      15 * time.Minute,
		ThinBucketSize:        6,
	}
}

// Pinger probes a single node for liveness, reporting whether it answered.
// The maintainer calls this during review; the daemon supplies
// search.Engine.Ping, which sends the ping through the server package's
// transport.
type Pinger func(ctx context.Context, n *Node) bool

// Lookup runs an iterative find_node search for target, feeding whatever
// it discovers back into the routing table. Its implementation lives in
// the search package.
type Lookup func(ctx context.Context, target ids.NodeID)

// Maintainer runs CrissCrossDHT's three periodic routines against a
// routing table until stopped.
type Maintainer struct {
	table  *RoutingTable
	self   ids.NodeID
	config *MaintenanceConfig
	ping   Pinger
	lookup Lookup
	tp     TimeProvider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewMaintainer creates a maintainer for table. ping and lookup may be nil
// in tests that only exercise the scheduling and threshold logic.
func NewMaintainer(table *RoutingTable, config *MaintenanceConfig, ping Pinger, lookup Lookup, tp TimeProvider) *Maintainer {
	if config == nil {
		config = DefaultMaintenanceConfig()
	}
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Maintainer{
		table:  table,
		self:   table.Self(),
		config: config,
		ping:   ping,
		lookup: lookup,
		tp:     tp,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the three maintenance goroutines. Calling Start twice is
// a no-op.
func (m *Maintainer) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	m.wg.Add(3)
	go m.loop(m.config.ReviewInterval, m.runReview)
	go m.loop(m.config.NeighbourhoodInterval, m.runNeighbourhood)
	go m.loop(m.config.BucketInterval, m.runBucketMaintenance)
}

// Stop cancels all maintenance goroutines and waits for them to exit.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// jitter returns a duration uniformly distributed in [0, d], matching
// CrissCrossDHT's "up to 100% jitter" timer policy.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func (m *Maintainer) loop(interval time.Duration, run func()) {
	defer m.wg.Done()

	timer := time.NewTimer(jitter(interval))
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-timer.C:
			run()
			timer.Reset(interval + jitter(interval))
		}
	}
}

// runReview walks every node in the table, demoting nodes that have gone
// quiet past QuestionableAfter to questionable, pinging questionable
// nodes, and deleting any that are still unresponsive on the review tick
// *after* they were first marked questionable. A node demoted on this tick
// is pinged on this tick too, but a failed ping only deletes it on a later
// tick, so one lost packet at the threshold doesn't evict an
// otherwise-live peer (spec §4.5, §9 "review").
//
// Nodes are snapshotted under the bucket's lock, then pinged with no lock
// held — a ping is a network round trip, and the table must stay usable by
// concurrent lookups while one is in flight (spec §5 on suspension points).
func (m *Maintainer) runReview() {
	now := m.tp.Now()

	m.table.forEachBucket(func(_ int, b *Bucket) {
		var toRemove []ids.NodeID

		for _, n := range b.All() {
			age := n.Age(now)
			wasQuestionable := n.Status == StatusQuestionable

			if n.Status == StatusGood && age >= m.config.QuestionableAfter {
				n.Status = StatusQuestionable
			}

			if n.Status != StatusQuestionable || m.ping == nil {
				continue
			}

			if m.ping(m.ctx, n) {
				n.Touch(m.tp)
				continue
			}

			if !wasQuestionable {
				// first tick of unresponsiveness: wait for the next review
				// before giving up on it.
				continue
			}
			n.RecordPingResponse(false, m.tp)
			toRemove = append(toRemove, n.ID)
		}

		for _, id := range toRemove {
			b.Remove(id)
		}
		if len(toRemove) > 0 {
			b.Touch(m.tp)
		}
	})
}

// runNeighbourhood looks up a random id close to self, discovering and
// inserting nodes in the neighbourhood that hasn't heard from anyone
// lately (spec §9 "neighbourhood maintenance").
func (m *Maintainer) runNeighbourhood() {
	if m.lookup == nil {
		return
	}
	target, err := ids.InBucketRange(m.self, ids.Bits-1)
	if err != nil {
		return
	}
	m.lookup(m.ctx, target)
}

// runBucketMaintenance refreshes any bucket that has gone stale or thin by
// looking up a random id that would land in it, pulling in fresh
// candidates (spec §9 "bucket maintenance").
func (m *Maintainer) runBucketMaintenance() {
	if m.lookup == nil {
		return
	}

	now := m.tp.Now()
	var targets []ids.NodeID

	m.table.forEachBucket(func(index int, b *Bucket) {
		if b.Age(now) < m.config.StaleBucketAfter && b.Size() >= m.config.ThinBucketSize {
			return
		}
		target, err := ids.InBucketRange(m.self, index)
		if err != nil {
			return
		}
		targets = append(targets, target)
	})

	for _, t := range targets {
		m.lookup(m.ctx, t)
	}
}
