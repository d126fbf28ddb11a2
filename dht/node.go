// Package dht implements CrissCrossDHT's Kademlia-style routing table:
// k-buckets organized by XOR distance, dynamic bucket splitting, and the
// periodic maintenance that keeps the table populated with live nodes.
package dht

import (
	"net/netip"
	"time"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since the given time.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// defaultTimeProvider is the package-level default for standalone functions.
var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// SetDefaultTimeProvider sets the package-level time provider for testing.
// Pass nil to reset to the default implementation.
func SetDefaultTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	defaultTimeProvider = tp
}

// getDefaultTimeProvider returns the package-level time provider.
func getDefaultTimeProvider() TimeProvider {
	return defaultTimeProvider
}

// Status reflects how recently and reliably a node has responded, the
// three liveness states bucket maintenance reviews every node against
// (spec §4.5, §9).
type Status uint8

const (
	StatusGood Status = iota
	StatusQuestionable
	StatusBad
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusQuestionable:
		return "questionable"
	case StatusBad:
		return "bad"
	default:
		return "unknown"
	}
}

// PingStats tracks liveness-probe history for a node.
type PingStats struct {
	LastPingSent     time.Time
	LastPingReceived time.Time
	PingCount        uint32
	SuccessCount     uint32
	FailureCount     uint32
}

// Node is a single routable peer in the table.
type Node struct {
	ID        ids.NodeID
	Addr      netip.AddrPort
	LastSeen  time.Time
	Status    Status
	PingStats PingStats
}

// NewNode creates a node last-seen at tp.Now(), in the questionable state
// until it proves itself with a successful ping.
func NewNode(id ids.NodeID, addr netip.AddrPort, tp TimeProvider) *Node {
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	return &Node{
		ID:       id,
		Addr:     addr,
		LastSeen: tp.Now(),
		Status:   StatusQuestionable,
	}
}

// Touch marks the node as freshly seen and good, as a successful query
// response or inbound query does (spec §4.5 "liveness").
func (n *Node) Touch(tp TimeProvider) {
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	n.LastSeen = tp.Now()
	n.Status = StatusGood
}

// RecordPingSent notes that a liveness probe was sent to this node.
func (n *Node) RecordPingSent(tp TimeProvider) {
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	n.PingStats.LastPingSent = tp.Now()
	n.PingStats.PingCount++
}

// RecordPingResponse notes whether a liveness probe was answered, updating
// the node's status accordingly.
func (n *Node) RecordPingResponse(success bool, tp TimeProvider) {
	if tp == nil {
		tp = getDefaultTimeProvider()
	}
	if success {
		n.PingStats.LastPingReceived = tp.Now()
		n.PingStats.SuccessCount++
		n.Touch(tp)
		return
	}
	n.PingStats.FailureCount++
	n.Status = StatusBad
}

// Age reports how long it has been since the node was last seen.
func (n *Node) Age(now time.Time) time.Duration {
	return now.Sub(n.LastSeen)
}
