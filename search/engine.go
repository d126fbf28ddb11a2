package search

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

// Alpha is the number of contacts queried in parallel during each round of
// an iterative lookup (spec §4.6).
const Alpha = 3

// K mirrors the bucket capacity: an iterative lookup converges on the K
// nodes closest to its target.
const K = dht.BucketSize

var log = logrus.WithField("package", "search")

// Transport sends msg to node and returns its matched response, or an
// error if node never answers within ctx's deadline. Implementations live
// in the server package, which owns envelope sealing and socket I/O.
type Transport interface {
	Query(ctx context.Context, node *dht.Node, msg *wire.Message) (*wire.Message, error)
}

// ErrNoResponse names the case of a lookup's shortlist being exhausted
// without a terminal (found) result. The lookups in this package do not
// return it: an exhausted lookup reports "not found" with a nil error.
var ErrNoResponse = errors.New("search: lookup exhausted with no result")

// Engine runs iterative lookups against a routing table over a Transport.
type Engine struct {
	table     *dht.RoutingTable
	transport Transport
	tp        dht.TimeProvider
}

// NewEngine creates an Engine. tp may be nil to use the real clock.
func NewEngine(table *dht.RoutingTable, transport Transport, tp dht.TimeProvider) *Engine {
	return &Engine{table: table, transport: transport, tp: tp}
}

// roundResult is what a single contact's query round contributes to the
// lookup: candidate next hops, and — for queries that can terminate a
// lookup early — the terminal response itself.
type roundResult struct {
	contact  *dht.Node
	response *wire.Message
	err      error
}

// converge drives the standard iterative-deepening loop: repeatedly query
// up to Alpha not-yet-queried contacts from the shortlist, merge whatever
// next hops they return, and stop either when terminal reports a terminal
// result or when the shortlist is exhausted (spec §4.6, §8 property 9).
//
// build constructs the query message to send to a given contact; extract
// pulls candidate next-hop nodes out of a response; terminal reports
// whether a response satisfies the lookup (a value/name/peers hit) so the
// loop can stop converging and return immediately.
func (e *Engine) converge(
	ctx context.Context,
	target ids.NodeID,
	build func(contact *dht.Node) *wire.Message,
	extract func(resp *wire.Message) []*dht.Node,
	terminal func(resp *wire.Message) bool,
) (terminalResp *wire.Message, closest []*dht.Node, err error) {
	seed := e.table.ClosestNodes(target, K)
	list := newShortlist(target, seed)

	for {
		batch := list.nextBatch(Alpha)
		if len(batch) == 0 {
			break
		}

		results := e.queryBatch(ctx, batch, build)

		for _, r := range results {
			if r.err != nil {
				log.WithFields(logrus.Fields{
					"contact": r.contact.ID.String(),
					"error":   r.err,
				}).Debug("contact did not respond")
				continue
			}

			r.contact.Touch(e.tp)
			e.table.Insert(r.contact)

			if terminal != nil && terminal(r.response) {
				return r.response, list.closest(K), nil
			}

			if extract != nil {
				list.insert(extract(r.response))
			}
		}

		if list.exhausted() {
			break
		}

		select {
		case <-ctx.Done():
			return nil, list.closest(K), ctx.Err()
		default:
		}
	}

	return nil, list.closest(K), nil
}

func (e *Engine) queryBatch(ctx context.Context, batch []*dht.Node, build func(*dht.Node) *wire.Message) []roundResult {
	results := make([]roundResult, len(batch))
	var wg sync.WaitGroup
	for i, contact := range batch {
		wg.Add(1)
		go func(i int, contact *dht.Node) {
			defer wg.Done()
			resp, err := e.transport.Query(ctx, contact, build(contact))
			results[i] = roundResult{contact: contact, response: resp, err: err}
		}(i, contact)
	}
	wg.Wait()
	return results
}

func extractNodes(nodes4, nodes6 []wire.CompactNode) []*dht.Node {
	out := make([]*dht.Node, 0, len(nodes4)+len(nodes6))
	for _, n := range nodes4 {
		out = append(out, dht.NewNode(n.ID, n.Addr, nil))
	}
	for _, n := range nodes6 {
		out = append(out, dht.NewNode(n.ID, n.Addr, nil))
	}
	return out
}

// Ping sends a single liveness probe to node, reporting whether it
// answered. It is what dht.Maintainer's review routine uses to decide
// whether a questionable node is actually still alive (spec §9 "review").
func (e *Engine) Ping(ctx context.Context, node *dht.Node) bool {
	msg := &wire.Message{
		Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryPing,
		Args: &wire.PingArgs{ID: e.table.Self()},
	}
	resp, err := e.transport.Query(ctx, node, msg)
	if err != nil {
		return false
	}
	_, ok := resp.Result.(*wire.PingResult)
	return ok
}

// FindNode runs a pure find_node convergence and returns the K closest
// nodes discovered (spec §4.6 "find_node lookup").
func (e *Engine) FindNode(ctx context.Context, target ids.NodeID) ([]*dht.Node, error) {
	_, closest, err := e.converge(ctx, target,
		func(contact *dht.Node) *wire.Message {
			return &wire.Message{
				Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryFindNode,
				Args: &wire.FindNodeArgs{ID: e.table.Self(), Target: target},
			}
		},
		func(resp *wire.Message) []*dht.Node {
			res, ok := resp.Result.(*wire.NodesResult)
			if !ok {
				return nil
			}
			return extractNodes(res.Nodes4, res.Nodes6)
		},
		nil,
	)
	return closest, err
}

// FindValue converges toward key, returning the stored value the first
// time a contact reports one, or the K closest nodes if none did
// (spec §4.6 "find_value lookup").
func (e *Engine) FindValue(ctx context.Context, key ids.NodeID) (value []byte, found bool, closest []*dht.Node, err error) {
	term, closest, err := e.converge(ctx, key,
		func(contact *dht.Node) *wire.Message {
			return &wire.Message{
				Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryFindValue,
				Args: &wire.FindValueArgs{ID: e.table.Self(), Key: key},
			}
		},
		func(resp *wire.Message) []*dht.Node {
			res, ok := resp.Result.(*wire.ValueResult)
			if !ok || res.Found {
				return nil
			}
			return extractNodes(res.Nodes4, res.Nodes6)
		},
		func(resp *wire.Message) bool {
			res, ok := resp.Result.(*wire.ValueResult)
			return ok && res.Found
		},
	)
	if term != nil {
		return term.Result.(*wire.ValueResult).Value, true, closest, err
	}
	return nil, false, closest, err
}

// NameRecord is the signed payload a find_name lookup converges on.
type NameRecord struct {
	Value     []byte
	Seq       uint64
	PublicKey []byte
	Signature []byte
}

// FindName converges toward a name's id, returning the first signed record
// a contact reports; records other contacts may hold are not compared by
// sequence number (spec §4.6 "find_name lookup").
func (e *Engine) FindName(ctx context.Context, nameID ids.NodeID, name string) (*NameRecord, []*dht.Node, error) {
	term, closest, err := e.converge(ctx, nameID,
		func(contact *dht.Node) *wire.Message {
			return &wire.Message{
				Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryFindName,
				Args: &wire.FindNameArgs{ID: e.table.Self(), Name: name},
			}
		},
		func(resp *wire.Message) []*dht.Node {
			res, ok := resp.Result.(*wire.NameResult)
			if !ok || res.Found {
				return nil
			}
			return extractNodes(res.Nodes4, res.Nodes6)
		},
		func(resp *wire.Message) bool {
			res, ok := resp.Result.(*wire.NameResult)
			return ok && res.Found
		},
	)
	if term == nil {
		return nil, closest, err
	}
	res := term.Result.(*wire.NameResult)
	return &NameRecord{Value: res.Value, Seq: res.Seq, PublicKey: res.PublicKey, Signature: res.Signature}, closest, err
}

// PeersLookupResult is what a get_peers convergence discovers: announced
// peers if any contact had them, and the write token each of the K
// closest contacts handed back for a follow-up announce_peer.
type PeersLookupResult struct {
	Peers   []netip.AddrPort
	Found   bool
	Closest []*dht.Node
	Tokens  map[ids.NodeID][]byte
}

// GetPeers converges toward infoHash, collecting both announced peers and
// per-contact write tokens along the way (spec §4.6 "get_peers lookup",
// §9 "Token design").
func (e *Engine) GetPeers(ctx context.Context, infoHash ids.NodeID) (*PeersLookupResult, error) {
	var mu sync.Mutex
	tokens := make(map[ids.NodeID][]byte)
	var peers []netip.AddrPort
	var foundAny bool

	_, closest, err := e.converge(ctx, infoHash,
		func(contact *dht.Node) *wire.Message {
			return &wire.Message{
				Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryGetPeers,
				Args: &wire.GetPeersArgs{ID: e.table.Self(), InfoHash: infoHash},
			}
		},
		func(resp *wire.Message) []*dht.Node {
			res, ok := resp.Result.(*wire.PeersResult)
			if !ok {
				return nil
			}
			mu.Lock()
			if len(res.Token) > 0 {
				tokens[res.ID] = res.Token
			}
			if res.Found {
				foundAny = true
				peers = append(peers, res.Peers4...)
				peers = append(peers, res.Peers6...)
			}
			mu.Unlock()
			if res.Found {
				return nil
			}
			return extractNodes(res.Nodes4, res.Nodes6)
		},
		nil,
	)

	return &PeersLookupResult{Peers: peers, Found: foundAny, Closest: closest, Tokens: tokens}, err
}

// tidCounter backs newTID, seeded randomly at startup so restarting a
// process doesn't replay small transaction ids an in-flight peer might
// still associate with a previous run.
var tidCounter uint64

func init() {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err == nil {
		tidCounter = binary.BigEndian.Uint64(seed[:])
	}
}

// newTID generates an 8-byte big-endian transaction id from a monotonic
// counter: strictly increasing, so two queries from the same process can
// never collide and a fresh id never needs to be regenerated (spec §4.2,
// §6 "transaction ids").
func newTID() []byte {
	n := atomic.AddUint64(&tidCounter, 1)
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
