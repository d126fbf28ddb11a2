package search

import (
	"context"

	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

// WriteOutcome reports, per contact, whether a direct write (store,
// store_name, announce_peer) succeeded.
type WriteOutcome struct {
	Node *dht.Node
	Err  error
}

// StoreValue runs the two-phase store: phase one converges on key with a
// get_peers lookup, collecting write tokens from the contacts it reaches;
// phase two sends a store to each of the K closest with the
// token it issued. sig is the signature over combine(key, value, ttl)
// under the cluster's write key, required whenever the target cluster is
// write-gated; callers publishing to a cluster with no write key may pass
// a zero ttl and nil sig (spec §3 "Value record", §4.6 "two-phase store",
// §4.7 "store").
func (e *Engine) StoreValue(ctx context.Context, key ids.NodeID, value []byte, ttl uint64, sig []byte) ([]WriteOutcome, error) {
	tokenResult, err := e.GetPeers(ctx, key)
	if err != nil && tokenResult == nil {
		return nil, err
	}

	outcomes := make([]WriteOutcome, 0, len(tokenResult.Closest))
	for _, contact := range tokenResult.Closest {
		token := tokenResult.Tokens[contact.ID]
		msg := &wire.Message{
			Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryStore,
			Args: &wire.StoreArgs{ID: e.table.Self(), Key: key, Value: value, TTL: ttl, Signature: sig, Token: token},
		}
		_, werr := e.transport.Query(ctx, contact, msg)
		outcomes = append(outcomes, WriteOutcome{Node: contact, Err: werr})
	}
	return outcomes, nil
}

// StoreName runs the two-phase store for a signed, mutable name record:
// phase one converges on the name's id collecting write tokens, phase two
// writes the signed record to each of the K closest contacts. sig is
// sig_ns, proving ownership under pubKey; clusterSig is sig_cluster,
// additionally required whenever the target cluster is write-gated
// (spec §3 "Name record", §4.6 "two-phase store", §4.2 "store_name").
func (e *Engine) StoreName(ctx context.Context, nameID ids.NodeID, name string, value []byte, ttl, seq uint64, pubKey, sig, clusterSig []byte) ([]WriteOutcome, error) {
	tokenResult, err := e.GetPeers(ctx, nameID)
	if err != nil && tokenResult == nil {
		return nil, err
	}

	outcomes := make([]WriteOutcome, 0, len(tokenResult.Closest))
	for _, contact := range tokenResult.Closest {
		token := tokenResult.Tokens[contact.ID]
		msg := &wire.Message{
			Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryStoreName,
			Args: &wire.StoreNameArgs{
				ID: e.table.Self(), Name: name, Value: value, TTL: ttl, Seq: seq,
				PublicKey: pubKey, Signature: sig, ClusterSignature: clusterSig, Token: token,
			},
		}
		_, werr := e.transport.Query(ctx, contact, msg)
		outcomes = append(outcomes, WriteOutcome{Node: contact, Err: werr})
	}
	return outcomes, nil
}

// AnnouncePeer runs the two-phase announce: phase one converges on
// infoHash collecting write tokens, phase two announces the sender as
// reachable at port to each of the K closest contacts
// (spec §4.6 "two-phase store", §4.2 "announce_peer").
func (e *Engine) AnnouncePeer(ctx context.Context, infoHash ids.NodeID, port uint16) ([]WriteOutcome, error) {
	tokenResult, err := e.GetPeers(ctx, infoHash)
	if err != nil && tokenResult == nil {
		return nil, err
	}

	outcomes := make([]WriteOutcome, 0, len(tokenResult.Closest))
	for _, contact := range tokenResult.Closest {
		token := tokenResult.Tokens[contact.ID]
		msg := &wire.Message{
			Class: wire.ClassQuery, TID: newTID(), Query: wire.QueryAnnouncePeer,
			Args: &wire.AnnouncePeerArgs{ID: e.table.Self(), InfoHash: infoHash, Port: port, Token: token},
		}
		_, werr := e.transport.Query(ctx, contact, msg)
		outcomes = append(outcomes, WriteOutcome{Node: contact, Err: werr})
	}
	return outcomes, nil
}
