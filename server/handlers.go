package server

import (
	"errors"
	"net/netip"

	"github.com/crisscross-dht/crisscrossdht/envelope"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/search"
	"github.com/crisscross-dht/crisscrossdht/storage"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

var errBadToken = errors.New("invalid or expired write token")

// handle runs the inbound query handler matching msg.Query, returning a
// Message whose Result is populated (Class/TID/Query are filled in by the
// caller). It is the single dispatch point for the eight query types
// (spec §4.2).
func (c *Cluster) handle(from netip.AddrPort, msg *wire.Message) (*wire.Message, error) {
	switch args := msg.Args.(type) {
	case *wire.PingArgs:
		return &wire.Message{Result: &wire.PingResult{ID: c.Self}}, nil
	case *wire.FindNodeArgs:
		return c.handleFindNode(args)
	case *wire.FindValueArgs:
		return c.handleFindValue(args)
	case *wire.FindNameArgs:
		return c.handleFindName(args)
	case *wire.GetPeersArgs:
		return c.handleGetPeers(from, args)
	case *wire.AnnouncePeerArgs:
		return c.handleAnnouncePeer(from, args)
	case *wire.StoreArgs:
		return c.handleStore(from, args)
	case *wire.StoreNameArgs:
		return c.handleStoreName(from, args)
	default:
		return nil, errors.New("unrecognized query payload")
	}
}

func (c *Cluster) closestCompact(target ids.NodeID) (v4, v6 []wire.CompactNode) {
	for _, n := range c.Table.ClosestNodes(target, search.K) {
		cn := wire.CompactNode{ID: n.ID, Addr: n.Addr}
		if n.Addr.Addr().Is4() {
			v4 = append(v4, cn)
		} else {
			v6 = append(v6, cn)
		}
	}
	return v4, v6
}

func (c *Cluster) handleFindNode(args *wire.FindNodeArgs) (*wire.Message, error) {
	v4, v6 := c.closestCompact(args.Target)
	return &wire.Message{Result: &wire.NodesResult{ID: c.Self, Nodes4: v4, Nodes6: v6}}, nil
}

func (c *Cluster) handleFindValue(args *wire.FindValueArgs) (*wire.Message, error) {
	if value, ok := c.Store.GetValue(args.Key); ok {
		return &wire.Message{Result: &wire.ValueResult{ID: c.Self, Found: true, Value: value}}, nil
	}
	v4, v6 := c.closestCompact(args.Key)
	return &wire.Message{Result: &wire.ValueResult{ID: c.Self, Found: false, Nodes4: v4, Nodes6: v6}}, nil
}

func (c *Cluster) handleFindName(args *wire.FindNameArgs) (*wire.Message, error) {
	nameID := ids.Hash([]byte(args.Name))
	if rec, ok := c.Store.GetName(nameID); ok {
		return &wire.Message{Result: &wire.NameResult{
			ID: c.Self, Found: true, Value: rec.Value, Seq: rec.Seq,
			PublicKey: rec.PublicKey, Signature: rec.Signature,
		}}, nil
	}
	v4, v6 := c.closestCompact(nameID)
	return &wire.Message{Result: &wire.NameResult{ID: c.Self, Found: false, Nodes4: v4, Nodes6: v6}}, nil
}

func (c *Cluster) handleGetPeers(from netip.AddrPort, args *wire.GetPeersArgs) (*wire.Message, error) {
	token := c.Tokens.Mint(from, args.InfoHash)

	peers := c.Store.GetPeers(args.InfoHash)
	if len(peers) > 0 {
		var p4, p6 []netip.AddrPort
		for _, p := range peers {
			if p.Addr.Addr().Is4() {
				p4 = append(p4, p.Addr)
			} else {
				p6 = append(p6, p.Addr)
			}
		}
		return &wire.Message{Result: &wire.PeersResult{ID: c.Self, Token: token, Found: true, Peers4: p4, Peers6: p6}}, nil
	}

	v4, v6 := c.closestCompact(args.InfoHash)
	return &wire.Message{Result: &wire.PeersResult{ID: c.Self, Token: token, Found: false, Nodes4: v4, Nodes6: v6}}, nil
}

func (c *Cluster) handleAnnouncePeer(from netip.AddrPort, args *wire.AnnouncePeerArgs) (*wire.Message, error) {
	if !c.Tokens.Verify(args.Token, from, args.InfoHash) {
		return nil, errBadToken
	}
	addr := netip.AddrPortFrom(from.Addr(), args.Port)
	c.Store.PutPeer(args.InfoHash, addr, c.tp.Now())
	return &wire.Message{Result: &wire.WroteResult{ID: c.Self}}, nil
}

func (c *Cluster) handleStore(from netip.AddrPort, args *wire.StoreArgs) (*wire.Message, error) {
	if !c.Tokens.Verify(args.Token, from, args.Key) {
		return nil, errBadToken
	}
	if ids.Hash(args.Value) != args.Key {
		return nil, errors.New("value does not hash to key")
	}
	if len(c.WriteKey) > 0 {
		if err := envelope.ValueVerify(c.WriteKey, args.Signature, args.Key, args.Value, args.TTL); err != nil {
			return nil, err
		}
	}
	c.Store.PutValue(args.Key, args.Value)
	return &wire.Message{Result: &wire.StoreResult{ID: c.Self}}, nil
}

func (c *Cluster) handleStoreName(from netip.AddrPort, args *wire.StoreNameArgs) (*wire.Message, error) {
	nameID := ids.Hash([]byte(args.Name))
	if !c.Tokens.Verify(args.Token, from, nameID) {
		return nil, errBadToken
	}

	owner := ids.Hash(ids.Hash(args.PublicKey)[:])
	if owner != nameID {
		return nil, errors.New("name is not owned by the declared public key")
	}
	if err := envelope.SchnorrVerify(args.PublicKey, args.Signature, args.Name, args.Value, args.Seq); err != nil {
		return nil, err
	}
	if len(c.WriteKey) > 0 {
		if err := envelope.ClusterVerify(c.WriteKey, args.ClusterSignature, args.Name, args.Value, args.Seq, args.TTL); err != nil {
			return nil, err
		}
	}

	ok := c.Store.PutName(nameID, storage.NameRecord{
		Value: args.Value, Seq: args.Seq, PublicKey: args.PublicKey,
		Signature: args.Signature, StoredAt: c.tp.Now(),
	})
	if !ok {
		return nil, errors.New("stale sequence number")
	}
	return &wire.Message{Result: &wire.StoreNameResult{ID: c.Self}}, nil
}
