package wire

import (
	"net/netip"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// PingResult echoes the responder's id, proving liveness (spec §4.2).
type PingResult struct{ ID ids.NodeID }

func (*PingResult) queryType() QueryType { return QueryPing }

// NodesResult carries the responder's k closest known nodes, split by
// address family since a responder may hold both (spec §4.2 "find_node").
type NodesResult struct {
	ID     ids.NodeID
	Nodes4 []CompactNode
	Nodes6 []CompactNode
}

func (*NodesResult) queryType() QueryType { return QueryFindNode }

// ValueResult answers a find_value: either Found is true and Value holds
// the stored bytes, or Found is false and Nodes carries the next hop
// (spec §4.2 "find_value").
type ValueResult struct {
	ID     ids.NodeID
	Found  bool
	Value  []byte
	Nodes4 []CompactNode
	Nodes6 []CompactNode
}

func (*ValueResult) queryType() QueryType { return QueryFindValue }

// NameResult answers a find_name: either Found is true and Value/Seq/
// PublicKey/Signature carry the signed record, or Found is false and Nodes
// carries the next hop (spec §4.2 "find_name").
type NameResult struct {
	ID        ids.NodeID
	Found     bool
	Value     []byte
	Seq       uint64
	PublicKey []byte
	Signature []byte
	Nodes4    []CompactNode
	Nodes6    []CompactNode
}

func (*NameResult) queryType() QueryType { return QueryFindName }

// PeersResult answers a get_peers: Token authorizes a follow-up
// announce_peer regardless of whether peers were found; either Found is
// true and Peers carries announced addresses, or Nodes carries the next
// hop (spec §4.2 "get_peers").
type PeersResult struct {
	ID     ids.NodeID
	Token  []byte
	Found  bool
	Peers4 []netip.AddrPort
	Peers6 []netip.AddrPort
	Nodes4 []CompactNode
	Nodes6 []CompactNode
}

func (*PeersResult) queryType() QueryType { return QueryGetPeers }

// WroteResult acknowledges an announce_peer with the responder's id
// (spec §4.2).
type WroteResult struct{ ID ids.NodeID }

func (*WroteResult) queryType() QueryType { return QueryAnnouncePeer }

// StoreResult and StoreNameResult share WroteResult's shape but carry
// their own queryType so Decode dispatches them correctly.
type StoreResult struct{ ID ids.NodeID }

func (*StoreResult) queryType() QueryType { return QueryStore }

type StoreNameResult struct{ ID ids.NodeID }

func (*StoreNameResult) queryType() QueryType { return QueryStoreName }

func encodeResult(w *writer, res Result) error {
	switch v := res.(type) {
	case *PingResult:
		w.putID(v.ID)
	case *NodesResult:
		w.putID(v.ID)
		encodeNodesV4(w, v.Nodes4)
		encodeNodesV6(w, v.Nodes6)
	case *ValueResult:
		w.putID(v.ID)
		w.putBool(v.Found)
		if v.Found {
			w.putBytes(v.Value)
		} else {
			encodeNodesV4(w, v.Nodes4)
			encodeNodesV6(w, v.Nodes6)
		}
	case *NameResult:
		w.putID(v.ID)
		w.putBool(v.Found)
		if v.Found {
			w.putBytes(v.Value)
			w.putU64(v.Seq)
			w.putBytes(v.PublicKey)
			w.putBytes(v.Signature)
		} else {
			encodeNodesV4(w, v.Nodes4)
			encodeNodesV6(w, v.Nodes6)
		}
	case *PeersResult:
		w.putID(v.ID)
		w.putBytes(v.Token)
		w.putBool(v.Found)
		if v.Found {
			encodePeersV4(w, v.Peers4)
			encodePeersV6(w, v.Peers6)
		} else {
			encodeNodesV4(w, v.Nodes4)
			encodeNodesV6(w, v.Nodes6)
		}
	case *WroteResult:
		w.putID(v.ID)
	case *StoreResult:
		w.putID(v.ID)
	case *StoreNameResult:
		w.putID(v.ID)
	default:
		return errUnknownQuery
	}
	return nil
}

func decodeResult(r *reader, q QueryType) (Result, error) {
	switch q {
	case QueryPing:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &PingResult{ID: id}, nil
	case QueryFindNode:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		n4, err := decodeNodesV4(r)
		if err != nil {
			return nil, err
		}
		n6, err := decodeNodesV6(r)
		if err != nil {
			return nil, err
		}
		return &NodesResult{ID: id, Nodes4: n4, Nodes6: n6}, nil
	case QueryFindValue:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		found, err := r.getBool()
		if err != nil {
			return nil, err
		}
		out := &ValueResult{ID: id, Found: found}
		if found {
			value, err := r.getBytes()
			if err != nil {
				return nil, err
			}
			out.Value = value
		} else {
			n4, err := decodeNodesV4(r)
			if err != nil {
				return nil, err
			}
			n6, err := decodeNodesV6(r)
			if err != nil {
				return nil, err
			}
			out.Nodes4, out.Nodes6 = n4, n6
		}
		return out, nil
	case QueryFindName:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		found, err := r.getBool()
		if err != nil {
			return nil, err
		}
		out := &NameResult{ID: id, Found: found}
		if found {
			value, err := r.getBytes()
			if err != nil {
				return nil, err
			}
			seq, err := r.getU64()
			if err != nil {
				return nil, err
			}
			pub, err := r.getBytes()
			if err != nil {
				return nil, err
			}
			sig, err := r.getBytes()
			if err != nil {
				return nil, err
			}
			out.Value, out.Seq, out.PublicKey, out.Signature = value, seq, pub, sig
		} else {
			n4, err := decodeNodesV4(r)
			if err != nil {
				return nil, err
			}
			n6, err := decodeNodesV6(r)
			if err != nil {
				return nil, err
			}
			out.Nodes4, out.Nodes6 = n4, n6
		}
		return out, nil
	case QueryGetPeers:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		token, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		found, err := r.getBool()
		if err != nil {
			return nil, err
		}
		out := &PeersResult{ID: id, Token: token, Found: found}
		if found {
			p4, err := decodePeersV4(r)
			if err != nil {
				return nil, err
			}
			p6, err := decodePeersV6(r)
			if err != nil {
				return nil, err
			}
			out.Peers4, out.Peers6 = p4, p6
		} else {
			n4, err := decodeNodesV4(r)
			if err != nil {
				return nil, err
			}
			n6, err := decodeNodesV6(r)
			if err != nil {
				return nil, err
			}
			out.Nodes4, out.Nodes6 = n4, n6
		}
		return out, nil
	case QueryAnnouncePeer:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &WroteResult{ID: id}, nil
	case QueryStore:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &StoreResult{ID: id}, nil
	case QueryStoreName:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &StoreNameResult{ID: id}, nil
	default:
		return nil, errUnknownQuery
	}
}
