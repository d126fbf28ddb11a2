package wire

import "github.com/crisscross-dht/crisscrossdht/ids"

// PingArgs carries only the sender's id; a successful reply with a matching
// PingResult is itself the liveness proof (spec §4.2 "ping").
type PingArgs struct{ ID ids.NodeID }

func (*PingArgs) queryType() QueryType { return QueryPing }

// FindNodeArgs asks for the k nodes closest to Target that the responder
// knows of (spec §4.2 "find_node").
type FindNodeArgs struct {
	ID     ids.NodeID
	Target ids.NodeID
}

func (*FindNodeArgs) queryType() QueryType { return QueryFindNode }

// FindValueArgs asks for the value stored under Key, or the closest nodes
// if the responder doesn't hold it (spec §4.2 "find_value").
type FindValueArgs struct {
	ID  ids.NodeID
	Key ids.NodeID
}

func (*FindValueArgs) queryType() QueryType { return QueryFindValue }

// FindNameArgs asks for the signed name record published under Name, or the
// closest nodes (spec §4.2 "find_name").
type FindNameArgs struct {
	ID   ids.NodeID
	Name string
}

func (*FindNameArgs) queryType() QueryType { return QueryFindName }

// GetPeersArgs asks for peers announced under InfoHash, or the closest
// nodes plus a write token for a follow-up announce_peer (spec §4.2
// "get_peers").
type GetPeersArgs struct {
	ID       ids.NodeID
	InfoHash ids.NodeID
}

func (*GetPeersArgs) queryType() QueryType { return QueryGetPeers }

// AnnouncePeerArgs registers the sender as reachable at Port for InfoHash,
// authorized by a Token previously handed out by this responder in a
// get_peers reply (spec §4.2 "announce_peer").
type AnnouncePeerArgs struct {
	ID       ids.NodeID
	InfoHash ids.NodeID
	Port     uint16
	Token    []byte
}

func (*AnnouncePeerArgs) queryType() QueryType { return QueryAnnouncePeer }

// StoreArgs writes an immutable Value under Key = hash(Value), authorized
// by a write Token and a Signature over combine(key, value, ttl) verified
// against the cluster's write key, when the cluster is write-gated
// (spec §3 "Value record", §4.2 "store", §4.7, §8 property 8).
type StoreArgs struct {
	ID        ids.NodeID
	Key       ids.NodeID
	Value     []byte
	TTL       uint64
	Signature []byte
	Token     []byte
}

func (*StoreArgs) queryType() QueryType { return QueryStore }

// StoreNameArgs writes a mutable, Schnorr-signed record under Name,
// authorized by a write Token. Signature (sig_ns) proves ownership under
// PublicKey; ClusterSignature (sig_cluster) additionally proves the
// cluster's write key authorized this (name, value, seq, ttl) tuple, when
// the cluster is write-gated. Seq monotonically orders successive writes to
// the same name so a stale replay can't overwrite a newer record
// (spec §3 "Name record", §4.2 "store_name", §4.7).
type StoreNameArgs struct {
	ID               ids.NodeID
	Name             string
	Value            []byte
	TTL              uint64
	Seq              uint64
	PublicKey        []byte
	Signature        []byte
	ClusterSignature []byte
	Token            []byte
}

func (*StoreNameArgs) queryType() QueryType { return QueryStoreName }

func encodeArgs(w *writer, a Args) error {
	switch v := a.(type) {
	case *PingArgs:
		w.putID(v.ID)
	case *FindNodeArgs:
		w.putID(v.ID)
		w.putID(v.Target)
	case *FindValueArgs:
		w.putID(v.ID)
		w.putID(v.Key)
	case *FindNameArgs:
		w.putID(v.ID)
		w.putBytes([]byte(v.Name))
	case *GetPeersArgs:
		w.putID(v.ID)
		w.putID(v.InfoHash)
	case *AnnouncePeerArgs:
		w.putID(v.ID)
		w.putID(v.InfoHash)
		w.putU16(v.Port)
		w.putBytes(v.Token)
	case *StoreArgs:
		w.putID(v.ID)
		w.putID(v.Key)
		w.putBytes(v.Value)
		w.putU64(v.TTL)
		w.putBytes(v.Signature)
		w.putBytes(v.Token)
	case *StoreNameArgs:
		w.putID(v.ID)
		w.putBytes([]byte(v.Name))
		w.putBytes(v.Value)
		w.putU64(v.TTL)
		w.putU64(v.Seq)
		w.putBytes(v.PublicKey)
		w.putBytes(v.Signature)
		w.putBytes(v.ClusterSignature)
		w.putBytes(v.Token)
	default:
		return errUnknownQuery
	}
	return nil
}

func decodeArgs(r *reader, q QueryType) (Args, error) {
	switch q {
	case QueryPing:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &PingArgs{ID: id}, nil
	case QueryFindNode:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		target, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &FindNodeArgs{ID: id, Target: target}, nil
	case QueryFindValue:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		key, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &FindValueArgs{ID: id, Key: key}, nil
	case QueryFindName:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		name, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		return &FindNameArgs{ID: id, Name: string(name)}, nil
	case QueryGetPeers:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		infoHash, err := r.getID()
		if err != nil {
			return nil, err
		}
		return &GetPeersArgs{ID: id, InfoHash: infoHash}, nil
	case QueryAnnouncePeer:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		infoHash, err := r.getID()
		if err != nil {
			return nil, err
		}
		port, err := r.getU16()
		if err != nil {
			return nil, err
		}
		token, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		return &AnnouncePeerArgs{ID: id, InfoHash: infoHash, Port: port, Token: token}, nil
	case QueryStore:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		key, err := r.getID()
		if err != nil {
			return nil, err
		}
		value, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		ttl, err := r.getU64()
		if err != nil {
			return nil, err
		}
		sig, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		token, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		return &StoreArgs{ID: id, Key: key, Value: value, TTL: ttl, Signature: sig, Token: token}, nil
	case QueryStoreName:
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		name, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		value, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		ttl, err := r.getU64()
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
		clusterSig, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		token, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		return &StoreNameArgs{
			ID: id, Name: string(name), Value: value, TTL: ttl, Seq: seq,
			PublicKey: pub, Signature: sig, ClusterSignature: clusterSig, Token: token,
		}, nil
	default:
		return nil, errUnknownQuery
	}
}
