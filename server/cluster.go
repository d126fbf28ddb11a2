package server

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crisscross-dht/crisscrossdht/crypto"
	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/envelope"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/search"
	"github.com/crisscross-dht/crisscrossdht/storage"
	"github.com/crisscross-dht/crisscrossdht/wire"
)

var log = logrus.WithField("package", "server")

// QueryTimeout bounds how long Cluster.Query waits for a matching
// response before giving up.
const QueryTimeout = 5 * time.Second

// Cluster runs one CrissCrossDHT overlay: its own routing table, storage
// shard, and AEAD key, sharing the process's single UDP socket with every
// other cluster the node participates in (spec §4.3, §6 "multi-cluster").
type Cluster struct {
	ID        [envelope.ClusterIDSize]byte
	Key       []byte
	Self      ids.NodeID
	Table     *dht.RoutingTable
	Store     storage.Storage
	Tokens    *TokenMinter
	Engine    *search.Engine

	// WriteKey is the cluster's compressed Schnorr public key. When set,
	// store and store_name additionally require a valid signature over
	// their record under this key before writing (spec §3 "Cluster
	// configuration", §4.7). Left nil, the cluster is not write-gated.
	WriteKey []byte

	conn      net.PacketConn
	pending   *pendingTable
	tp        dht.TimeProvider
}

// NewCluster wires a Cluster's components together. conn is the shared
// socket the caller reads/writes on; the Cluster only uses it to send queries and
// responses, leaving the read loop to the caller's Dispatcher.
func NewCluster(id [envelope.ClusterIDSize]byte, key []byte, self ids.NodeID, conn net.PacketConn, tp dht.TimeProvider) *Cluster {
	if tp == nil {
		tp = dht.DefaultTimeProvider{}
	}
	c := &Cluster{
		ID:      id,
		Key:     key,
		Self:    self,
		Table:   dht.NewRoutingTable(self, tp),
		Store:   storage.NewMemory(),
		Tokens:  NewTokenMinter(0, tp),
		conn:    conn,
		pending: newPendingTable(),
		tp:      tp,
	}
	c.Engine = search.NewEngine(c.Table, c, tp)
	return c
}

// Query implements search.Transport: it seals msg for node, sends it, and
// blocks until a matching response arrives or ctx/QueryTimeout expires.
func (c *Cluster) Query(ctx context.Context, node *dht.Node, msg *wire.Message) (*wire.Message, error) {
	ch := c.pending.register(msg.TID)
	defer c.pending.forget(msg.TID)

	if err := c.send(node.Addr, msg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	select {
	case resp := <-ch:
		log.WithFields(crypto.OperationFields("query", "ok", logrus.Fields{
			"query": msg.Query.String(), "to": node.ID.String(),
		})).Debug("query answered")
		return resp, nil
	case <-ctx.Done():
		log.WithFields(crypto.OperationFields("query", "timeout", logrus.Fields{
			"query": msg.Query.String(), "to": node.ID.String(),
		})).Debug("query timed out")
		return nil, ctx.Err()
	}
}

// send seals and frames msg, writing it to addr on the shared socket.
func (c *Cluster) send(addr netip.AddrPort, msg *wire.Message) error {
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	sealed, err := envelope.Seal(c.Key, encoded)
	if err != nil {
		return err
	}
	packet := envelope.BuildFrame(c.ID, sealed)
	_, err = c.conn.WriteTo(packet, net.UDPAddrFromAddrPort(addr))
	return err
}

// HandleSealed opens sealed (the body ParseFrame already stripped of
// magic/cluster id), decodes the wire message, and either delivers it to a
// pending Query or dispatches it as an inbound query (spec §4.7).
func (c *Cluster) HandleSealed(from netip.AddrPort, sealed []byte) {
	plain, err := envelope.Open(c.Key, sealed)
	if err != nil {
		log.WithField("from", from).Debug("dropping packet, seal did not open")
		return
	}

	msg, err := wire.Decode(plain)
	if err != nil {
		log.WithField("from", from).Debug("dropping packet, malformed message")
		return
	}

	switch msg.Class {
	case wire.ClassResponse, wire.ClassError:
		c.pending.deliver(msg)
	case wire.ClassQuery:
		c.dispatchQuery(from, msg)
	}
}

// dispatchQuery runs the inbound query handler for msg and sends back its
// reply, touching the routing table with the querying node as every
// handler implicitly vouches for its sender's liveness (spec §4.5,
// §4.7 "reply-with-error" on malformed args).
func (c *Cluster) dispatchQuery(from netip.AddrPort, msg *wire.Message) {
	senderID := wire.RequestingID(msg.Args)
	c.Table.Insert(dht.NewNode(senderID, from, c.tp))

	reply, err := c.handle(from, msg)
	if err != nil {
		reply = &wire.Message{
			Class: wire.ClassError, TID: msg.TID, Query: msg.Query,
			Err: &wire.ErrorDetail{Code: wire.ErrCodeProtocolError, Message: err.Error()},
		}
	} else {
		reply.Class = wire.ClassResponse
		reply.TID = msg.TID
		reply.Query = msg.Query
	}

	if sendErr := c.send(from, reply); sendErr != nil {
		log.WithField("to", from).WithError(sendErr).Debug("failed to send reply")
	}
}
