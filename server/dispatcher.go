package server

import (
	"net"
	"sync"

	"github.com/crisscross-dht/crisscrossdht/envelope"
)

// Dispatcher demultiplexes one shared UDP socket across every cluster a
// node participates in, keyed by the cluster id carried in each packet's
// frame (spec §4.3, §6 "multi-cluster").
type Dispatcher struct {
	conn net.PacketConn

	mu       sync.RWMutex
	clusters map[[envelope.ClusterIDSize]byte]*Cluster
}

// NewDispatcher creates a Dispatcher reading from conn. Clusters must be
// registered with Register before Run starts delivering packets to them.
func NewDispatcher(conn net.PacketConn) *Dispatcher {
	return &Dispatcher{
		conn:     conn,
		clusters: make(map[[envelope.ClusterIDSize]byte]*Cluster),
	}
}

// Register adds a cluster the dispatcher will route inbound packets to.
func (d *Dispatcher) Register(c *Cluster) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clusters[c.ID] = c
}

// Unregister removes a cluster, after which inbound packets framed for it
// are silently dropped.
func (d *Dispatcher) Unregister(id [envelope.ClusterIDSize]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clusters, id)
}

// Run reads packets from the socket until it returns an error (typically
// because the socket was closed), handing each one to the cluster its
// frame names.
func (d *Dispatcher) Run() error {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			return err
		}

		frame, err := envelope.ParseFrame(buf[:n])
		if err != nil {
			log.WithField("from", addr).Debug("dropping packet, bad frame")
			continue
		}

		d.mu.RLock()
		cluster, ok := d.clusters[frame.ClusterID]
		d.mu.RUnlock()
		if !ok {
			log.WithField("cluster", frame.ClusterID).Debug("dropping packet for unknown cluster")
			continue
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		from := udpAddr.AddrPort()

		go cluster.HandleSealed(from, frame.Sealed)
	}
}
