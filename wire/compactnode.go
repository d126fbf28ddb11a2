package wire

import (
	"fmt"
	"net/netip"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// CompactNode is a single routable peer as carried in find_node / get_peers
// style replies: id(32) ‖ ip(4 or 16) ‖ port(2), per spec §4.2.
type CompactNode struct {
	ID   ids.NodeID
	Addr netip.AddrPort
}

// encodeNodesV4 writes a count-prefixed list of IPv4 compact nodes: each
// entry is id(32) ‖ ip(4) ‖ port(2) = 38 bytes.
func encodeNodesV4(w *writer, nodes []CompactNode) {
	w.putU16(uint16(len(nodes)))
	for _, n := range nodes {
		w.putID(n.ID)
		ip4 := n.Addr.Addr().As4()
		w.buf = append(w.buf, ip4[:]...)
		w.putU16(n.Addr.Port())
	}
}

func decodeNodesV4(r *reader) ([]CompactNode, error) {
	count, err := r.getU16()
	if err != nil {
		return nil, err
	}
	out := make([]CompactNode, 0, count)
	for i := uint16(0); i < count; i++ {
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		if r.remaining() < 4 {
			return nil, ErrTruncated
		}
		var ip4 [4]byte
		copy(ip4[:], r.buf[r.pos:r.pos+4])
		r.pos += 4
		port, err := r.getU16()
		if err != nil {
			return nil, err
		}
		out = append(out, CompactNode{
			ID:   id,
			Addr: netip.AddrPortFrom(netip.AddrFrom4(ip4), port),
		})
	}
	return out, nil
}

// encodeNodesV6 writes a count-prefixed list of IPv6 compact nodes: each
// entry is id(32) ‖ ip(16) ‖ port(2) = 50 bytes.
func encodeNodesV6(w *writer, nodes []CompactNode) {
	w.putU16(uint16(len(nodes)))
	for _, n := range nodes {
		w.putID(n.ID)
		ip16 := n.Addr.Addr().As16()
		w.buf = append(w.buf, ip16[:]...)
		w.putU16(n.Addr.Port())
	}
}

func decodeNodesV6(r *reader) ([]CompactNode, error) {
	count, err := r.getU16()
	if err != nil {
		return nil, err
	}
	out := make([]CompactNode, 0, count)
	for i := uint16(0); i < count; i++ {
		id, err := r.getID()
		if err != nil {
			return nil, err
		}
		if r.remaining() < 16 {
			return nil, ErrTruncated
		}
		var ip16 [16]byte
		copy(ip16[:], r.buf[r.pos:r.pos+16])
		r.pos += 16
		port, err := r.getU16()
		if err != nil {
			return nil, err
		}
		out = append(out, CompactNode{
			ID:   id,
			Addr: netip.AddrPortFrom(netip.AddrFrom16(ip16), port),
		})
	}
	return out, nil
}

// TupleToIPPort renders an address the way CrissCrossDHT's human-facing
// logs and config errors do: "ip:port" for IPv4, "[ip]:port" for IPv6.
func TupleToIPPort(addr netip.AddrPort) string {
	return addr.String()
}

// TupleToIPPortV4 renders a decimal-octet IPv4 tuple as "a.b.c.d:port",
// matching spec §8 scenario A: ((127,0,0,1), 6881) -> "127.0.0.1:6881".
func TupleToIPPortV4(ip [4]byte, port uint16) string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", ip[0], ip[1], ip[2], ip[3], port)
}

// TupleToIPPortV6 renders an 8-word IPv6 tuple as
// "[XXXX:XXXX:...:XXXX]:port" with each word zero-padded to 4 uppercase hex
// digits, matching spec §8 scenario A:
// ((8193,16848,12,1452,5,0,0,1), 6881) ->
// "[2001:41D0:000C:05AC:0005:0000:0000:0001]:6881".
func TupleToIPPortV6(ip [8]uint16, port uint16) string {
	return fmt.Sprintf("[%04X:%04X:%04X:%04X:%04X:%04X:%04X:%04X]:%d",
		ip[0], ip[1], ip[2], ip[3], ip[4], ip[5], ip[6], ip[7], port)
}
