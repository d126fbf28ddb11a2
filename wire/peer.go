package wire

import "net/netip"

// encodePeersV4 writes a count-prefixed list of bare IPv4 peer addresses
// (ip(4) ‖ port(2) per entry, no node id), as carried in get_peers replies
// that answer with reachable peers rather than closer nodes.
func encodePeersV4(w *writer, peers []netip.AddrPort) {
	w.putU16(uint16(len(peers)))
	for _, p := range peers {
		ip4 := p.Addr().As4()
		w.buf = append(w.buf, ip4[:]...)
		w.putU16(p.Port())
	}
}

func decodePeersV4(r *reader) ([]netip.AddrPort, error) {
	count, err := r.getU16()
	if err != nil {
		return nil, err
	}
	out := make([]netip.AddrPort, 0, count)
	for i := uint16(0); i < count; i++ {
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
		out = append(out, netip.AddrPortFrom(netip.AddrFrom4(ip4), port))
	}
	return out, nil
}

// encodePeersV6 is the IPv6 counterpart of encodePeersV4: ip(16) ‖ port(2).
func encodePeersV6(w *writer, peers []netip.AddrPort) {
	w.putU16(uint16(len(peers)))
	for _, p := range peers {
		ip16 := p.Addr().As16()
		w.buf = append(w.buf, ip16[:]...)
		w.putU16(p.Port())
	}
}

func decodePeersV6(r *reader) ([]netip.AddrPort, error) {
	count, err := r.getU16()
	if err != nil {
		return nil, err
	}
	out := make([]netip.AddrPort, 0, count)
	for i := uint16(0); i < count; i++ {
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
		out = append(out, netip.AddrPortFrom(netip.AddrFrom16(ip16), port))
	}
	return out, nil
}
