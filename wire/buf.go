package wire

import (
	"encoding/binary"
	"errors"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// ErrTruncated is returned when a decode operation runs out of input bytes.
var ErrTruncated = errors.New("wire: truncated message")

// writer accumulates a message body using the fixed field encodings spec
// §4.2 implies: fixed-width ids, big-endian integers, and length-prefixed
// variable byte strings.
type writer struct {
	buf []byte
}

func newWriter() *writer { return &writer{buf: make([]byte, 0, 128)} }

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) putByte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) putBool(b bool) {
	if b {
		w.putByte(1)
	} else {
		w.putByte(0)
	}
}

func (w *writer) putU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) putU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) putU64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) putID(id ids.NodeID) { w.buf = append(w.buf, id[:]...) }

func (w *writer) putBytes(b []byte) {
	w.putU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader walks a message body, mirroring writer's encodings.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) getByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) getBool() (bool, error) {
	b, err := r.getByte()
	return b != 0, err
}

func (r *reader) getU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) getU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) getU64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) getID() (ids.NodeID, error) {
	if r.remaining() < ids.Size {
		return ids.NodeID{}, ErrTruncated
	}
	var id ids.NodeID
	copy(id[:], r.buf[r.pos:r.pos+ids.Size])
	r.pos += ids.Size
	return id, nil
}

func (r *reader) getBytes() ([]byte, error) {
	n, err := r.getU32()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}
