package wire

import (
	"errors"

	"github.com/crisscross-dht/crisscrossdht/ids"
)

// Class identifies whether a Message is a query, a response, or an error,
// mirroring the KRPC "y" field of spec §4.2.
type Class byte

const (
	ClassQuery    Class = 'q'
	ClassResponse Class = 'r'
	ClassError    Class = 'e'
)

// QueryType identifies which of the eight query/response variants a message
// carries. It is tagged on every message — queries, responses, and errors
// alike — so a Message can be decoded standalone without consulting the
// transaction table that correlates a response to the search that issued it.
type QueryType byte

const (
	QueryPing QueryType = iota + 1
	QueryFindNode
	QueryFindValue
	QueryFindName
	QueryGetPeers
	QueryAnnouncePeer
	QueryStore
	QueryStoreName
)

func (q QueryType) String() string {
	switch q {
	case QueryPing:
		return "ping"
	case QueryFindNode:
		return "find_node"
	case QueryFindValue:
		return "find_value"
	case QueryFindName:
		return "find_name"
	case QueryGetPeers:
		return "get_peers"
	case QueryAnnouncePeer:
		return "announce_peer"
	case QueryStore:
		return "store"
	case QueryStoreName:
		return "store_name"
	default:
		return "unknown"
	}
}

// ErrorDetail is the payload of a class-'e' message: a numeric code plus a
// short human-readable string, per spec §4.2 and §7 "reply-with-error".
type ErrorDetail struct {
	Code    uint16
	Message string
}

// Well-known error codes (spec §7).
const (
	ErrCodeServerError   uint16 = 202
	ErrCodeProtocolError uint16 = 203
)

// Message is a fully decoded wire envelope. Exactly one of Args, Result, or
// Err is populated, matching Class.
type Message struct {
	Class     Class
	TID       []byte
	Query     QueryType
	Args      Args
	Result    Result
	Err       *ErrorDetail
}

// Args is implemented by every *Args payload type (PingArgs, FindNodeArgs,
// ...). It is a marker interface; encoding dispatches on the payload's
// concrete type, decoding on Message.Query.
type Args interface{ queryType() QueryType }

// Result is implemented by every *Result payload type.
type Result interface{ queryType() QueryType }

var (
	errUnknownClass = errors.New("wire: unknown message class")
	errUnknownQuery = errors.New("wire: unknown query type")
	errNilPayload   = errors.New("wire: message missing required payload")
)

// Encode serializes m into its wire form: class(1) ‖ tidLen(1) ‖ tid ‖
// query(1) ‖ payload, where payload depends on Class.
func (m *Message) Encode() ([]byte, error) {
	if len(m.TID) > 255 {
		return nil, errors.New("wire: transaction id too long")
	}

	w := newWriter()
	w.putByte(byte(m.Class))
	w.putByte(byte(len(m.TID)))
	w.buf = append(w.buf, m.TID...)
	w.putByte(byte(m.Query))

	switch m.Class {
	case ClassQuery:
		if m.Args == nil {
			return nil, errNilPayload
		}
		if err := encodeArgs(w, m.Args); err != nil {
			return nil, err
		}
	case ClassResponse:
		if m.Result == nil {
			return nil, errNilPayload
		}
		if err := encodeResult(w, m.Result); err != nil {
			return nil, err
		}
	case ClassError:
		if m.Err == nil {
			return nil, errNilPayload
		}
		w.putU16(m.Err.Code)
		w.putBytes([]byte(m.Err.Message))
	default:
		return nil, errUnknownClass
	}

	return w.bytes(), nil
}

// Decode parses a wire message produced by Encode. The transaction id the
// caller uses for correlation is returned unmodified as Message.TID.
func Decode(data []byte) (*Message, error) {
	r := newReader(data)

	classByte, err := r.getByte()
	if err != nil {
		return nil, err
	}
	class := Class(classByte)

	tidLen, err := r.getByte()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(tidLen) {
		return nil, ErrTruncated
	}
	tid := make([]byte, tidLen)
	copy(tid, r.buf[r.pos:r.pos+int(tidLen)])
	r.pos += int(tidLen)

	queryByte, err := r.getByte()
	if err != nil {
		return nil, err
	}
	query := QueryType(queryByte)

	m := &Message{Class: class, TID: tid, Query: query}

	switch class {
	case ClassQuery:
		args, err := decodeArgs(r, query)
		if err != nil {
			return nil, err
		}
		m.Args = args
	case ClassResponse:
		res, err := decodeResult(r, query)
		if err != nil {
			return nil, err
		}
		m.Result = res
	case ClassError:
		code, err := r.getU16()
		if err != nil {
			return nil, err
		}
		msg, err := r.getBytes()
		if err != nil {
			return nil, err
		}
		m.Err = &ErrorDetail{Code: code, Message: string(msg)}
	default:
		return nil, errUnknownClass
	}

	return m, nil
}

// requestingID extracts the "id" field common to every query, used by the
// dispatcher before it even knows which variant it is handling.
func requestingID(a Args) ids.NodeID {
	switch v := a.(type) {
	case *PingArgs:
		return v.ID
	case *FindNodeArgs:
		return v.ID
	case *FindValueArgs:
		return v.ID
	case *FindNameArgs:
		return v.ID
	case *GetPeersArgs:
		return v.ID
	case *AnnouncePeerArgs:
		return v.ID
	case *StoreArgs:
		return v.ID
	case *StoreNameArgs:
		return v.ID
	default:
		return ids.NodeID{}
	}
}

// RequestingID returns the sender id carried by any query payload.
func RequestingID(a Args) ids.NodeID { return requestingID(a) }
