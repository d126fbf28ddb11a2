// Package wire implements the binary codec for CrissCrossDHT's KRPC-like
// queries, responses, and errors (spec §4.2).
//
// The wire format is a fixed, self-describing binary encoding rather than
// bencoding: every message starts with a one-byte class (query/response/
// error), a length-prefixed transaction id, and a one-byte query-type tag
// that disambiguates which typed payload follows — for responses and errors
// as well as queries, so a Message can be decoded without first consulting
// the transaction table that correlates it to its originating search. Each
// query/response payload is then a fixed sequence of length-prefixed or
// fixed-width fields in the order documented in spec §4.2's field tables.
//
// This is the single format CrissCrossDHT overlays agree on bit-for-bit;
// see DESIGN.md for why a custom format was chosen over reusing bencode.
package wire
