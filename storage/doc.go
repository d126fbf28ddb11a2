// Package storage defines CrissCrossDHT's node-local persistence
// interface — immutable key/value pairs, signed mutable name records, and
// announced peer lists — plus an in-memory reference implementation
// (spec §4.2 "store"/"store_name"/"announce_peer", §6).
package storage
