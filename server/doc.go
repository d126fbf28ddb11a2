// Package server wires a routing table, storage, and search engine to a
// UDP socket: it seals and opens cluster envelopes, dispatches inbound
// queries to handlers, mints and checks write tokens, and implements the
// search.Transport an Engine uses to drive outbound lookups
// (spec §4.3, §4.7, §9).
package server
