// Package ids implements the distance metric and identifier helpers that every
// other CrissCrossDHT package builds on: raw/hashed node ids, the XOR metric,
// bucket-index computation, and generation of ids targeted at a given bucket.
//
// A NodeID is always 32 bytes. Hash gives the SHA3-256 form of raw bytes,
// but the routing table keys on node ids exactly as peers and the
// configuration supply them: no package derives a node's table key by
// hashing a raw id, so a node's place in the keyspace is the id it
// advertises.
package ids
