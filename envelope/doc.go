// Package envelope implements CrissCrossDHT's cluster framing, AEAD sealing,
// and name-record signatures.
//
// Every packet that leaves a node is framed as a magic tag, a cluster id,
// and an AES-256-GCM sealed body (spec §4.3, §6): the magic and cluster id
// let a multi-cluster node demultiplex inbound packets to the right AEAD
// key before it even attempts to decrypt, and the seal keeps one cluster's
// traffic opaque to a node that only participates in another.
//
// Name records (store_name) are authorized not by cluster membership but
// by a Schnorr signature over the record's canonical encoding, so any node
// can verify authorship without holding the cluster key (spec §4.2, §9).
package envelope
