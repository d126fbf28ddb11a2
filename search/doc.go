// Package search implements CrissCrossDHT's iterative lookup: the
// alpha-bounded parallel convergence toward a target id that backs every
// read query (find_node, find_value, find_name, get_peers) and the first
// phase of every write (store, store_name, announce_peer), per spec §4.6.
package search
