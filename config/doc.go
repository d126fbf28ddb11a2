// Package config loads a CrissCrossDHT node's YAML configuration: the
// node's id and listen address, the clusters it joins with their shared
// AEAD keys and optional write keys, bootstrap contacts, and optional
// timer overrides
// (spec §6, §9).
package config
