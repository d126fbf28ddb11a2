package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/crisscross-dht/crisscrossdht/envelope"
	"github.com/crisscross-dht/crisscrossdht/ids"
)

// rawConfig is the YAML document shape, before base58 fields are decoded
// and validated into their binary forms.
type rawConfig struct {
	NodeID      string           `yaml:"node_id"`
	ListenAddr  string           `yaml:"listen_addr"`
	Bootstrap   []rawContact     `yaml:"bootstrap_nodes"`
	Clusters    []rawCluster     `yaml:"clusters"`
	Timers      rawTimers        `yaml:"timers"`
}

type rawContact struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

type rawCluster struct {
	ID       string `yaml:"id"`
	Key      string `yaml:"key"`
	WriteKey string `yaml:"write_key"`
}

type rawTimers struct {
	ReviewInterval        string `yaml:"review_interval"`
	NeighbourhoodInterval string `yaml:"neighbourhood_interval"`
	BucketInterval        string `yaml:"bucket_interval"`
	TokenRotationInterval string `yaml:"token_rotation_interval"`
}

// Contact is a bootstrap peer: a known-good node to seed the routing
// table from at startup (spec §6).
type Contact struct {
	ID   ids.NodeID
	Addr netip.AddrPort
}

// Cluster is one overlay a node joins, identified by a 32-byte id and
// keyed by a 32-byte AES-256-GCM key shared out-of-band by its members.
// WriteKey is the cluster's Schnorr public key, compressed-encoded; when
// present, store and store_name require a valid cluster signature over
// their record before writing. A cluster with no WriteKey accepts writes
// from anyone holding a valid token, the "not write-gated" case (spec §3
// "Cluster configuration": "Absent keys disable publication / verification
// accordingly").
type Cluster struct {
	ID       [envelope.ClusterIDSize]byte
	Key      []byte
	WriteKey []byte
}

// Timers holds the maintenance intervals, defaulting to CrissCrossDHT's
// standard cadence when a YAML document leaves them unset (spec §9).
type Timers struct {
	ReviewInterval        time.Duration
	NeighbourhoodInterval time.Duration
	BucketInterval        time.Duration
	TokenRotationInterval time.Duration
}

// Config is a fully parsed and validated node configuration.
type Config struct {
	NodeID     ids.NodeID
	ListenAddr netip.AddrPort
	Bootstrap  []Contact
	Clusters   []Cluster
	Timers     Timers
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return raw.parse()
}

func (r rawConfig) parse() (*Config, error) {
	cfg := &Config{}

	nodeID, err := decodeNodeID(r.NodeID)
	if err != nil {
		return nil, fmt.Errorf("config: node_id: %w", err)
	}
	cfg.NodeID = nodeID

	addr, err := netip.ParseAddrPort(r.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("config: listen_addr: %w", err)
	}
	cfg.ListenAddr = addr

	for i, c := range r.Bootstrap {
		id, err := decodeNodeID(c.ID)
		if err != nil {
			return nil, fmt.Errorf("config: bootstrap_nodes[%d].id: %w", i, err)
		}
		contactAddr, err := netip.ParseAddrPort(c.Addr)
		if err != nil {
			return nil, fmt.Errorf("config: bootstrap_nodes[%d].addr: %w", i, err)
		}
		cfg.Bootstrap = append(cfg.Bootstrap, Contact{ID: id, Addr: contactAddr})
	}

	if len(r.Clusters) == 0 {
		return nil, fmt.Errorf("config: at least one cluster is required")
	}
	for i, c := range r.Clusters {
		clusterID, err := decodeClusterID(c.ID)
		if err != nil {
			return nil, fmt.Errorf("config: clusters[%d].id: %w", i, err)
		}
		key, err := decodeKey(c.Key)
		if err != nil {
			return nil, fmt.Errorf("config: clusters[%d].key: %w", i, err)
		}
		writeKey, err := decodeWriteKey(c.WriteKey)
		if err != nil {
			return nil, fmt.Errorf("config: clusters[%d].write_key: %w", i, err)
		}
		cfg.Clusters = append(cfg.Clusters, Cluster{ID: clusterID, Key: key, WriteKey: writeKey})
	}

	cfg.Timers, err = r.Timers.parse()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (r rawTimers) parse() (Timers, error) {
	t := Timers{
		ReviewInterval:        5 * time.Minute,
		NeighbourhoodInterval: 5 * time.Minute,
		BucketInterval:        3 * time.Minute,
		TokenRotationInterval: 5 * time.Minute,
	}

	fields := []struct {
		raw string
		dst *time.Duration
		name string
	}{
		{r.ReviewInterval, &t.ReviewInterval, "review_interval"},
		{r.NeighbourhoodInterval, &t.NeighbourhoodInterval, "neighbourhood_interval"},
		{r.BucketInterval, &t.BucketInterval, "bucket_interval"},
		{r.TokenRotationInterval, &t.TokenRotationInterval, "token_rotation_interval"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Timers{}, fmt.Errorf("config: timers.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return t, nil
}

func decodeNodeID(s string) (ids.NodeID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ids.NodeID{}, err
	}
	if len(raw) != ids.Size {
		return ids.NodeID{}, fmt.Errorf("expected %d decoded bytes, got %d", ids.Size, len(raw))
	}
	var id ids.NodeID
	copy(id[:], raw)
	return id, nil
}

func decodeClusterID(s string) ([envelope.ClusterIDSize]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return [envelope.ClusterIDSize]byte{}, err
	}
	if len(raw) != envelope.ClusterIDSize {
		return [envelope.ClusterIDSize]byte{}, fmt.Errorf("expected %d decoded bytes, got %d", envelope.ClusterIDSize, len(raw))
	}
	var id [envelope.ClusterIDSize]byte
	copy(id[:], raw)
	return id, nil
}

func decodeKey(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("expected 32 decoded bytes, got %d", len(raw))
	}
	return raw, nil
}

// decodeWriteKey decodes a cluster's compressed Schnorr public key. An empty
// string is a valid, common case: it means the cluster carries no write key
// and store/store_name skip cluster-signature verification (spec §3 "Cluster
// configuration": "Absent keys disable publication / verification
// accordingly").
func decodeWriteKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 33 {
		return nil, fmt.Errorf("expected 33 decoded bytes, got %d", len(raw))
	}
	return raw, nil
}
