// Package node is the public facade (C10): it wires internal/engine to a
// concrete persistence implementation, the gRPC transport, and the reference
// KV state machine, the way the teacher's internal/node.Node mixed all three
// concerns into one struct. Here they stay split, composed through Config.
package node

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Config mirrors the teacher's NodeConfig (internal/node/node.go), extended
// with the timing knobs and peer-address map the engine's Config needs that
// the teacher's single-binary deployment baked in as package constants.
type Config struct {
	Id         string `yaml:"id"`
	ClientAddr string `yaml:"client_addr"`
	DataDir    string `yaml:"data_dir"`
	TermFile   string `yaml:"-"`
	LogFile    string `yaml:"-"`
	NodeIds    []string `yaml:"node_ids"`

	// PeerAddrs maps each peer's node ID to the address the gRPC transport
	// should dial, since the teacher's NodeIds doubled as both identity and
	// dial target but this module keeps the two independent (spec §4.8).
	PeerAddrs map[string]string `yaml:"peer_addrs"`

	UseBolt bool `yaml:"use_bolt"`

	ElectionTimeoutMin time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `yaml:"election_timeout_max"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	RPCTimeout         time.Duration `yaml:"rpc_timeout"`
	SnapshotChunkSize  int           `yaml:"snapshot_chunk_size"`
}

// NewNodeConfig creates a config for a Node, following the teacher's
// NewNodeConfig(dataDir, addr, clientAddr, nodeIds) signature exactly.
func NewNodeConfig(dataDir string, addr, clientAddr string, nodeIds []string) Config {
	return Config{
		Id:         addr,
		ClientAddr: clientAddr,
		DataDir:    dataDir,
		TermFile:   filepath.Join(dataDir, "term"),
		LogFile:    filepath.Join(dataDir, "raftlog"),
		NodeIds:    nodeIds,
		PeerAddrs:  map[string]string{},
	}
}

// LoadConfigFile reads a yaml cluster config file into a Config, the
// node-facing counterpart of the teacher's flag-driven startup (the teacher
// has no config file; this module adds one since a multi-node deployment
// needs the peer address map yaml most naturally expresses).
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DataDir != "" {
		cfg.TermFile = filepath.Join(cfg.DataDir, "term")
		cfg.LogFile = filepath.Join(cfg.DataDir, "raftlog")
	}
	return cfg, nil
}
