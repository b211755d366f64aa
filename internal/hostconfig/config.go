// Package hostconfig loads the YAML cluster configuration a raftkv host
// process is started with: this node's own identity and data directory,
// the cluster's peer list, and the tuning knobs passed straight through to
// raft.Config.
package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of a host's YAML config file.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Cluster ClusterConfig `yaml:"cluster"`
	Raft    RaftConfig    `yaml:"raft"`
}

// NodeConfig identifies this process within the cluster.
type NodeConfig struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
	DataDir string `yaml:"data_dir"`
}

// ClusterConfig lists every member of the group, this node included.
type ClusterConfig struct {
	Peers []PeerConfig `yaml:"peers"`
}

// PeerConfig names one cluster member by id and HTTP address.
type PeerConfig struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
	Learner bool   `yaml:"learner"`
}

// RaftConfig carries the tuning knobs forwarded to raft.Config.
type RaftConfig struct {
	ElectionTick              int    `yaml:"election_tick"`
	HeartbeatTick             int    `yaml:"heartbeat_tick"`
	MaxInflightMsgs           int    `yaml:"max_inflight_msgs"`
	MaxSizePerMsg             uint64 `yaml:"max_size_per_msg"`
	MaxUncommittedEntriesSize uint64 `yaml:"max_uncommitted_entries_size"`
	MaxCommittedSizePerReady  uint64 `yaml:"max_committed_size_per_ready"`
	PreVote                   bool   `yaml:"pre_vote"`
	CheckQuorum               bool   `yaml:"check_quorum"`
}

// Load reads path, parses it as YAML, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hostconfig: failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hostconfig: invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate enforces the relationships a raftkv host needs to boot:
// this node must be listed among its own peers, ids must be unique, and
// the raft tick relationship must hold (the same check raft.Config.validate
// repeats at construction, but failing here gives a clearer message before
// any raft.RawNode is even built).
func (c *Config) Validate() error {
	if c.Node.ID == 0 {
		return fmt.Errorf("node.id must be greater than 0")
	}
	if c.Node.Address == "" {
		return fmt.Errorf("node.address is required")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}
	if len(c.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must contain at least one peer")
	}

	found := false
	seen := make(map[uint64]bool, len(c.Cluster.Peers))
	for _, peer := range c.Cluster.Peers {
		if seen[peer.ID] {
			return fmt.Errorf("duplicate peer id: %d", peer.ID)
		}
		seen[peer.ID] = true

		if peer.ID == c.Node.ID {
			found = true
			if peer.Address != c.Node.Address {
				return fmt.Errorf("node address mismatch: node.address=%s but peer address=%s",
					c.Node.Address, peer.Address)
			}
		}
	}
	if !found {
		return fmt.Errorf("node.id=%d not found in cluster.peers", c.Node.ID)
	}

	if c.Raft.HeartbeatTick <= 0 {
		return fmt.Errorf("raft.heartbeat_tick must be greater than 0")
	}
	if c.Raft.ElectionTick <= c.Raft.HeartbeatTick {
		return fmt.Errorf("raft.election_tick must be greater than raft.heartbeat_tick")
	}

	return nil
}

// VoterIDs returns every non-learner peer's id.
func (c *Config) VoterIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		if !p.Learner {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// LearnerIDs returns every learner peer's id.
func (c *Config) LearnerIDs() []uint64 {
	var ids []uint64
	for _, p := range c.Cluster.Peers {
		if p.Learner {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// PeerAddresses maps every other cluster member's id to its address,
// excluding this node itself.
func (c *Config) PeerAddresses() map[uint64]string {
	res := make(map[uint64]string, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		if p.ID == c.Node.ID {
			continue
		}
		res[p.ID] = p.Address
	}
	return res
}
