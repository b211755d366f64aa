package raft

import "fmt"

// Config bundles the options recognized at Raft construction. It is
// consumed once by NewRawNode and never touched again; later changes to
// membership go through ProposeConfChange instead.
type Config struct {
	// ID is this node's own identifier. Must be nonzero and unique within
	// the cluster.
	ID uint64

	// Peers and Learners list the initial membership by id. Only
	// meaningful when bootstrapping a brand new group — a node rejoining
	// an existing one should leave these empty and rely on Storage's
	// persisted ConfState instead. The two sets must be disjoint.
	Peers    []uint64
	Learners []uint64

	// ElectionTick is the number of RawNode.Tick calls a follower waits
	// without hearing from a leader before campaigning. Must exceed
	// HeartbeatTick.
	ElectionTick int

	// HeartbeatTick is the number of RawNode.Tick calls between a leader's
	// heartbeat broadcasts.
	HeartbeatTick int

	// Storage is the durable log and snapshot store. Required.
	Storage Storage

	// Applied is the index already applied to the host's state machine
	// before this Raft was constructed, so it never replays entries the
	// host has already processed.
	Applied uint64

	// MaxSizePerMsg caps the cumulative entry payload size of a single
	// MsgApp. Zero means unbounded.
	MaxSizePerMsg uint64

	// MaxCommittedSizePerReady caps the cumulative size of the entries
	// surfaced by a single Ready's CommittedEntries.
	MaxCommittedSizePerReady uint64

	// MaxUncommittedEntriesSize is the leader-side admission control
	// limit: once the sum of uncommitted proposal sizes would exceed
	// this, further proposals are rejected with ErrProposalDropped
	// (except the first one after becoming leader, which is always let
	// through so a leader can never wedge itself).
	MaxUncommittedEntriesSize uint64

	// MaxInflightMsgs bounds the sliding window of in-flight MsgApp
	// batches per follower while replicating.
	MaxInflightMsgs int

	// CheckQuorum enables a leader stepping down to follower once it has
	// not heard from a quorum of voters within an election timeout.
	CheckQuorum bool

	// PreVote enables the pre-vote phase: a node campaigns for real votes
	// only after first confirming it could actually win one, preventing a
	// partitioned node from needlessly disrupting a stable leader.
	PreVote bool

	// ReadOnlyOption selects how ReadIndex requests are confirmed.
	ReadOnlyOption ReadOnlyOption

	// DisableProposalForwarding stops a follower from forwarding MsgProp
	// to the leader; such proposals are dropped immediately instead.
	DisableProposalForwarding bool
}

// validate enforces the required fields and relationships spec.md names,
// returning a descriptive error wrapping ErrInvalidConfig on violation.
func (c *Config) validate() error {
	if c.ID == 0 {
		return fmt.Errorf("%w: id must not be zero", ErrInvalidConfig)
	}
	if c.HeartbeatTick <= 0 {
		return fmt.Errorf("%w: heartbeat tick must be greater than 0", ErrInvalidConfig)
	}
	if c.ElectionTick <= c.HeartbeatTick {
		return fmt.Errorf("%w: election tick must be greater than heartbeat tick", ErrInvalidConfig)
	}
	if c.Storage == nil {
		return fmt.Errorf("%w: storage must not be nil", ErrInvalidConfig)
	}
	if c.MaxInflightMsgs <= 0 {
		return fmt.Errorf("%w: max inflight messages must be greater than 0", ErrInvalidConfig)
	}

	seen := make(map[uint64]struct{}, len(c.Peers)+len(c.Learners))
	for _, id := range c.Peers {
		seen[id] = struct{}{}
	}
	for _, id := range c.Learners {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: node %d is listed as both a peer and a learner", ErrInvalidConfig, id)
		}
	}

	return nil
}
