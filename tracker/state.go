// Package tracker holds the leader-side bookkeeping about where every
// other peer is in the replication stream: how far it has acked
// (Progress), how many appends are outstanding (Inflights), and whether a
// candidate index is committed by a quorum of voters (ProgressTracker).
//
// Nothing here is specific to any one raft instance; a ProgressTracker is
// created fresh on construction and again when a snapshot is restored,
// while raft.Raft.reset resets each Progress in place on every term
// change, the same way the teacher's state-machine package is handed
// a brand new in-memory map per test rather than sharing one across cases.
package tracker

import "fmt"

// StateType is the replication mode the leader believes a follower is in.
type StateType byte

const (
	// StateProbe: the leader does not know the follower's state, so it
	// paces to one outstanding append at a time until it gets an ack.
	StateProbe StateType = iota
	// StateReplicate: the leader knows where the follower is and
	// optimistically streams new entries up to MaxInflight ahead of acks.
	StateReplicate
	// StateSnapshot: the leader is sending (or waiting on an ack for) a
	// snapshot and withholds further appends until it resolves.
	StateSnapshot
)

var stateNames = [...]string{"StateProbe", "StateReplicate", "StateSnapshot"}

func (s StateType) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("StateType(%d)", s)
}
