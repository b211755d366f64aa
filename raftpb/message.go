package raftpb

import "fmt"

// MessageType enumerates every message the core can send or receive.
// Local types (see IsLocalMsg) are synthesized by RawNode's wrapper methods
// or by the core's own ticks, and are rejected if a host passes them to
// RawNode.Step directly.
type MessageType uint8

const (
	// Mostly local types. MsgProp and MsgTimeoutNow do cross the wire: a
	// follower forwards MsgProp to the leader, and a leader sends
	// MsgTimeoutNow to its transfer target.
	MsgHup MessageType = iota
	MsgBeat
	MsgProp
	MsgCheckQuorum
	MsgSnapStatus
	MsgUnreachable
	MsgTransferLeader
	MsgTimeoutNow

	// Peer messages.
	MsgApp
	MsgAppResp
	MsgVote
	MsgVoteResp
	MsgPreVote
	MsgPreVoteResp
	MsgSnap
	MsgHeartbeat
	MsgHeartbeatResp
	MsgReadIndex
	MsgReadIndexResp
)

var messageTypeNames = map[MessageType]string{
	MsgHup:            "MsgHup",
	MsgBeat:           "MsgBeat",
	MsgProp:           "MsgProp",
	MsgCheckQuorum:    "MsgCheckQuorum",
	MsgSnapStatus:     "MsgSnapStatus",
	MsgUnreachable:    "MsgUnreachable",
	MsgTransferLeader: "MsgTransferLeader",
	MsgTimeoutNow:     "MsgTimeoutNow",
	MsgApp:            "MsgApp",
	MsgAppResp:        "MsgAppResp",
	MsgVote:           "MsgVote",
	MsgVoteResp:       "MsgVoteResp",
	MsgPreVote:        "MsgPreVote",
	MsgPreVoteResp:    "MsgPreVoteResp",
	MsgSnap:           "MsgSnap",
	MsgHeartbeat:      "MsgHeartbeat",
	MsgHeartbeatResp:  "MsgHeartbeatResp",
	MsgReadIndex:      "MsgReadIndex",
	MsgReadIndexResp:  "MsgReadIndexResp",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", t)
}

// IsLocalMsg reports whether t is only valid as a self-directed message
// synthesized by RawNode, never something a host may Step directly.
func IsLocalMsg(t MessageType) bool {
	switch t {
	case MsgHup, MsgBeat, MsgUnreachable, MsgSnapStatus, MsgCheckQuorum, MsgTransferLeader:
		return true
	default:
		return false
	}
}

// IsResponseMsg reports whether t carries a Term/Reject response to an
// earlier request. Nothing in this module calls it.
func IsResponseMsg(t MessageType) bool {
	switch t {
	case MsgAppResp, MsgVoteResp, MsgHeartbeatResp, MsgPreVoteResp, MsgUnreachable:
		return true
	default:
		return false
	}
}

// Message is the single envelope exchanged between raft instances, or
// synthesized locally to drive the state machine (Tick, Propose, ...).
// Field semantics depend on Type; see the core's handling code.
type Message struct {
	Type       MessageType
	To         uint64
	From       uint64
	Term       uint64
	LogTerm    uint64
	Index      uint64
	Entries    []Entry
	Commit     uint64
	Snapshot   Snapshot
	Reject     bool
	RejectHint uint64
	Context    []byte
}
