package raft

import "errors"

// Storage errors. ErrCompacted and ErrUnavailable are routine — the core
// retries or gives up on that one request — while a caller that sees
// ErrCompacted where it would corrupt in-memory state (e.g. mid-append)
// should treat it as a storage fault, not a request to retry.
var (
	// ErrCompacted is returned by Storage when a requested index precedes
	// the storage's snapshot index; the entries are gone for good.
	ErrCompacted = errors.New("raft: requested index is unavailable due to compaction")

	// ErrSnapOutOfDate is returned by a Storage's ApplySnapshot or
	// CreateSnapshot when the snapshot index is at or behind the snapshot
	// it already holds. The core itself ignores an incoming snapshot at or
	// behind its commit index without returning this error.
	ErrSnapOutOfDate = errors.New("raft: snapshot is out of date")

	// ErrUnavailable is returned by Storage when a requested index is
	// past the last index it holds.
	ErrUnavailable = errors.New("raft: requested entry at index is unavailable")

	// ErrSnapshotTemporarilyUnavailable is returned by Storage when it
	// cannot produce a snapshot right now; the leader retries later.
	ErrSnapshotTemporarilyUnavailable = errors.New("raft: snapshot is temporarily unavailable")
)

// Proposal and construction errors.
var (
	// ErrProposalDropped is returned to a caller whose proposal was
	// rejected without mutating state: no leader, over the uncommitted
	// size limit, a leader transfer is in progress, or a conf change is
	// already pending.
	ErrProposalDropped = errors.New("raft: proposal dropped")

	// ErrInvalidConfig is returned by Config.validate (run by NewRawNode
	// through newRaft) when construction
	// options are missing or inconsistent.
	ErrInvalidConfig = errors.New("raft: invalid configuration")

	// ErrStepLocalMsg is returned by Step when called with a message type
	// that may only be synthesized by RawNode's own wrapper methods.
	ErrStepLocalMsg = errors.New("raft: cannot step a local-only message type")

	// ErrStepPeerNotFound names the case of a message from or to a peer id
	// the local Raft doesn't track. Neither RawNode.Step nor Raft.Step
	// returns it; the handlers ignore responses from untracked peers.
	ErrStepPeerNotFound = errors.New("raft: cannot step message from unknown peer")
)
