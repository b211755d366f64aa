package raft

import (
	"github.com/Konstantsiy/raftkv/raftpb"
)

// Ready bundles everything a host must act on after a round of Step/Tick
// calls: entries and a possible snapshot to persist, messages to send, and
// entries already safe to apply to the state machine. A host must persist
// Entries (and HardState, if present) before sending Messages, and apply
// CommittedEntries before calling Advance.
type Ready struct {
	// SoftState is set only when (Lead, RaftState) changed since the last
	// Ready; it is never persisted.
	SoftState *SoftState

	// HardState is set only when (Term, Vote, Commit) changed since the
	// last Ready; a host must persist it before releasing Messages.
	HardState raftpb.HardState

	// Entries holds newly appended, not-yet-stable log entries to persist.
	Entries []raftpb.Entry

	// Snapshot, if non-empty, must be applied to the host's Storage
	// before CommittedEntries (which may start past it) are applied.
	Snapshot raftpb.Snapshot

	// CommittedEntries are ready for the host's state machine.
	CommittedEntries []raftpb.Entry

	// Messages must be sent only after Entries and HardState are durable.
	Messages []raftpb.Message

	// MustSync is true when Entries is non-empty or Term/Vote changed,
	// meaning HardState and Entries must hit stable storage before
	// Messages are released; a pure commit-index bump — HardState set
	// with only Commit having moved — does not need a synchronous write.
	MustSync bool

	// ReadStates are the read-index results ready for a host's pending
	// linearizable reads.
	ReadStates []ReadState
}

func isHardStateEqual(a, b raftpb.HardState) bool { return a.Equal(b) }

func isSoftStateEqual(a, b SoftState) bool { return a == b }

// RawNode is the host-facing wrapper around Raft: it tracks what has
// already been surfaced so Ready only reports deltas, and its Step rejects
// local-only message types (Hup, Beat, ...); those come only from its
// named wrapper methods and from Raft's own ticks.
type RawNode struct {
	raft *Raft

	prevSoftState SoftState
	prevHardState raftpb.HardState
}

// NewRawNode constructs a RawNode from the given Config, loading whatever
// HardState/ConfState c.Storage already holds.
func NewRawNode(c *Config) (*RawNode, error) {
	r, err := newRaft(c)
	if err != nil {
		return nil, err
	}
	rn := &RawNode{raft: r}
	rn.prevSoftState = r.softState()
	rn.prevHardState = r.hardState()
	return rn, nil
}

// Step advances the state machine with a message received from a peer.
// Local-only message types are rejected: a host may only produce those
// through the named wrapper methods below.
func (rn *RawNode) Step(m raftpb.Message) error {
	if raftpb.IsLocalMsg(m.Type) {
		return ErrStepLocalMsg
	}
	return rn.raft.Step(m)
}

// Tick advances the logical clock by one unit.
func (rn *RawNode) Tick() { rn.raft.Tick() }

// Campaign requests rn start an election immediately rather than waiting
// out its election timeout. Hosts ordinarily just let Tick drive
// elections; this exists for a host that wants to trigger one on demand
// (e.g. after observing the leader has gone silent out of band). It is
// a thin wrapper over Step(MsgHup), so the usual guards apply: a call on
// a node that is already leader, not promotable, or mid conf-change is
// simply ignored rather than forcing a state transition.
func (rn *RawNode) Campaign() error {
	return rn.raft.Step(raftpb.Message{From: rn.raft.id, Type: raftpb.MsgHup})
}

// Propose hands data to the state machine as a single new log entry. It
// fails with ErrProposalDropped if there is currently no known leader (or
// some other leader-side admission check rejects it).
func (rn *RawNode) Propose(data []byte) error {
	return rn.raft.Step(raftpb.Message{
		From: rn.raft.id, Type: raftpb.MsgProp,
		Entries: []raftpb.Entry{{Data: data}},
	})
}

// ProposeConfChange proposes a single membership change as a conf-change
// log entry.
func (rn *RawNode) ProposeConfChange(cc raftpb.ConfChange) error {
	data, err := cc.Marshal()
	if err != nil {
		return err
	}
	return rn.raft.Step(raftpb.Message{
		From: rn.raft.id, Type: raftpb.MsgProp,
		Entries: []raftpb.Entry{{Type: raftpb.EntryConfChange, Data: data}},
	})
}

// ApplyConfChange applies a conf change the host has already seen commit,
// returning the resulting ConfState.
func (rn *RawNode) ApplyConfChange(cc raftpb.ConfChange) (raftpb.ConfState, error) {
	return rn.raft.applyConfChange(cc)
}

// TransferLeader asks the current leader to hand off to transferee. It is
// a no-op request if this node is not the leader; the leader decides
// whether and when the handoff actually happens.
func (rn *RawNode) TransferLeader(transferee uint64) {
	// etcd's own convention: the transfer target rides in From, not To,
	// since this message is always self-addressed to the local leader.
	_ = rn.raft.Step(raftpb.Message{From: transferee, Type: raftpb.MsgTransferLeader})
}

// ReadIndex requests a linearizable read confirmation carrying the opaque
// token ctx; the result surfaces later in a Ready's ReadStates once a
// quorum round has confirmed the current commit index.
func (rn *RawNode) ReadIndex(ctx []byte) {
	_ = rn.raft.Step(raftpb.Message{
		From: rn.raft.id, Type: raftpb.MsgReadIndex,
		Entries: []raftpb.Entry{{Data: ctx}},
	})
}

// HasReady reports whether Ready would currently surface anything a host
// needs to act on.
func (rn *RawNode) HasReady() bool {
	r := rn.raft
	if !isSoftStateEqual(r.softState(), rn.prevSoftState) {
		return true
	}
	if hs := r.hardState(); !hs.IsEmpty() && !isHardStateEqual(hs, rn.prevHardState) {
		return true
	}
	if snap, err := r.raftLog.snapshot(); err == nil && !snap.IsEmpty() {
		return true
	}
	if len(r.msgs) > 0 || len(r.raftLog.unstableEntries()) > 0 || r.raftLog.hasNextEntries() {
		return true
	}
	if len(r.readStates) > 0 {
		return true
	}
	return false
}

// Ready returns the next batch of state a host must persist, send, and
// apply. Calling it again without an intervening Advance returns the same
// entries and state deltas, but Messages are drained by each call and are
// not returned a second time.
func (rn *RawNode) Ready() Ready {
	r := rn.raft

	rd := Ready{
		Entries:          r.raftLog.unstableEntries(),
		CommittedEntries: r.raftLog.nextEntries(),
		Messages:         r.msgs,
	}

	if ss := r.softState(); !isSoftStateEqual(ss, rn.prevSoftState) {
		rd.SoftState = &ss
	}
	if hs := r.hardState(); !isHardStateEqual(hs, rn.prevHardState) {
		rd.HardState = hs
		if hs.Term != rn.prevHardState.Term || hs.Vote != rn.prevHardState.Vote {
			rd.MustSync = true
		}
	}
	if len(rd.Entries) > 0 {
		rd.MustSync = true
	}

	if snap, err := r.raftLog.snapshot(); err == nil && !snap.IsEmpty() {
		rd.Snapshot = snap
	}

	if len(r.readStates) > 0 {
		rd.ReadStates = r.readStates
	}

	r.msgs = nil
	return rd
}

// Advance tells the core that the host has finished acting on a Ready:
// entries and any snapshot are durable, committed entries are applied,
// and messages are on their way out. The host must pass back the very
// Ready it just processed.
func (rn *RawNode) Advance(rd Ready) {
	r := rn.raft

	if !rd.HardState.IsEmpty() {
		rn.prevHardState = rd.HardState
	}
	if rd.SoftState != nil {
		rn.prevSoftState = *rd.SoftState
	}

	if !rd.Snapshot.IsEmpty() {
		r.raftLog.stableSnapTo(rd.Snapshot.Metadata.Index)
	}
	if n := len(rd.Entries); n > 0 {
		last := rd.Entries[n-1]
		r.raftLog.stableTo(last.Index, last.Term)
	}
	if n := len(rd.CommittedEntries); n > 0 {
		last := rd.CommittedEntries[n-1]
		r.raftLog.appliedTo(last.Index)
		r.reduceUncommittedSize(rd.CommittedEntries)
	}

	if n := len(rd.ReadStates); n > 0 {
		if n == len(r.readStates) {
			r.readStates = nil
		} else {
			r.readStates = r.readStates[n:]
		}
	}
}

// Status is a snapshot of the node's own view of the cluster, useful for
// diagnostics and for a host deciding whether it is currently the leader.
type Status struct {
	ID        uint64
	SoftState SoftState
	HardState raftpb.HardState
	Applied   uint64
}

// Status reports rn's current view.
func (rn *RawNode) Status() Status {
	r := rn.raft
	return Status{
		ID:        r.id,
		SoftState: r.softState(),
		HardState: r.hardState(),
		Applied:   r.raftLog.applied,
	}
}

