package raft

import "github.com/Konstantsiy/raftkv/raftpb"

// unstable holds the suffix of the log that has not yet been handed to
// Storage, plus a snapshot pending installation. entries[i] lives at log
// index i+offset; offset may trail behind what Storage already holds,
// meaning the next write to Storage will need to truncate before
// appending (see RaftLog.maybeAppend's interaction with findConflict).
type unstable struct {
	snapshot *raftpb.Snapshot
	entries  []raftpb.Entry
	offset   uint64
}

// maybeFirstIndex returns the index directly after a pending snapshot, if
// one is held; unstable entries alone never define a first index because
// they might be a suffix of an already-stable prefix.
func (u *unstable) maybeFirstIndex() (uint64, bool) {
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index + 1, true
	}
	return 0, false
}

// maybeLastIndex returns the index of the last unstable entry, or the
// snapshot's index if there are no entries, or nothing if unstable is
// empty.
func (u *unstable) maybeLastIndex() (uint64, bool) {
	if n := len(u.entries); n != 0 {
		return u.offset + uint64(n) - 1, true
	}
	if u.snapshot != nil {
		return u.snapshot.Metadata.Index, true
	}
	return 0, false
}

// maybeTerm returns the term of the entry at i, if i is covered by the
// unstable entries or is exactly the pending snapshot's index.
func (u *unstable) maybeTerm(i uint64) (uint64, bool) {
	if i < u.offset {
		if u.snapshot != nil && u.snapshot.Metadata.Index == i {
			return u.snapshot.Metadata.Term, true
		}
		return 0, false
	}

	last, ok := u.maybeLastIndex()
	if !ok || i > last {
		return 0, false
	}
	return u.entries[i-u.offset].Term, true
}

// stableTo drops entries up to and including (i, t) once the host has
// persisted them to Storage, advancing offset. A mismatched term means
// those entries were since overwritten (e.g. the node lost an election
// after another leader's entries arrived) and must not be dropped here.
func (u *unstable) stableTo(i, t uint64) {
	gt, ok := u.maybeTerm(i)
	if !ok {
		return
	}
	if gt != t || i < u.offset {
		return
	}

	u.entries = u.entries[i+1-u.offset:]
	u.offset = i + 1
}

// stableSnapTo clears the pending snapshot once the host confirms it was
// applied, provided it is still the same snapshot (a newer one may have
// already replaced it).
func (u *unstable) stableSnapTo(i uint64) {
	if u.snapshot != nil && u.snapshot.Metadata.Index == i {
		u.snapshot = nil
	}
}

// restore replaces all unstable state with snap, used when the core
// installs an incoming MsgSnap.
func (u *unstable) restore(snap raftpb.Snapshot) {
	u.offset = snap.Metadata.Index + 1
	u.entries = nil
	u.snapshot = &snap
}

// truncateAndAppend merges ents into the unstable buffer: a contiguous
// continuation extends it, a prefix-or-earlier write replaces it outright,
// and an overlapping write keeps the non-conflicting prefix and appends
// from there.
func (u *unstable) truncateAndAppend(ents []raftpb.Entry) {
	if len(ents) == 0 {
		return
	}

	first := ents[0].Index
	switch {
	case first == u.offset+uint64(len(u.entries)):
		u.entries = append(u.entries, ents...)
	case first <= u.offset:
		u.offset = first
		u.entries = ents
	default:
		u.entries = append([]raftpb.Entry{}, u.entries[:first-u.offset]...)
		u.entries = append(u.entries, ents...)
	}
}

// slice returns the unstable entries in [lo, hi).
func (u *unstable) slice(lo, hi uint64) []raftpb.Entry {
	return u.entries[lo-u.offset : hi-u.offset]
}
