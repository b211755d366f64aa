package raft

import (
	"fmt"

	"github.com/Konstantsiy/raftkv/raftpb"
)

// noLimit disables the byte-size bound on slice/entries.
const noLimit = ^uint64(0)

// raftLog glues a durable Storage to the in-memory unstable suffix, giving
// the rest of the core a single index space to query against regardless of
// whether an entry has been persisted yet. It also tracks committed and
// applied, the two watermarks that move independently of what's merely
// durable.
type raftLog struct {
	storage  Storage
	unstable unstable

	// committed is the highest log index known to be present on a
	// majority of voters. applied is the highest index the host has
	// confirmed to its state machine; applied <= committed always.
	committed uint64
	applied   uint64

	// maxNextEntsSize bounds the cumulative Data size nextEntries hands
	// back in one call. Zero means unbounded.
	maxNextEntsSize uint64
}

// newRaftLog builds a raftLog over storage, seeding committed/applied at
// storage's first index minus one (i.e. at the snapshot boundary).
// maxNextEntsSize bounds nextEntries; pass 0 for unbounded.
func newRaftLog(storage Storage, maxNextEntsSize uint64) *raftLog {
	firstIndex, err := storage.FirstIndex()
	if err != nil {
		panic(err)
	}
	lastIndex, err := storage.LastIndex()
	if err != nil {
		panic(err)
	}

	l := &raftLog{
		storage: storage,
		unstable: unstable{
			offset: lastIndex + 1,
		},
		maxNextEntsSize: maxNextEntsSize,
	}
	l.committed = firstIndex - 1
	l.applied = firstIndex - 1
	return l
}

func (l *raftLog) lastIndex() uint64 {
	if i, ok := l.unstable.maybeLastIndex(); ok {
		return i
	}
	i, err := l.storage.LastIndex()
	if err != nil {
		panic(err)
	}
	return i
}

func (l *raftLog) firstIndex() uint64 {
	if i, ok := l.unstable.maybeFirstIndex(); ok {
		return i
	}
	i, err := l.storage.FirstIndex()
	if err != nil {
		panic(err)
	}
	return i
}

// term returns the term of the entry at i, or 0 if it is compacted away or
// beyond the log's end (0 is the etcd-style convention for "nothing
// here"). At the dummy slot just before firstIndex it returns the term
// Storage records there, i.e. the snapshot's term.
func (l *raftLog) term(i uint64) uint64 {
	dummyIndex := l.firstIndex() - 1
	if i < dummyIndex || i > l.lastIndex() {
		return 0
	}

	if t, ok := l.unstable.maybeTerm(i); ok {
		return t
	}

	t, err := l.storage.Term(i)
	if err == nil {
		return t
	}
	if err == ErrCompacted || err == ErrUnavailable {
		return 0
	}
	panic(err)
}

// isUpToDate reports whether a candidate's log described by
// (lastIndex, lastTerm) is at least as up to date as ours, per the usual
// Raft comparison: higher term wins outright, equal term compares index.
func (l *raftLog) isUpToDate(lastIndex, lastTerm uint64) bool {
	ourTerm := l.term(l.lastIndex())
	return lastTerm > ourTerm || (lastTerm == ourTerm && lastIndex >= l.lastIndex())
}

// matchTerm reports whether the entry at i has term t.
func (l *raftLog) matchTerm(i, t uint64) bool {
	return l.term(i) == t
}

// findConflict walks ents looking for the first one whose (index, term)
// disagrees with what's already in the log (or that is entirely new),
// returning its index, or 0 if every entry already matches.
func (l *raftLog) findConflict(ents []raftpb.Entry) uint64 {
	for _, ne := range ents {
		if !l.matchTerm(ne.Index, ne.Term) {
			return ne.Index
		}
	}
	return 0
}

// maybeAppend tries to append ents onto the log on behalf of an
// AppendEntries-style request: prevIndex/prevTerm must match what we have,
// after which any entries that conflict with what we already hold cause a
// truncate-then-append. Returns the new last index and whether the append
// succeeded.
func (l *raftLog) maybeAppend(prevIndex, prevTerm, committed uint64, ents []raftpb.Entry) (lastNewIndex uint64, ok bool) {
	if !l.matchTerm(prevIndex, prevTerm) {
		return 0, false
	}

	lastNewIndex = prevIndex + uint64(len(ents))
	if conflict := l.findConflict(ents); conflict != 0 {
		switch {
		case conflict <= l.committed:
			panic(fmt.Sprintf("raft: entry %d conflicts with committed entry [committed(%d)]", conflict, l.committed))
		default:
			offset := prevIndex + 1
			l.append(ents[conflict-offset:]...)
		}
	}

	l.commitTo(min(committed, lastNewIndex))
	return lastNewIndex, true
}

// append appends ents to the unstable suffix directly, used by a leader
// appending its own proposals (there is nothing to conflict-check: a
// leader's own log is always the source of truth for entries it creates).
func (l *raftLog) append(ents ...raftpb.Entry) uint64 {
	if len(ents) == 0 {
		return l.lastIndex()
	}
	if after := ents[0].Index - 1; after < l.committed {
		panic(fmt.Sprintf("raft: after(%d) is out of range [committed(%d)]", after, l.committed))
	}
	l.unstable.truncateAndAppend(ents)
	return l.lastIndex()
}

// commitTo advances committed to i, never backward.
func (l *raftLog) commitTo(i uint64) {
	if i > l.committed {
		if l.lastIndex() < i {
			panic(fmt.Sprintf("raft: commitTo(%d) is out of range [lastIndex(%d)]", i, l.lastIndex()))
		}
		l.committed = i
	}
}

// appliedTo advances applied to i, used once the host confirms it handed
// entries up to i to its state machine.
func (l *raftLog) appliedTo(i uint64) {
	if i == 0 {
		return
	}
	if l.committed < i || i < l.applied {
		panic(fmt.Sprintf("raft: appliedTo(%d) is out of range [applied(%d), committed(%d)]", i, l.applied, l.committed))
	}
	l.applied = i
}

func (l *raftLog) stableTo(i, t uint64)  { l.unstable.stableTo(i, t) }
func (l *raftLog) stableSnapTo(i uint64) { l.unstable.stableSnapTo(i) }

// nextEntries returns the entries in (applied, committed] that the host
// still needs to apply to its state machine.
func (l *raftLog) nextEntries() []raftpb.Entry {
	off := max(l.applied+1, l.firstIndex())
	if l.committed+1 <= off {
		return nil
	}
	ents, err := l.slice(off, l.committed+1, l.maxNextEntsSize)
	if err != nil {
		panic(err)
	}
	return ents
}

// hasNextEntries reports whether nextEntries would return anything,
// without paying for the slice.
func (l *raftLog) hasNextEntries() bool {
	off := max(l.applied+1, l.firstIndex())
	return l.committed+1 > off
}

// unstableEntries returns the entries not yet handed to Storage, for
// inclusion in a Ready.
func (l *raftLog) unstableEntries() []raftpb.Entry {
	if len(l.unstable.entries) == 0 {
		return nil
	}
	return l.unstable.entries
}

// snapshot returns the pending unstable snapshot, if any, else falls back
// to Storage's.
func (l *raftLog) snapshot() (raftpb.Snapshot, error) {
	if l.unstable.snapshot != nil {
		return *l.unstable.snapshot, nil
	}
	return l.storage.Snapshot()
}

// restore installs snap as the new log base, used when this node receives
// a MsgSnap it cannot bridge with entries alone.
func (l *raftLog) restore(snap raftpb.Snapshot) {
	l.committed = snap.Metadata.Index
	l.unstable.restore(snap)
}

// entries returns the entries starting at i, bounded by maxSize bytes.
func (l *raftLog) entries(i, maxSize uint64) ([]raftpb.Entry, error) {
	if i > l.lastIndex() {
		return nil, nil
	}
	return l.slice(i, l.lastIndex()+1, maxSize)
}

// slice returns the entries in [lo, hi), crossing the storage/unstable
// boundary transparently and bounded by maxSize bytes of Data.
func (l *raftLog) slice(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	if lo > hi {
		return nil, fmt.Errorf("raft: invalid slice %d > %d", lo, hi)
	}
	if lo < l.firstIndex() {
		return nil, ErrCompacted
	}
	if hi > l.lastIndex()+1 {
		return nil, fmt.Errorf("raft: slice[%d,%d) out of bound lastindex(%d)", lo, hi, l.lastIndex())
	}
	if lo == hi {
		return nil, nil
	}

	var ents []raftpb.Entry
	if lo < l.unstable.offset {
		storedEnts, err := l.storage.Entries(lo, min(hi, l.unstable.offset), maxSize)
		if err != nil {
			return nil, err
		}
		ents = storedEnts
		if uint64(len(ents)) < min(hi, l.unstable.offset)-lo {
			return ents, nil
		}
	}
	if hi > l.unstable.offset {
		ents = append(ents, l.unstable.slice(max(lo, l.unstable.offset), hi)...)
	}
	return limitSize(ents, maxSize), nil
}

func max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
