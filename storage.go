package raft

import (
	"fmt"
	"sync"

	"github.com/Konstantsiy/raftkv/raftpb"
)

// Storage is the core's read-only view of the durable log and the last
// applied snapshot. The core never writes through it directly; a host
// applies Ready.entries and Ready.snapshot to its own Storage and only
// then calls Advance. See internal/walstorage for a durable implementation;
// MemoryStorage below is the in-memory reference used by tests.
type Storage interface {
	// InitialState returns the saved HardState and ConfState, used once
	// at RawNode construction.
	InitialState() (raftpb.HardState, raftpb.ConfState, error)

	// Entries returns the entries in [lo, hi), bounded by maxSize bytes
	// of Data (always returning at least one entry if the range is
	// non-empty). Returns ErrCompacted if lo is at or before the
	// snapshot index, ErrUnavailable if hi is past LastIndex()+1.
	Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error)

	// Term returns the term of the entry at index i. Returns
	// ErrCompacted if i precedes the snapshot index, ErrUnavailable if i
	// is past LastIndex().
	Term(i uint64) (uint64, error)

	// FirstIndex returns the index of the first entry still retained
	// (snapshot index + 1).
	FirstIndex() (uint64, error)

	// LastIndex returns the index of the last entry in the log.
	LastIndex() (uint64, error)

	// Snapshot returns the most recently taken snapshot. May return
	// ErrSnapshotTemporarilyUnavailable if one cannot be produced right
	// now; the core retries on a later tick.
	Snapshot() (raftpb.Snapshot, error)
}

// MemoryStorage is a Storage backed entirely by in-memory slices. It is
// the reference implementation used throughout this repo's tests and is
// safe for concurrent use by a host that wants to inspect it from outside
// the single-threaded core loop.
type MemoryStorage struct {
	mu sync.Mutex

	hardState raftpb.HardState
	snapshot  raftpb.Snapshot

	// ents[i] holds the entry at index ents[0].Index+i; ents[0] is always
	// a dummy entry carrying the snapshot's index/term, so a fresh
	// MemoryStorage always has at least one entry.
	ents []raftpb.Entry
}

// NewMemoryStorage creates a MemoryStorage with an empty log starting at
// index 0.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ents: []raftpb.Entry{{}},
	}
}

func (ms *MemoryStorage) InitialState() (raftpb.HardState, raftpb.ConfState, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hardState, ms.snapshot.Metadata.ConfState, nil
}

// SetHardState persists hs, used by tests and by a host's persistence
// layer to record Ready.HardState before sending messages.
func (ms *MemoryStorage) SetHardState(hs raftpb.HardState) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.hardState = hs
	return nil
}

func (ms *MemoryStorage) firstIndexLocked() uint64 {
	return ms.ents[0].Index + 1
}

func (ms *MemoryStorage) lastIndexLocked() uint64 {
	return ms.ents[0].Index + uint64(len(ms.ents)) - 1
}

func (ms *MemoryStorage) FirstIndex() (uint64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.firstIndexLocked(), nil
}

func (ms *MemoryStorage) LastIndex() (uint64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastIndexLocked(), nil
}

func (ms *MemoryStorage) Term(i uint64) (uint64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	offset := ms.ents[0].Index
	if i < offset {
		return 0, ErrCompacted
	}
	if int(i-offset) >= len(ms.ents) {
		return 0, ErrUnavailable
	}
	return ms.ents[i-offset].Term, nil
}

func (ms *MemoryStorage) Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	offset := ms.ents[0].Index
	if lo <= offset {
		return nil, ErrCompacted
	}
	if hi > ms.lastIndexLocked()+1 {
		return nil, fmt.Errorf("raft: entries' hi(%d) is out of bound lastindex(%d): %w", hi, ms.lastIndexLocked(), ErrUnavailable)
	}

	ents := ms.ents[lo-offset : hi-offset]
	return limitSize(ents, maxSize), nil
}

func (ms *MemoryStorage) Snapshot() (raftpb.Snapshot, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.snapshot, nil
}

// Append appends entries to the log, truncating any existing conflicting
// suffix first. Entries already compacted away are silently skipped.
// This is the host's job after persisting Ready.Entries; the core itself
// never calls it.
func (ms *MemoryStorage) Append(entries []raftpb.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	first := ms.firstIndexLocked()
	last := entries[0].Index + uint64(len(entries)) - 1
	if last < first {
		return nil
	}
	if first > entries[0].Index {
		entries = entries[first-entries[0].Index:]
	}

	offset := entries[0].Index - ms.ents[0].Index
	switch {
	case uint64(len(ms.ents)) > offset:
		ms.ents = append([]raftpb.Entry{}, ms.ents[:offset]...)
		ms.ents = append(ms.ents, entries...)
	case uint64(len(ms.ents)) == offset:
		ms.ents = append(ms.ents, entries...)
	default:
		return fmt.Errorf("raft: missing log entry [last: %d, append at: %d]", ms.lastIndexLocked(), entries[0].Index)
	}
	return nil
}

// ApplySnapshot installs snap as the new base of the log, discarding every
// entry it held (including any past the snapshot's index).
func (ms *MemoryStorage) ApplySnapshot(snap raftpb.Snapshot) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	msIndex := ms.snapshot.Metadata.Index
	snapIndex := snap.Metadata.Index
	if msIndex >= snapIndex {
		return ErrSnapOutOfDate
	}

	ms.snapshot = snap
	ms.ents = []raftpb.Entry{{Term: snap.Metadata.Term, Index: snap.Metadata.Index}}
	return nil
}

// Compact discards log entries up to and including compactIndex, keeping
// only what is needed to answer Term() at compactIndex.
func (ms *MemoryStorage) Compact(compactIndex uint64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	offset := ms.ents[0].Index
	if compactIndex <= offset {
		return ErrCompacted
	}
	if compactIndex > ms.lastIndexLocked() {
		return fmt.Errorf("raft: compact %d is out of bound lastindex %d", compactIndex, ms.lastIndexLocked())
	}

	i := compactIndex - offset
	remaining := make([]raftpb.Entry, 1, uint64(len(ms.ents))-i)
	remaining[0].Index = ms.ents[i].Index
	remaining[0].Term = ms.ents[i].Term
	remaining = append(remaining, ms.ents[i+1:]...)
	ms.ents = remaining
	return nil
}

// CreateSnapshot takes a snapshot of the log up to index i with the given
// state machine data and membership, for a host to hand to a slow
// follower via MsgSnap.
func (ms *MemoryStorage) CreateSnapshot(i uint64, cs raftpb.ConfState, data []byte) (raftpb.Snapshot, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if i <= ms.snapshot.Metadata.Index {
		return raftpb.Snapshot{}, ErrSnapOutOfDate
	}

	offset := ms.ents[0].Index
	if i > ms.lastIndexLocked() {
		return raftpb.Snapshot{}, fmt.Errorf("raft: snapshot %d is out of bound lastindex %d", i, ms.lastIndexLocked())
	}

	ms.snapshot.Metadata.Index = i
	ms.snapshot.Metadata.Term = ms.ents[i-offset].Term
	ms.snapshot.Metadata.ConfState = cs
	ms.snapshot.Data = data
	return ms.snapshot, nil
}

// limitSize truncates ents so the cumulative Data size does not exceed
// maxSize, but always keeps at least the first entry.
func limitSize(ents []raftpb.Entry, maxSize uint64) []raftpb.Entry {
	if len(ents) == 0 || maxSize == 0 {
		return ents
	}

	size := uint64(len(ents[0].Data))
	var i int
	for i = 1; i < len(ents); i++ {
		size += uint64(len(ents[i].Data))
		if size > maxSize {
			break
		}
	}
	return ents[:i]
}
