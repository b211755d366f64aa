// Package walstorage is the durable raft.Storage a host process actually
// runs on: entries and hard state live in a log file that is rewritten in
// full on every write, snapshots in a sibling file, both read back in full at startup. It is
// the on-disk answer to spec.md's "write-ahead log and snapshot files"
// collaborator, which the core itself never touches directly.
package walstorage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	raft "github.com/Konstantsiy/raftkv"
	"github.com/Konstantsiy/raftkv/raftpb"
)

// Storage implements raft.Storage over a pair of files: a log file
// holding the header (term/vote/commit + entry count) and every entry,
// and a snapshot file holding the most recent Snapshot, if any. Layout
// mirrors the teacher's own persist/restore format (fixed-width
// big-endian headers, length-prefixed records), extended with the
// snapshot metadata raft.Storage needs that the teacher's flat Follower/
// Candidate/Leader server never had to persist.
type Storage struct {
	mu sync.Mutex

	logPath  string
	snapPath string

	hardState raftpb.HardState
	snapshot  raftpb.Snapshot

	// ents[0] is always a dummy entry carrying the snapshot's index/term,
	// same convention as raft.MemoryStorage.
	ents []raftpb.Entry
}

// Open opens (creating if necessary) the log and snapshot files under
// dataDir and replays whatever they already hold.
func Open(dataDir string, nodeID uint64) (*Storage, error) {
	s := &Storage{
		logPath:  fmt.Sprintf("%s/node-%d.log", dataDir, nodeID),
		snapPath: fmt.Sprintf("%s/node-%d.snap", dataDir, nodeID),
		ents:     []raftpb.Entry{{}},
	}

	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) InitialState() (raftpb.HardState, raftpb.ConfState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardState, s.snapshot.Metadata.ConfState, nil
}

func (s *Storage) firstIndexLocked() uint64 { return s.ents[0].Index + 1 }
func (s *Storage) lastIndexLocked() uint64  { return s.ents[0].Index + uint64(len(s.ents)) - 1 }

func (s *Storage) FirstIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstIndexLocked(), nil
}

func (s *Storage) LastIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIndexLocked(), nil
}

func (s *Storage) Term(i uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.ents[0].Index
	if i < offset {
		return 0, raft.ErrCompacted
	}
	if int(i-offset) >= len(s.ents) {
		return 0, raft.ErrUnavailable
	}
	return s.ents[i-offset].Term, nil
}

func (s *Storage) Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.ents[0].Index
	if lo <= offset {
		return nil, raft.ErrCompacted
	}
	if hi > s.lastIndexLocked()+1 {
		return nil, fmt.Errorf("walstorage: hi(%d) out of bound lastindex(%d): %w", hi, s.lastIndexLocked(), raft.ErrUnavailable)
	}
	return limitSize(s.ents[lo-offset:hi-offset], maxSize), nil
}

func (s *Storage) Snapshot() (raftpb.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, nil
}

// Append adds ents to the in-memory mirror used to answer Entries/Term,
// truncating any conflicting suffix first, then rewrites the log file.
func (s *Storage) Append(ents []raftpb.Entry) error {
	if len(ents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.firstIndexLocked()
	last := ents[0].Index + uint64(len(ents)) - 1
	if last < first {
		return nil
	}
	if first > ents[0].Index {
		ents = ents[first-ents[0].Index:]
	}

	offset := ents[0].Index - s.ents[0].Index
	switch {
	case uint64(len(s.ents)) > offset:
		s.ents = append([]raftpb.Entry{}, s.ents[:offset]...)
		s.ents = append(s.ents, ents...)
	case uint64(len(s.ents)) == offset:
		s.ents = append(s.ents, ents...)
	default:
		return fmt.Errorf("walstorage: missing log entry [last: %d, append at: %d]", s.lastIndexLocked(), ents[0].Index)
	}

	return s.persistLocked()
}

// SetHardState persists hs.
func (s *Storage) SetHardState(hs raftpb.HardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hardState = hs
	return s.persistLocked()
}

// ApplySnapshot installs snap as the new base of the log, discarding every
// entry it held (including any past the snapshot's index) and persisting
// both files.
func (s *Storage) ApplySnapshot(snap raftpb.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.Metadata.Index >= snap.Metadata.Index {
		return raft.ErrSnapOutOfDate
	}

	s.snapshot = snap
	s.ents = []raftpb.Entry{{Term: snap.Metadata.Term, Index: snap.Metadata.Index}}

	if err := s.persistSnapshotLocked(); err != nil {
		return err
	}
	return s.persistLocked()
}

// persistLocked writes the log file in the teacher's own header-then-records
// layout:
//
//	[0:8]    currentTerm (uint64)
//	[8:16]   votedFor    (uint64)
//	[16:24]  commit      (uint64)
//	[24:32]  baseIndex   (uint64, ents[0].Index)
//	[32:40]  baseTerm    (uint64, ents[0].Term)
//	[40:48]  entryCount  (uint64)
//	then, per entry: term(8) index(8) type(1) dataLen(4) data
func (s *Storage) persistLocked() error {
	f, err := os.OpenFile(s.logPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("walstorage: cannot open log file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 48)
	binary.BigEndian.PutUint64(header[0:8], s.hardState.Term)
	binary.BigEndian.PutUint64(header[8:16], s.hardState.Vote)
	binary.BigEndian.PutUint64(header[16:24], s.hardState.Commit)
	binary.BigEndian.PutUint64(header[24:32], s.ents[0].Index)
	binary.BigEndian.PutUint64(header[32:40], s.ents[0].Term)
	binary.BigEndian.PutUint64(header[40:48], uint64(len(s.ents)-1))

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("walstorage: cannot write log header: %w", err)
	}

	for i, e := range s.ents[1:] {
		entryHeader := make([]byte, 21)
		binary.BigEndian.PutUint64(entryHeader[0:8], e.Term)
		binary.BigEndian.PutUint64(entryHeader[8:16], e.Index)
		entryHeader[16] = byte(e.Type)
		binary.BigEndian.PutUint32(entryHeader[17:21], uint32(len(e.Data)))

		if _, err := f.Write(entryHeader); err != nil {
			return fmt.Errorf("walstorage: cannot write entry %d header: %w", i, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return fmt.Errorf("walstorage: cannot write entry %d data: %w", i, err)
		}
	}

	return f.Sync()
}

// persistSnapshotLocked writes the snapshot file:
//
//	[0:8]   Index
//	[8:16]  Term
//	[16:20] len(voters)
//	voters...(uint64 each)
//	[..4]   len(learners)
//	learners...(uint64 each)
//	[..4]   len(data)
//	data
func (s *Storage) persistSnapshotLocked() error {
	f, err := os.OpenFile(s.snapPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("walstorage: cannot open snapshot file: %w", err)
	}
	defer f.Close()

	meta := s.snapshot.Metadata
	header := make([]byte, 16)
	binary.BigEndian.PutUint64(header[0:8], meta.Index)
	binary.BigEndian.PutUint64(header[8:16], meta.Term)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("walstorage: cannot write snapshot header: %w", err)
	}

	if err := writeIDList(f, meta.ConfState.Voters); err != nil {
		return err
	}
	if err := writeIDList(f, meta.ConfState.Learners); err != nil {
		return err
	}

	dataLen := make([]byte, 4)
	binary.BigEndian.PutUint32(dataLen, uint32(len(s.snapshot.Data)))
	if _, err := f.Write(dataLen); err != nil {
		return fmt.Errorf("walstorage: cannot write snapshot data length: %w", err)
	}
	if _, err := f.Write(s.snapshot.Data); err != nil {
		return fmt.Errorf("walstorage: cannot write snapshot data: %w", err)
	}

	return f.Sync()
}

func writeIDList(f *os.File, ids []uint64) error {
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(ids)))
	if _, err := f.Write(count); err != nil {
		return fmt.Errorf("walstorage: cannot write id list length: %w", err)
	}
	for _, id := range ids {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, id)
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("walstorage: cannot write id: %w", err)
		}
	}
	return nil
}

func (s *Storage) restore() error {
	if err := s.restoreSnapshot(); err != nil {
		return err
	}
	return s.restoreLog()
}

func (s *Storage) restoreLog() error {
	f, err := os.OpenFile(s.logPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("walstorage: cannot open log file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 48)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		// Brand new log file: start empty right after the snapshot
		// boundary restoreSnapshot already established.
		s.ents[0] = raftpb.Entry{Index: s.snapshot.Metadata.Index, Term: s.snapshot.Metadata.Term}
		return nil
	}
	if n < 48 {
		return fmt.Errorf("walstorage: truncated log header: got %d bytes", n)
	}

	s.hardState.Term = binary.BigEndian.Uint64(header[0:8])
	s.hardState.Vote = binary.BigEndian.Uint64(header[8:16])
	s.hardState.Commit = binary.BigEndian.Uint64(header[16:24])
	baseIndex := binary.BigEndian.Uint64(header[24:32])
	baseTerm := binary.BigEndian.Uint64(header[32:40])
	count := binary.BigEndian.Uint64(header[40:48])

	s.ents = make([]raftpb.Entry, 1, count+1)
	s.ents[0] = raftpb.Entry{Index: baseIndex, Term: baseTerm}

	for i := uint64(0); i < count; i++ {
		entryHeader := make([]byte, 21)
		if _, err := f.Read(entryHeader); err != nil {
			return fmt.Errorf("walstorage: cannot read entry %d header: %w", i, err)
		}

		var e raftpb.Entry
		e.Term = binary.BigEndian.Uint64(entryHeader[0:8])
		e.Index = binary.BigEndian.Uint64(entryHeader[8:16])
		e.Type = raftpb.EntryType(entryHeader[16])
		dataLen := binary.BigEndian.Uint32(entryHeader[17:21])

		e.Data = make([]byte, dataLen)
		if dataLen > 0 {
			if _, err := f.Read(e.Data); err != nil {
				return fmt.Errorf("walstorage: cannot read entry %d data: %w", i, err)
			}
		}

		s.ents = append(s.ents, e)
	}

	return nil
}

func (s *Storage) restoreSnapshot() error {
	f, err := os.Open(s.snapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("walstorage: cannot open snapshot file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil || n < 16 {
		// Empty snapshot file: nothing taken yet.
		return nil
	}

	s.snapshot.Metadata.Index = binary.BigEndian.Uint64(header[0:8])
	s.snapshot.Metadata.Term = binary.BigEndian.Uint64(header[8:16])

	voters, err := readIDList(f)
	if err != nil {
		return err
	}
	learners, err := readIDList(f)
	if err != nil {
		return err
	}
	s.snapshot.Metadata.ConfState = raftpb.ConfState{Voters: voters, Learners: learners}

	lenBuf := make([]byte, 4)
	if _, err := f.Read(lenBuf); err != nil {
		return fmt.Errorf("walstorage: cannot read snapshot data length: %w", err)
	}
	dataLen := binary.BigEndian.Uint32(lenBuf)
	s.snapshot.Data = make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := f.Read(s.snapshot.Data); err != nil {
			return fmt.Errorf("walstorage: cannot read snapshot data: %w", err)
		}
	}

	return nil
}

func readIDList(f *os.File) ([]uint64, error) {
	countBuf := make([]byte, 4)
	if _, err := f.Read(countBuf); err != nil {
		return nil, fmt.Errorf("walstorage: cannot read id list length: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf)

	ids := make([]uint64, count)
	for i := range ids {
		buf := make([]byte, 8)
		if _, err := f.Read(buf); err != nil {
			return nil, fmt.Errorf("walstorage: cannot read id: %w", err)
		}
		ids[i] = binary.BigEndian.Uint64(buf)
	}
	return ids, nil
}

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
