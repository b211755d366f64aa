package raft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Konstantsiy/raftkv/raftpb"
)

func newTestLog(t *testing.T, ents ...raftpb.Entry) *raftLog {
	storage := NewMemoryStorage()
	if len(ents) > 0 {
		require.NoError(t, storage.Append(ents))
	}
	return newRaftLog(storage, 0)
}

func TestRaftLog_TermAndMatch(t *testing.T) {
	l := newTestLog(t,
		raftpb.Entry{Index: 1, Term: 1},
		raftpb.Entry{Index: 2, Term: 1},
		raftpb.Entry{Index: 3, Term: 2},
	)

	require.Equal(t, uint64(0), l.term(0))
	require.Equal(t, uint64(1), l.term(1))
	require.Equal(t, uint64(2), l.term(3))
	require.Equal(t, uint64(0), l.term(4))

	require.True(t, l.matchTerm(3, 2))
	require.False(t, l.matchTerm(3, 1))
}

func TestRaftLog_IsUpToDate(t *testing.T) {
	l := newTestLog(t, raftpb.Entry{Index: 1, Term: 1}, raftpb.Entry{Index: 2, Term: 2})

	require.True(t, l.isUpToDate(2, 2))
	require.True(t, l.isUpToDate(5, 3))
	require.False(t, l.isUpToDate(1, 1))
	require.False(t, l.isUpToDate(2, 1))
}

func TestRaftLog_MaybeAppendNoConflict(t *testing.T) {
	l := newTestLog(t, raftpb.Entry{Index: 1, Term: 1})

	last, ok := l.maybeAppend(1, 1, 2, []raftpb.Entry{{Index: 2, Term: 1}})
	require.True(t, ok)
	require.Equal(t, uint64(2), last)
	require.Equal(t, uint64(2), l.committed)
}

func TestRaftLog_MaybeAppendRejectsMismatchedPrev(t *testing.T) {
	l := newTestLog(t, raftpb.Entry{Index: 1, Term: 1})

	_, ok := l.maybeAppend(1, 2, 1, []raftpb.Entry{{Index: 2, Term: 1}})
	require.False(t, ok)
}

func TestRaftLog_MaybeAppendTruncatesConflictingSuffix(t *testing.T) {
	l := newTestLog(t,
		raftpb.Entry{Index: 1, Term: 1},
		raftpb.Entry{Index: 2, Term: 1},
		raftpb.Entry{Index: 3, Term: 1},
	)

	_, ok := l.maybeAppend(1, 1, 3, []raftpb.Entry{{Index: 2, Term: 2}, {Index: 3, Term: 2}})
	require.True(t, ok)
	require.Equal(t, uint64(2), l.term(2))
	require.Equal(t, uint64(2), l.term(3))
}

func TestRaftLog_NextEntries(t *testing.T) {
	l := newTestLog(t, raftpb.Entry{Index: 1, Term: 1}, raftpb.Entry{Index: 2, Term: 1})
	l.commitTo(2)

	require.True(t, l.hasNextEntries())
	ents := l.nextEntries()
	require.Len(t, ents, 2)

	l.appliedTo(2)
	require.False(t, l.hasNextEntries())
	require.Nil(t, l.nextEntries())
}

func TestRaftLog_NextEntriesRespectsMaxSize(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Append([]raftpb.Entry{
		{Index: 1, Term: 1, Data: make([]byte, 8)},
		{Index: 2, Term: 1, Data: make([]byte, 8)},
		{Index: 3, Term: 1, Data: make([]byte, 8)},
	}))
	l := newRaftLog(storage, 10)
	l.commitTo(3)

	// limitSize always keeps at least the first entry, then stops once
	// the running total would exceed maxNextEntsSize.
	ents := l.nextEntries()
	require.Len(t, ents, 1)
}

func TestRaftLog_CommitToPanicsBeyondLastIndex(t *testing.T) {
	l := newTestLog(t, raftpb.Entry{Index: 1, Term: 1})
	require.Panics(t, func() { l.commitTo(5) })
}

func TestRaftLog_SliceAcrossStorageAndUnstable(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Append([]raftpb.Entry{{Index: 1, Term: 1}, {Index: 2, Term: 1}}))
	l := newRaftLog(storage, 0)
	l.append(raftpb.Entry{Index: 3, Term: 1}, raftpb.Entry{Index: 4, Term: 1})

	ents, err := l.slice(2, 4, noLimit)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, indexesOf(ents))
}

func indexesOf(ents []raftpb.Entry) []uint64 {
	out := make([]uint64, len(ents))
	for i, e := range ents {
		out[i] = e.Index
	}
	return out
}
