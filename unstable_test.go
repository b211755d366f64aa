package raft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Konstantsiy/raftkv/raftpb"
)

func TestUnstable_MaybeFirstIndex(t *testing.T) {
	u := &unstable{}
	_, ok := u.maybeFirstIndex()
	require.False(t, ok)

	u.snapshot = &raftpb.Snapshot{Metadata: raftpb.SnapshotMetadata{Index: 5, Term: 1}}
	i, ok := u.maybeFirstIndex()
	require.True(t, ok)
	require.Equal(t, uint64(6), i)
}

func TestUnstable_MaybeLastIndex(t *testing.T) {
	u := &unstable{}
	_, ok := u.maybeLastIndex()
	require.False(t, ok)

	u.offset = 5
	u.entries = []raftpb.Entry{{Index: 5, Term: 1}, {Index: 6, Term: 1}}
	i, ok := u.maybeLastIndex()
	require.True(t, ok)
	require.Equal(t, uint64(6), i)

	u.entries = nil
	u.snapshot = &raftpb.Snapshot{Metadata: raftpb.SnapshotMetadata{Index: 4, Term: 1}}
	i, ok = u.maybeLastIndex()
	require.True(t, ok)
	require.Equal(t, uint64(4), i)
}

func TestUnstable_MaybeTerm(t *testing.T) {
	u := &unstable{
		offset:  5,
		entries: []raftpb.Entry{{Index: 5, Term: 1}, {Index: 6, Term: 2}},
	}

	_, ok := u.maybeTerm(4)
	require.False(t, ok)

	term, ok := u.maybeTerm(6)
	require.True(t, ok)
	require.Equal(t, uint64(2), term)

	_, ok = u.maybeTerm(7)
	require.False(t, ok)

	u.snapshot = &raftpb.Snapshot{Metadata: raftpb.SnapshotMetadata{Index: 4, Term: 9}}
	term, ok = u.maybeTerm(4)
	require.True(t, ok)
	require.Equal(t, uint64(9), term)
}

func TestUnstable_StableTo(t *testing.T) {
	u := &unstable{
		offset:  5,
		entries: []raftpb.Entry{{Index: 5, Term: 1}, {Index: 6, Term: 1}},
	}

	u.stableTo(4, 1)
	require.Equal(t, uint64(5), u.offset)

	u.stableTo(5, 2)
	require.Equal(t, uint64(5), u.offset)

	u.stableTo(5, 1)
	require.Equal(t, uint64(6), u.offset)
	require.Equal(t, []raftpb.Entry{{Index: 6, Term: 1}}, u.entries)
}

func TestUnstable_StableSnapTo(t *testing.T) {
	u := &unstable{snapshot: &raftpb.Snapshot{Metadata: raftpb.SnapshotMetadata{Index: 5}}}
	u.stableSnapTo(6)
	require.NotNil(t, u.snapshot)
	u.stableSnapTo(5)
	require.Nil(t, u.snapshot)
}

func TestUnstable_Restore(t *testing.T) {
	u := &unstable{
		offset:  5,
		entries: []raftpb.Entry{{Index: 5}},
	}
	snap := raftpb.Snapshot{Metadata: raftpb.SnapshotMetadata{Index: 10, Term: 3}}
	u.restore(snap)

	require.Equal(t, uint64(11), u.offset)
	require.Empty(t, u.entries)
	require.Equal(t, &snap, u.snapshot)
}

func TestUnstable_TruncateAndAppend(t *testing.T) {
	t.Run("contiguous extend", func(t *testing.T) {
		u := &unstable{offset: 5, entries: []raftpb.Entry{{Index: 5, Term: 1}}}
		u.truncateAndAppend([]raftpb.Entry{{Index: 6, Term: 1}})
		require.Equal(t, []raftpb.Entry{{Index: 5, Term: 1}, {Index: 6, Term: 1}}, u.entries)
	})

	t.Run("prefix replace", func(t *testing.T) {
		u := &unstable{offset: 5, entries: []raftpb.Entry{{Index: 5, Term: 1}}}
		u.truncateAndAppend([]raftpb.Entry{{Index: 4, Term: 2}})
		require.Equal(t, uint64(4), u.offset)
		require.Equal(t, []raftpb.Entry{{Index: 4, Term: 2}}, u.entries)
	})

	t.Run("overlap truncates conflicting suffix", func(t *testing.T) {
		u := &unstable{offset: 5, entries: []raftpb.Entry{
			{Index: 5, Term: 1}, {Index: 6, Term: 1}, {Index: 7, Term: 1},
		}}
		u.truncateAndAppend([]raftpb.Entry{{Index: 6, Term: 2}})
		require.Equal(t, []raftpb.Entry{{Index: 5, Term: 1}, {Index: 6, Term: 2}}, u.entries)
	})
}

// TruncateAndAppend followed by stableTo(last, lastTerm) must leave the
// unstable entries buffer empty.
func TestUnstable_TruncateAppendThenStableToDrains(t *testing.T) {
	u := &unstable{offset: 1}
	ents := []raftpb.Entry{{Index: 1, Term: 1}, {Index: 2, Term: 1}, {Index: 3, Term: 2}}
	u.truncateAndAppend(ents)

	last := ents[len(ents)-1]
	u.stableTo(last.Index, last.Term)

	require.Empty(t, u.entries)
}

func TestUnstable_Slice(t *testing.T) {
	u := &unstable{offset: 5, entries: []raftpb.Entry{
		{Index: 5, Term: 1}, {Index: 6, Term: 1}, {Index: 7, Term: 2},
	}}
	require.Equal(t, []raftpb.Entry{{Index: 6, Term: 1}}, u.slice(6, 7))
}
