package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgress_BecomeProbeFromSnapshot(t *testing.T) {
	pr := NewProgress(1, 10)
	pr.Match = 1
	pr.BecomeSnapshot(10)
	require.Equal(t, StateSnapshot, pr.State)
	require.Equal(t, uint64(10), pr.PendingSnapshot)

	pr.Match = 1
	pr.BecomeProbe()
	require.Equal(t, StateProbe, pr.State)
	require.Equal(t, uint64(11), pr.Next)
}

func TestProgress_BecomeReplicate(t *testing.T) {
	pr := NewProgress(1, 10)
	pr.Match = 4
	pr.BecomeReplicate()
	require.Equal(t, StateReplicate, pr.State)
	require.Equal(t, uint64(5), pr.Next)
}

func TestProgress_MaybeUpdate(t *testing.T) {
	pr := NewProgress(5, 10)
	require.False(t, pr.MaybeUpdate(0))

	require.True(t, pr.MaybeUpdate(2))
	require.Equal(t, uint64(2), pr.Match)
	require.Equal(t, uint64(5), pr.Next)

	require.False(t, pr.MaybeUpdate(2), "duplicate ack should not report progress")
}

func TestProgress_MaybeDecrTo_Replicate(t *testing.T) {
	pr := NewProgress(1, 10)
	pr.BecomeReplicate()
	pr.Match = 5
	pr.Next = 10

	require.False(t, pr.MaybeDecrTo(5, 5), "rejection at or before match is stale")
	require.True(t, pr.MaybeDecrTo(8, 5))
	require.Equal(t, uint64(6), pr.Next)
}

func TestProgress_MaybeDecrTo_Probe(t *testing.T) {
	pr := NewProgress(1, 10)
	pr.Next = 6

	require.False(t, pr.MaybeDecrTo(4, 3), "only the currently probed index may be decremented")

	require.True(t, pr.MaybeDecrTo(5, 3))
	require.Equal(t, uint64(4), pr.Next)
	require.False(t, pr.ProbeSent)
}

func TestProgress_IsPaused(t *testing.T) {
	pr := NewProgress(1, 2)
	pr.ProbeSent = true
	require.True(t, pr.IsPaused())

	pr.BecomeReplicate()
	require.False(t, pr.IsPaused())
	pr.Inflights.Add(1)
	pr.Inflights.Add(2)
	require.True(t, pr.IsPaused())

	pr.BecomeSnapshot(9)
	require.True(t, pr.IsPaused())
}

func TestProgress_MaybeSnapshotAbort(t *testing.T) {
	pr := NewProgress(1, 10)
	pr.BecomeSnapshot(5)
	pr.Match = 4
	require.False(t, pr.MaybeSnapshotAbort())

	pr.Match = 5
	require.True(t, pr.MaybeSnapshotAbort())
}
