package confchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Konstantsiy/raftkv/raftpb"
	"github.com/Konstantsiy/raftkv/tracker"
)

func newTracker(voters ...uint64) tracker.ProgressTracker {
	tr := tracker.MakeProgressTracker(256)
	for _, id := range voters {
		tr.InitProgress(id, 0, 1, false)
	}
	return tr
}

func TestApply_AddNode(t *testing.T) {
	tr := newTracker(1, 2)

	err := Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeAddNode, NodeID: 3}, 10)
	require.NoError(t, err)

	_, isVoter := tr.Voters[3]
	require.True(t, isVoter)
	require.Equal(t, uint64(11), tr.Progress[3].Next)
	require.True(t, tr.Progress[3].RecentActive)
}

func TestApply_AddLearnerNode(t *testing.T) {
	tr := newTracker(1, 2)

	err := Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeAddLearnerNode, NodeID: 3}, 10)
	require.NoError(t, err)

	_, isLearner := tr.Learners[3]
	require.True(t, isLearner)
	require.True(t, tr.Progress[3].IsLearner)
}

func TestApply_PromoteLearnerToVoter(t *testing.T) {
	tr := newTracker(1)
	require.NoError(t, Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeAddLearnerNode, NodeID: 2}, 5))

	require.NoError(t, Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeAddNode, NodeID: 2}, 5))

	_, isLearner := tr.Learners[2]
	require.False(t, isLearner)
	_, isVoter := tr.Voters[2]
	require.True(t, isVoter)
	require.False(t, tr.Progress[2].IsLearner)
}

func TestApply_RemoveNode(t *testing.T) {
	tr := newTracker(1, 2, 3)

	require.NoError(t, Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeRemoveNode, NodeID: 3}, 10))

	_, ok := tr.Progress[3]
	require.False(t, ok)
	_, ok = tr.Voters[3]
	require.False(t, ok)
}

func TestApply_RedundantAddIsNoop(t *testing.T) {
	tr := newTracker(1, 2)
	before := *tr.Progress[2]

	require.NoError(t, Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeAddNode, NodeID: 2}, 10))

	require.Equal(t, before.IsLearner, tr.Progress[2].IsLearner)
}

func TestApply_UpdateUnknownNodeErrors(t *testing.T) {
	tr := newTracker(1)
	err := Apply(&tr, raftpb.ConfChange{Type: raftpb.ConfChangeUpdateNode, NodeID: 99}, 10)
	require.Error(t, err)
}
