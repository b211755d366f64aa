// Package confchange applies a single raftpb.ConfChange to a
// tracker.ProgressTracker. It is kept separate from the raft state machine
// so the arithmetic of adding, promoting, and removing members can be unit
// tested without a running Raft instance, the same way the teacher tests
// state-machine command encoding independently of the server that uses it.
//
// This repo's spec has no joint-consensus reconfiguration, so Apply is a
// single pure-ish mutation (it mutates the tracker it's given, matching
// how the original source's add_node_or_learner/remove_node operate
// in-place on Raft's own maps) rather than the two-phase joint config
// changer a full multi-change-at-once implementation would need.
package confchange

import (
	"fmt"

	"github.com/Konstantsiy/raftkv/raftpb"
	"github.com/Konstantsiy/raftkv/tracker"
)

// Apply mutates tr to reflect cc. lastIndex is the tracker owner's current
// last log index; a newly added member starts with Next = lastIndex+1.
func Apply(tr *tracker.ProgressTracker, cc raftpb.ConfChange, lastIndex uint64) error {
	switch cc.Type {
	case raftpb.ConfChangeAddNode:
		return addNode(tr, cc.NodeID, lastIndex, false)
	case raftpb.ConfChangeAddLearnerNode:
		return addNode(tr, cc.NodeID, lastIndex, true)
	case raftpb.ConfChangeRemoveNode:
		tr.RemoveProgress(cc.NodeID)
		return nil
	case raftpb.ConfChangeUpdateNode:
		// No fields besides membership are tracked per-node today; an
		// update is a no-op beyond confirming the node is known.
		if _, ok := tr.Progress[cc.NodeID]; !ok {
			return fmt.Errorf("confchange: cannot update unknown node %d", cc.NodeID)
		}
		return nil
	default:
		return fmt.Errorf("confchange: unknown conf change type %v", cc.Type)
	}
}

func addNode(tr *tracker.ProgressTracker, id, lastIndex uint64, learner bool) error {
	pr, exists := tr.Progress[id]
	if !exists {
		tr.InitProgress(id, 0, lastIndex+1, learner)
		tr.Progress[id].RecentActive = true
		return nil
	}

	if learner && !pr.IsLearner {
		// Only a voter -> learner demotion would change this, and the
		// spec does not ask for one; ignore, matching the original
		// source's add_node_or_learner guard.
		return nil
	}

	if learner == pr.IsLearner {
		// Redundant add, e.g. a bootstrapping entry replayed twice.
		return nil
	}

	// Promote a learner to a voter, keeping its accumulated Match/Next.
	delete(tr.Learners, id)
	tr.Voters[id] = struct{}{}
	pr.IsLearner = false
	pr.RecentActive = true
	return nil
}
