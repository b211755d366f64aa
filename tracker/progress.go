package tracker

import "fmt"

// Progress is the leader's view of one follower's replication state:
// what it has matched, what to send next, and how many appends are
// outstanding. The leader's Raft value owns every Progress; nothing else
// holds a reference to one, so there is no aliasing to reason about.
type Progress struct {
	Match, Next uint64

	State StateType

	// PendingSnapshot is the index of the snapshot this follower is
	// being sent, valid only while State == StateSnapshot.
	PendingSnapshot uint64

	// RecentActive is true if the leader has heard from this follower
	// since the last election timeout; used by CheckQuorum.
	RecentActive bool

	// ProbeSent pauses further appends to a follower in StateProbe until
	// an AppResp (success or reject) clears it.
	ProbeSent bool

	Inflights *Inflights

	IsLearner bool
}

// NewProgress creates a Progress with an Inflights window of the given
// capacity, starting in StateProbe with the given Next index.
func NewProgress(next uint64, maxInflight int) *Progress {
	return &Progress{
		Next:      next,
		State:     StateProbe,
		Inflights: NewInflights(maxInflight),
	}
}

// ResetState clears the inflights window and switches to state st,
// leaving Match/Next/IsLearner untouched.
func (pr *Progress) ResetState(state StateType) {
	pr.ProbeSent = false
	pr.PendingSnapshot = 0
	pr.State = state
	pr.Inflights.Reset()
}

// BecomeProbe transitions to StateProbe. Coming from StateSnapshot, Next
// resumes just after the snapshot that was (or is being) sent so the
// leader doesn't re-probe from stale ground.
func (pr *Progress) BecomeProbe() {
	if pr.State == StateSnapshot {
		pendingSnapshot := pr.PendingSnapshot
		pr.ResetState(StateProbe)
		pr.Next = max(pr.Match+1, pendingSnapshot+1)
		return
	}

	pr.ResetState(StateProbe)
	pr.Next = pr.Match + 1
}

// BecomeReplicate transitions to StateReplicate, optimistically advancing
// Next past Match to start pipelining.
func (pr *Progress) BecomeReplicate() {
	pr.ResetState(StateReplicate)
	pr.Next = pr.Match + 1
}

// BecomeSnapshot transitions to StateSnapshot, recording which snapshot
// index is pending acknowledgement.
func (pr *Progress) BecomeSnapshot(snapshotIndex uint64) {
	pr.ResetState(StateSnapshot)
	pr.PendingSnapshot = snapshotIndex
}

// MaybeUpdate reports a follower accepted an append up to n. It updates
// Match/Next and returns true if that represents progress; a stale or
// duplicate ack (n <= Match) is a no-op.
func (pr *Progress) MaybeUpdate(n uint64) bool {
	var updated bool
	if pr.Match < n {
		pr.Match = n
		updated = true
		pr.ProbeSent = false
	}
	if pr.Next < n+1 {
		pr.Next = n + 1
	}
	return updated
}

// OptimisticUpdate advances Next speculatively after sending an append,
// without waiting for the ack, used only in StateReplicate.
func (pr *Progress) OptimisticUpdate(n uint64) {
	pr.Next = n + 1
}

// MaybeDecrTo reports that an append was rejected. rejected is the Index
// field of the rejecting MsgAppResp; matchHint is its RejectHint (the
// follower's own last log index). Returns false if the rejection is stale
// and should be ignored.
func (pr *Progress) MaybeDecrTo(rejected, matchHint uint64) bool {
	if pr.State == StateReplicate {
		// In StateReplicate a rejection for an index at or before Match
		// is stale, since Match shows the follower already holds it. A
		// rejection past Match sends Next back to Match+1.
		if rejected <= pr.Match {
			return false
		}
		pr.Next = pr.Match + 1
		return true
	}

	// StateProbe or StateSnapshot: any rejection for an index other than
	// the one currently probed is stale.
	if pr.Next == 0 || pr.Next-1 != rejected {
		return false
	}

	pr.Next = min(rejected, matchHint+1)
	if pr.Next < 1 {
		pr.Next = 1
	}
	pr.ProbeSent = false
	return true
}

// IsPaused reports whether the leader should withhold further appends to
// this follower for now.
func (pr *Progress) IsPaused() bool {
	switch pr.State {
	case StateProbe:
		return pr.ProbeSent
	case StateReplicate:
		return pr.Inflights.Full()
	case StateSnapshot:
		return true
	default:
		panic(fmt.Sprintf("tracker: unknown state %v", pr.State))
	}
}

// MaybeSnapshotAbort reports whether a pending snapshot can be abandoned
// because normal replication has already caught the follower up past it.
func (pr *Progress) MaybeSnapshotAbort() bool {
	return pr.State == StateSnapshot && pr.Match >= pr.PendingSnapshot
}

func (pr *Progress) String() string {
	return fmt.Sprintf("match=%d next=%d state=%s learner=%t paused=%t inflight=%d/%d",
		pr.Match, pr.Next, pr.State, pr.IsLearner, pr.IsPaused(), pr.Inflights.Count(), pr.Inflights.size)
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
