package tracker

import "sort"

// MajorityConfig is the set of voter ids that must agree for a value to be
// considered committed. It is a plain set, not a tree or sorted slice,
// because membership changes are rare and lookups dominate.
type MajorityConfig map[uint64]struct{}

// QuorumSize returns floor(len(c)/2)+1, the number of voters that must
// agree for anything to be committed.
func (c MajorityConfig) QuorumSize() int {
	return len(c)/2 + 1
}

// CommittedIndex returns the largest index for which a quorum of voters
// in c have an acked match index at or above it, per matchOf. It returns 0
// if c is empty or no index is agreed by a quorum.
//
// This mirrors spec's maybe_commit description: collect every voter's
// match index, sort descending, and the value at position quorumSize-1 is
// the highest index a majority has definitely reached.
func (c MajorityConfig) CommittedIndex(matchOf func(id uint64) uint64) uint64 {
	n := len(c)
	if n == 0 {
		// No voters means there's no quorum to satisfy, so nothing new
		// can be considered committed by this config.
		return 0
	}

	matches := make([]uint64, 0, n)
	for id := range c {
		matches = append(matches, matchOf(id))
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i] > matches[j] })

	return matches[c.QuorumSize()-1]
}

// VoteResult describes how a quorum vote currently stands.
type VoteResult int

const (
	VotePending VoteResult = iota
	VoteWon
	VoteLost
)

// TallyVotes reports the quorum outcome of the votes recorded so far.
func (c MajorityConfig) TallyVotes(votes map[uint64]bool) VoteResult {
	granted, rejected := 0, 0
	for id := range c {
		v, ok := votes[id]
		if !ok {
			continue
		}
		if v {
			granted++
		} else {
			rejected++
		}
	}

	q := c.QuorumSize()
	if granted >= q {
		return VoteWon
	}
	if rejected >= q {
		return VoteLost
	}
	return VotePending
}
