package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func majority(ids ...uint64) MajorityConfig {
	m := make(MajorityConfig, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestMajorityConfig_QuorumSize(t *testing.T) {
	require.Equal(t, 1, majority(1).QuorumSize())
	require.Equal(t, 2, majority(1, 2, 3).QuorumSize())
	require.Equal(t, 3, majority(1, 2, 3, 4, 5).QuorumSize())
}

func TestMajorityConfig_CommittedIndex(t *testing.T) {
	c := majority(1, 2, 3)
	match := map[uint64]uint64{1: 5, 2: 5, 3: 1}

	got := c.CommittedIndex(func(id uint64) uint64 { return match[id] })
	require.Equal(t, uint64(5), got)

	match[3] = 5
	got = c.CommittedIndex(func(id uint64) uint64 { return match[id] })
	require.Equal(t, uint64(5), got)
}

func TestMajorityConfig_CommittedIndexNoQuorum(t *testing.T) {
	c := majority(1, 2, 3, 4, 5)
	match := map[uint64]uint64{1: 10, 2: 1, 3: 1, 4: 1, 5: 1}

	got := c.CommittedIndex(func(id uint64) uint64 { return match[id] })
	require.Equal(t, uint64(1), got)
}

func TestMajorityConfig_CommittedIndexEmpty(t *testing.T) {
	c := majority()
	require.Equal(t, uint64(0), c.CommittedIndex(func(uint64) uint64 { return 99 }))
}

func TestMajorityConfig_TallyVotes(t *testing.T) {
	c := majority(1, 2, 3)

	require.Equal(t, VotePending, c.TallyVotes(map[uint64]bool{1: true}))
	require.Equal(t, VoteWon, c.TallyVotes(map[uint64]bool{1: true, 2: true}))
	require.Equal(t, VoteLost, c.TallyVotes(map[uint64]bool{1: false, 2: false}))
}
