package tracker

// Config is the current membership: which ids vote and which are
// non-voting learners. The two sets are always disjoint; ProgressTracker
// enforces this at every mutation.
type Config struct {
	Voters   MajorityConfig
	Learners MajorityConfig
}

// Clone returns an independent copy of c.
func (c Config) Clone() Config {
	voters := make(MajorityConfig, len(c.Voters))
	for id := range c.Voters {
		voters[id] = struct{}{}
	}
	learners := make(MajorityConfig, len(c.Learners))
	for id := range c.Learners {
		learners[id] = struct{}{}
	}
	return Config{Voters: voters, Learners: learners}
}

// ProgressTracker owns the Config plus one Progress per tracked id (voter
// or learner). It is the leader-side replication ledger; followers carry
// one too (inherited from whichever Config was last loaded) but only
// consult it to answer "am I a voter" (Promotable).
type ProgressTracker struct {
	Config
	Progress map[uint64]*Progress

	MaxInflight int
}

// MakeProgressTracker creates an empty tracker with no members yet.
func MakeProgressTracker(maxInflight int) ProgressTracker {
	return ProgressTracker{
		Config: Config{
			Voters:   MajorityConfig{},
			Learners: MajorityConfig{},
		},
		Progress:    map[uint64]*Progress{},
		MaxInflight: maxInflight,
	}
}

// Visit calls f once for every tracked id (voters and learners), in no
// particular order.
func (p *ProgressTracker) Visit(f func(id uint64, pr *Progress)) {
	for id, pr := range p.Progress {
		f(id, pr)
	}
}

// QuorumActive reports whether a majority of voters have RecentActive set,
// used by CheckQuorum to decide whether a leader should step down.
func (p *ProgressTracker) QuorumActive() bool {
	active := 0
	for id := range p.Voters {
		pr, ok := p.Progress[id]
		if ok && pr.RecentActive {
			active++
		}
	}
	return active >= p.Voters.QuorumSize()
}

// Committed returns the highest index a quorum of voters have matched,
// using each tracked Progress's Match field as the ack source.
func (p *ProgressTracker) Committed() uint64 {
	return p.Voters.CommittedIndex(func(id uint64) uint64 {
		pr, ok := p.Progress[id]
		if !ok {
			return 0
		}
		return pr.Match
	})
}

// IsSingleton reports whether there is exactly one voter, the case in
// which a node can become its own leader without sending any message.
func (p *ProgressTracker) IsSingleton() bool {
	return len(p.Voters) == 1
}

// VoterIDs returns the set of voter ids, as a sorted slice for
// deterministic iteration (logging, tests, ConfState construction).
func (p *ProgressTracker) VoterIDs() []uint64 {
	return sortedKeys(p.Voters)
}

// LearnerIDs returns the set of learner ids, sorted.
func (p *ProgressTracker) LearnerIDs() []uint64 {
	return sortedKeys(p.Learners)
}

func sortedKeys(m MajorityConfig) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// insertion sort is fine: membership sizes are tiny (single digits to
	// low dozens of peers) compared to sort.Slice's overhead.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// InitProgress adds a tracked member with the given starting Match/Next,
// creating its Progress. isLearner places it in Learners instead of
// Voters.
func (p *ProgressTracker) InitProgress(id, match, next uint64, isLearner bool) {
	if !isLearner {
		delete(p.Learners, id)
		p.Voters[id] = struct{}{}
	} else {
		delete(p.Voters, id)
		p.Learners[id] = struct{}{}
	}

	pr := NewProgress(next, p.MaxInflight)
	pr.Match = match
	pr.IsLearner = isLearner
	p.Progress[id] = pr
}

// RemoveProgress drops all trace of id.
func (p *ProgressTracker) RemoveProgress(id uint64) {
	delete(p.Voters, id)
	delete(p.Learners, id)
	delete(p.Progress, id)
}
