package raft

import (
	"fmt"
	"math/rand"

	"github.com/Konstantsiy/raftkv/confchange"
	"github.com/Konstantsiy/raftkv/raftpb"
	"github.com/Konstantsiy/raftkv/tracker"
)

// StateType is the role a Raft instance currently occupies.
type StateType uint64

const (
	StateFollower StateType = iota
	StatePreCandidate
	StateCandidate
	StateLeader
)

var stateTypeNames = [...]string{"StateFollower", "StatePreCandidate", "StateCandidate", "StateLeader"}

func (st StateType) String() string { return stateTypeNames[uint64(st)] }

// campaignType tags why an election is being run; it rides in a vote
// request's Context so the recipient can special-case a leadership
// transfer.
type campaignType string

const (
	campaignPreElection campaignType = "CampaignPreElection"
	campaignElection    campaignType = "CampaignElection"
	campaignTransfer    campaignType = "CampaignTransfer"
)

// SoftState is the volatile part of Raft's state that a host may want to
// react to (e.g. to know who the leader is) but that is never persisted.
type SoftState struct {
	Lead      uint64
	RaftState StateType
}

// Raft is the single-threaded consensus state machine. A host drives it
// exclusively through Tick and Step, and drains its outputs through the
// RawNode wrapping it; nothing here performs I/O or blocks.
type Raft struct {
	id uint64

	Term uint64
	Vote uint64

	readStates []ReadState

	raftLog *raftLog

	maxMsgSize         uint64
	maxUncommittedSize uint64
	trk                tracker.ProgressTracker

	state StateType

	isLearner bool

	msgs []raftpb.Message

	lead           uint64
	leadTransferee uint64

	// pendingConfIndex is the index of the latest pending conf change, or
	// 0 if none. Admission of a new conf change proposal is gated on this
	// being at or below applied.
	pendingConfIndex uint64

	// uncommittedSize is the total payload size of entries proposed by
	// this leader with index > committed and term == Term.
	uncommittedSize uint64

	readOnly *readOnly

	electionElapsed  int
	heartbeatElapsed int

	checkQuorum bool
	preVote     bool

	heartbeatTimeout          int
	electionTimeout           int
	randomizedElectionTimeout int
	disableProposalForwarding bool

	randGen *rand.Rand

	votes map[uint64]bool
}

func newRaft(c *Config) (*Raft, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	raftlog := newRaftLog(c.Storage, c.MaxCommittedSizePerReady)
	hs, cs, err := c.Storage.InitialState()
	if err != nil {
		return nil, err
	}

	r := &Raft{
		id:                        c.ID,
		raftLog:                   raftlog,
		maxMsgSize:                c.MaxSizePerMsg,
		maxUncommittedSize:        c.MaxUncommittedEntriesSize,
		trk:                       tracker.MakeProgressTracker(c.MaxInflightMsgs),
		electionTimeout:           c.ElectionTick,
		heartbeatTimeout:          c.HeartbeatTick,
		checkQuorum:               c.CheckQuorum,
		preVote:                   c.PreVote,
		readOnly:                  newReadOnly(c.ReadOnlyOption),
		disableProposalForwarding: c.DisableProposalForwarding,
		randGen:                   rand.New(rand.NewSource(int64(c.ID))),
	}

	peers, learners := c.Peers, c.Learners
	if len(cs.Voters) > 0 || len(cs.Learners) > 0 {
		peers, learners = cs.Voters, cs.Learners
	}
	for _, id := range peers {
		r.trk.InitProgress(id, 0, raftlog.lastIndex()+1, false)
	}
	for _, id := range learners {
		r.trk.InitProgress(id, 0, raftlog.lastIndex()+1, true)
		if id == r.id {
			r.isLearner = true
		}
	}

	if !hs.IsEmpty() {
		r.loadState(hs)
	}
	if c.Applied > 0 {
		raftlog.appliedTo(c.Applied)
	}
	r.becomeFollower(r.Term, 0)

	return r, nil
}

func (r *Raft) loadState(hs raftpb.HardState) {
	if hs.Commit < r.raftLog.committed || hs.Commit > r.raftLog.lastIndex() {
		panic(fmt.Sprintf("raft: hardstate commit %d out of range [%d,%d]", hs.Commit, r.raftLog.committed, r.raftLog.lastIndex()))
	}
	r.raftLog.committed = hs.Commit
	r.Term = hs.Term
	r.Vote = hs.Vote
}

func (r *Raft) softState() SoftState { return SoftState{Lead: r.lead, RaftState: r.state} }

func (r *Raft) hardState() raftpb.HardState {
	return raftpb.HardState{Term: r.Term, Vote: r.Vote, Commit: r.raftLog.committed}
}

func (r *Raft) confState() raftpb.ConfState {
	return raftpb.ConfState{Voters: r.trk.VoterIDs(), Learners: r.trk.LearnerIDs()}
}

func (r *Raft) quorum() int { return r.trk.Voters.QuorumSize() }

func (r *Raft) promotable() bool {
	pr := r.trk.Progress[r.id]
	return pr != nil && !pr.IsLearner
}

// send queues m for delivery once Ready is drained, filling in From and
// Term defaults for anything the caller left unset. A zero Term means a
// purely local message (Prop, Hup, ...); anything addressed to a peer
// picks up the current term.
func (r *Raft) send(m raftpb.Message) {
	m.From = r.id
	if m.Term == 0 && m.Type != raftpb.MsgProp && m.Type != raftpb.MsgReadIndex {
		m.Term = r.Term
	}
	r.msgs = append(r.msgs, m)
}

// maybeSendAppend sends pending entries (or a snapshot) to to, returning
// false if nothing was sent because the peer's progress is paused or
// there was nothing new and sendIfEmpty is false.
func (r *Raft) maybeSendAppend(to uint64, sendIfEmpty bool) bool {
	pr := r.trk.Progress[to]
	if pr.IsPaused() {
		return false
	}

	lastIndex := pr.Next - 1
	if lastIndex+1 < r.raftLog.firstIndex() {
		return r.sendSnapshot(to, pr)
	}

	ents, err := r.raftLog.entries(pr.Next, r.maxMsgSize)
	if err != nil {
		return r.sendSnapshot(to, pr)
	}
	if len(ents) == 0 && !sendIfEmpty {
		return false
	}

	r.send(raftpb.Message{
		To:      to,
		Type:    raftpb.MsgApp,
		Index:   lastIndex,
		LogTerm: r.raftLog.term(lastIndex),
		Entries: ents,
		Commit:  r.raftLog.committed,
	})

	switch pr.State {
	case tracker.StateProbe:
		pr.ProbeSent = true
	case tracker.StateReplicate:
		if n := len(ents); n > 0 {
			last := ents[n-1].Index
			pr.OptimisticUpdate(last)
			pr.Inflights.Add(last)
		}
	}
	return true
}

func (r *Raft) sendAppend(to uint64) { r.maybeSendAppend(to, true) }

func (r *Raft) sendSnapshot(to uint64, pr *tracker.Progress) bool {
	snap, err := r.raftLog.snapshot()
	if err != nil {
		if err == ErrSnapshotTemporarilyUnavailable {
			return false
		}
		panic(err)
	}
	if snap.IsEmpty() {
		panic("raft: attempted to send an empty snapshot")
	}
	pr.BecomeSnapshot(snap.Metadata.Index)
	r.send(raftpb.Message{To: to, Type: raftpb.MsgSnap, Snapshot: snap})
	return true
}

func (r *Raft) sendHeartbeat(to uint64, ctx []byte) {
	pr := r.trk.Progress[to]
	commit := min(pr.Match, r.raftLog.committed)
	r.send(raftpb.Message{To: to, Type: raftpb.MsgHeartbeat, Commit: commit, Context: ctx})
}

func (r *Raft) sendTimeoutNow(to uint64) {
	r.send(raftpb.Message{To: to, Type: raftpb.MsgTimeoutNow})
}

func (r *Raft) bcastAppend() {
	for id := range r.trk.Progress {
		if id == r.id {
			continue
		}
		r.sendAppend(id)
	}
}

func (r *Raft) bcastHeartbeat() {
	r.bcastHeartbeatWithContext([]byte(r.readOnly.lastPendingRequestCtx()))
}

func (r *Raft) bcastHeartbeatWithContext(ctx []byte) {
	for id := range r.trk.Progress {
		if id == r.id {
			continue
		}
		r.sendHeartbeat(id, ctx)
	}
}

// maybeCommit recomputes the majority-acknowledged index and advances
// committed if that index's entry was written in the current term (the
// leader-completeness guard: an older-term entry reaching a majority by
// replication alone must never be (re-)committed directly).
func (r *Raft) maybeCommit() bool {
	mci := r.trk.Committed()
	if mci > r.raftLog.committed && r.raftLog.term(mci) == r.Term {
		r.raftLog.commitTo(mci)
		return true
	}
	return false
}

func entriesSize(ents []raftpb.Entry) uint64 {
	var s uint64
	for _, e := range ents {
		s += uint64(len(e.Data))
	}
	return s
}

func (r *Raft) increaseUncommittedSize(ents []raftpb.Entry) bool {
	s := entriesSize(ents)
	if r.uncommittedSize > 0 && s > 0 && r.uncommittedSize+s > r.maxUncommittedSize {
		return false
	}
	r.uncommittedSize += s
	return true
}

func (r *Raft) reduceUncommittedSize(ents []raftpb.Entry) {
	if r.uncommittedSize == 0 {
		return
	}
	if s := entriesSize(ents); s >= r.uncommittedSize {
		r.uncommittedSize = 0
	} else {
		r.uncommittedSize -= s
	}
}

// appendEntry stamps es with the current term and the next free indices,
// appends them to the leader's own log, and advances the leader's own
// Progress. Returns false (without mutating the log) if doing so would
// exceed the uncommitted-size bound.
func (r *Raft) appendEntry(es ...raftpb.Entry) bool {
	li := r.raftLog.lastIndex()
	for i := range es {
		es[i].Term = r.Term
		es[i].Index = li + 1 + uint64(i)
	}
	if !r.increaseUncommittedSize(es) {
		return false
	}
	li = r.raftLog.append(es...)
	r.trk.Progress[r.id].MaybeUpdate(li)
	r.maybeCommit()
	return true
}

func (r *Raft) abortLeaderTransfer() { r.leadTransferee = 0 }

// reset re-initializes everything that a term or role change invalidates:
// vote bookkeeping only resets when the term actually changes, but timers,
// per-peer Progress, and pending read/conf-change state always do.
func (r *Raft) reset(term uint64) {
	if r.Term != term {
		r.Term = term
		r.Vote = 0
	}
	r.lead = 0

	r.electionElapsed = 0
	r.heartbeatElapsed = 0
	r.resetRandomizedElectionTimeout()

	r.abortLeaderTransfer()

	r.votes = make(map[uint64]bool)
	r.pendingConfIndex = 0
	r.uncommittedSize = 0
	r.readOnly = newReadOnly(r.readOnly.option)

	lastIndex := r.raftLog.lastIndex()
	r.trk.Visit(func(id uint64, pr *tracker.Progress) {
		isLearner := pr.IsLearner
		*pr = *tracker.NewProgress(lastIndex+1, r.trk.MaxInflight)
		pr.IsLearner = isLearner
		if id == r.id {
			pr.Match = lastIndex
		}
	})
}

func (r *Raft) resetRandomizedElectionTimeout() {
	r.randomizedElectionTimeout = r.electionTimeout + r.randGen.Intn(r.electionTimeout)
}

func (r *Raft) becomeFollower(term, lead uint64) {
	r.state = StateFollower
	r.reset(term)
	r.lead = lead
}

func (r *Raft) becomePreCandidate() {
	if r.state == StateLeader {
		panic("raft: invalid transition [leader -> pre-candidate]")
	}
	// Becoming a pre-candidate changes our state but does not change our
	// term or vote: we haven't actually started an election yet.
	r.state = StatePreCandidate
	r.votes = make(map[uint64]bool)
}

func (r *Raft) becomeCandidate() {
	if r.state == StateLeader {
		panic("raft: invalid transition [leader -> candidate]")
	}
	r.reset(r.Term + 1)
	r.Vote = r.id
	r.state = StateCandidate
}

func (r *Raft) becomeLeader() {
	if r.state == StateFollower {
		panic("raft: invalid transition [follower -> leader]")
	}
	r.reset(r.Term)
	r.lead = r.id
	r.state = StateLeader
	r.pendingConfIndex = r.raftLog.lastIndex()
	r.appendEntry(raftpb.Entry{Type: raftpb.EntryNormal, Data: nil})
	r.bcastAppend()
}

// campaign starts an election of the given type: pre-vote probes for
// quorum support without mutating term/vote, everything else is a real
// election.
func (r *Raft) campaign(t campaignType) {
	var term uint64
	var voteMsg raftpb.MessageType
	if t == campaignPreElection {
		r.becomePreCandidate()
		voteMsg = raftpb.MsgPreVote
		term = r.Term + 1
	} else {
		r.becomeCandidate()
		voteMsg = raftpb.MsgVote
		term = r.Term
	}

	if r.pollVote(r.id, voteRespMsgType(voteMsg), true) == tracker.VoteWon {
		if t == campaignPreElection {
			r.campaign(campaignElection)
		} else {
			r.becomeLeader()
		}
		return
	}

	for _, id := range r.trk.VoterIDs() {
		if id == r.id {
			continue
		}
		r.send(raftpb.Message{
			Term:    term,
			To:      id,
			Type:    voteMsg,
			Index:   r.raftLog.lastIndex(),
			LogTerm: r.raftLog.term(r.raftLog.lastIndex()),
			Context: []byte(t),
		})
	}
}

func voteRespMsgType(t raftpb.MessageType) raftpb.MessageType {
	if t == raftpb.MsgVote {
		return raftpb.MsgVoteResp
	}
	return raftpb.MsgPreVoteResp
}

// pollVote records id's vote and returns the quorum's current outcome:
// won once a majority has granted, lost once a majority has rejected, and
// pending otherwise.
func (r *Raft) pollVote(id uint64, _ raftpb.MessageType, v bool) tracker.VoteResult {
	if _, ok := r.votes[id]; !ok {
		r.votes[id] = v
	}
	return r.trk.Voters.TallyVotes(r.votes)
}

// Step is Raft's single entry point for every message, local or peer. It
// is deliberately unchecked: rejecting host-supplied local-only types is
// RawNode.Step's job, not this method's, since RawNode's own wrappers
// must be able to push locally synthesized messages through here too.
func (r *Raft) Step(m raftpb.Message) error {
	switch {
	case m.Term == 0:
		// Local message: no term to reconcile.
	case m.Term > r.Term:
		if m.Type == raftpb.MsgVote || m.Type == raftpb.MsgPreVote {
			force := campaignType(m.Context) == campaignTransfer
			inLease := r.checkQuorum && r.lead != 0 && r.electionElapsed < r.randomizedElectionTimeout
			if !force && inLease {
				return nil
			}
		}
		switch {
		case m.Type == raftpb.MsgPreVote:
			// Never adopt a term on an incoming pre-vote request.
		case m.Type == raftpb.MsgPreVoteResp && !m.Reject:
			// A pre-vote granted at a future term doesn't mean we lost
			// this term's race; we still run our own election at term+1.
		default:
			if m.Type == raftpb.MsgApp || m.Type == raftpb.MsgHeartbeat || m.Type == raftpb.MsgSnap {
				r.becomeFollower(m.Term, m.From)
			} else {
				r.becomeFollower(m.Term, 0)
			}
		}
	case m.Term < r.Term:
		if (r.checkQuorum || r.preVote) && (m.Type == raftpb.MsgHeartbeat || m.Type == raftpb.MsgApp) {
			r.send(raftpb.Message{To: m.From, Type: raftpb.MsgAppResp})
		} else if m.Type == raftpb.MsgPreVote {
			r.send(raftpb.Message{To: m.From, Term: r.Term, Type: raftpb.MsgPreVoteResp, Reject: true})
		}
		return nil
	}

	switch m.Type {
	case raftpb.MsgHup:
		r.hup()
		return nil
	case raftpb.MsgVote, raftpb.MsgPreVote:
		return r.handleVoteRequest(m)
	}

	switch r.state {
	case StateFollower:
		return r.stepFollower(m)
	case StatePreCandidate, StateCandidate:
		return r.stepCandidate(m)
	case StateLeader:
		return r.stepLeader(m)
	}
	return nil
}

func (r *Raft) hup() {
	if r.state == StateLeader {
		return
	}
	if !r.promotable() {
		return
	}
	if r.pendingConfIndex > r.raftLog.applied {
		return
	}
	if r.preVote {
		r.campaign(campaignPreElection)
	} else {
		r.campaign(campaignElection)
	}
}

func (r *Raft) handleVoteRequest(m raftpb.Message) error {
	if r.isLearner {
		// Learners never vote and never get replied to.
		return nil
	}

	force := campaignType(m.Context) == campaignTransfer
	canVote := r.Vote == m.From ||
		(r.Vote == 0 && r.lead == 0) ||
		(m.Type == raftpb.MsgPreVote && m.Term > r.Term) ||
		force

	if canVote && r.raftLog.isUpToDate(m.Index, m.LogTerm) {
		r.send(raftpb.Message{To: m.From, Term: m.Term, Type: voteRespMsgType(m.Type), Index: r.raftLog.lastIndex()})
		if m.Type == raftpb.MsgVote {
			r.electionElapsed = 0
			r.Vote = m.From
		}
	} else {
		r.send(raftpb.Message{To: m.From, Term: r.Term, Type: voteRespMsgType(m.Type), Reject: true})
	}
	return nil
}

func (r *Raft) stepFollower(m raftpb.Message) error {
	switch m.Type {
	case raftpb.MsgProp:
		if r.lead == 0 {
			return ErrProposalDropped
		}
		if r.disableProposalForwarding {
			return ErrProposalDropped
		}
		m.To = r.lead
		r.send(m)
	case raftpb.MsgApp:
		r.electionElapsed = 0
		r.lead = m.From
		r.handleAppendEntries(m)
	case raftpb.MsgHeartbeat:
		r.electionElapsed = 0
		r.lead = m.From
		r.handleHeartbeat(m)
	case raftpb.MsgSnap:
		r.electionElapsed = 0
		r.lead = m.From
		r.handleSnapshot(m)
	case raftpb.MsgTimeoutNow:
		r.campaign(campaignTransfer)
	case raftpb.MsgReadIndex:
		if r.lead == 0 {
			return ErrProposalDropped
		}
		m.To = r.lead
		r.send(m)
	case raftpb.MsgReadIndexResp:
		if len(m.Entries) != 1 {
			return nil
		}
		r.readStates = append(r.readStates, ReadState{Index: m.Index, RequestCtx: m.Entries[0].Data})
	}
	return nil
}

func (r *Raft) stepCandidate(m raftpb.Message) error {
	var myVoteRespType raftpb.MessageType
	if r.state == StatePreCandidate {
		myVoteRespType = raftpb.MsgPreVoteResp
	} else {
		myVoteRespType = raftpb.MsgVoteResp
	}

	switch m.Type {
	case raftpb.MsgProp:
		return ErrProposalDropped
	case raftpb.MsgApp:
		r.becomeFollower(m.Term, m.From)
		r.handleAppendEntries(m)
	case raftpb.MsgHeartbeat:
		r.becomeFollower(m.Term, m.From)
		r.handleHeartbeat(m)
	case raftpb.MsgSnap:
		r.becomeFollower(m.Term, m.From)
		r.handleSnapshot(m)
	case myVoteRespType:
		switch r.pollVote(m.From, m.Type, !m.Reject) {
		case tracker.VoteWon:
			if r.state == StatePreCandidate {
				r.campaign(campaignElection)
			} else {
				r.becomeLeader()
			}
		case tracker.VoteLost:
			r.becomeFollower(r.Term, 0)
		}
	}
	return nil
}

func (r *Raft) stepLeader(m raftpb.Message) error {
	switch m.Type {
	case raftpb.MsgBeat:
		r.bcastHeartbeat()
		return nil
	case raftpb.MsgCheckQuorum:
		if !r.trk.QuorumActive() {
			r.becomeFollower(r.Term, 0)
		}
		return nil
	case raftpb.MsgProp:
		if len(m.Entries) == 0 {
			return fmt.Errorf("raft: %d stepped an empty MsgProp", r.id)
		}
		if _, ok := r.trk.Progress[r.id]; !ok {
			return ErrProposalDropped
		}
		if r.leadTransferee != 0 {
			return ErrProposalDropped
		}
		for i, e := range m.Entries {
			if e.Type == raftpb.EntryConfChange {
				if r.pendingConfIndex > r.raftLog.applied {
					m.Entries[i] = raftpb.Entry{Type: raftpb.EntryNormal}
				} else {
					r.pendingConfIndex = r.raftLog.lastIndex() + uint64(i) + 1
				}
			}
		}
		if !r.appendEntry(m.Entries...) {
			return ErrProposalDropped
		}
		r.bcastAppend()
		return nil
	case raftpb.MsgReadIndex:
		r.handleReadIndex(m)
		return nil
	case raftpb.MsgAppResp:
		r.handleAppendResponse(m)
	case raftpb.MsgHeartbeatResp:
		r.handleHeartbeatResponse(m)
	case raftpb.MsgSnapStatus:
		pr := r.trk.Progress[m.From]
		if pr != nil && pr.State == tracker.StateSnapshot {
			pr.BecomeProbe()
		}
	case raftpb.MsgUnreachable:
		pr := r.trk.Progress[m.From]
		if pr != nil && pr.State == tracker.StateReplicate {
			pr.BecomeProbe()
		}
	case raftpb.MsgTransferLeader:
		r.handleTransferLeader(m)
	}
	return nil
}

func (r *Raft) handleReadIndex(m raftpb.Message) {
	if len(m.Entries) != 1 {
		return
	}
	if r.readOnly.option == ReadOnlyLeaseBased || r.trk.IsSingleton() {
		r.readStates = append(r.readStates, ReadState{Index: r.raftLog.committed, RequestCtx: m.Entries[0].Data})
		return
	}
	r.readOnly.addRequest(r.raftLog.committed, m)
	// The local node acks its own request immediately; otherwise a
	// request would need every other voter's ack instead of just a
	// quorum of them.
	r.readOnly.recvAck(r.id, m.Entries[0].Data)
	r.bcastHeartbeatWithContext(m.Entries[0].Data)
}

func (r *Raft) handleAppendResponse(m raftpb.Message) {
	pr := r.trk.Progress[m.From]
	if pr == nil {
		return
	}
	pr.RecentActive = true

	if m.Reject {
		if pr.MaybeDecrTo(m.Index, m.RejectHint) {
			if pr.State == tracker.StateReplicate {
				pr.BecomeProbe()
			}
			r.sendAppend(m.From)
		}
		return
	}

	if !pr.MaybeUpdate(m.Index) {
		return
	}

	switch pr.State {
	case tracker.StateProbe:
		pr.BecomeReplicate()
	case tracker.StateSnapshot:
		if pr.MaybeSnapshotAbort() {
			pr.BecomeProbe()
		}
	case tracker.StateReplicate:
		pr.Inflights.FreeLE(m.Index)
	}

	if r.maybeCommit() {
		r.bcastAppend()
	} else if pr.State == tracker.StateReplicate {
		r.maybeSendAppend(m.From, false)
	}

	if r.leadTransferee == m.From && pr.Match == r.raftLog.lastIndex() {
		r.sendTimeoutNow(m.From)
	}
}

func (r *Raft) handleHeartbeatResponse(m raftpb.Message) {
	pr := r.trk.Progress[m.From]
	if pr == nil {
		return
	}
	pr.RecentActive = true
	pr.ProbeSent = false

	if pr.State == tracker.StateReplicate && pr.Inflights.Full() {
		pr.Inflights.FreeFirstOne()
	}
	if pr.Match < r.raftLog.lastIndex() {
		r.sendAppend(m.From)
	}

	if r.readOnly.option != ReadOnlySafe || len(m.Context) == 0 {
		return
	}

	acks := r.readOnly.recvAck(m.From, m.Context)
	if len(acks) < r.quorum() {
		return
	}

	for _, rs := range r.readOnly.advance(m.Context) {
		if len(rs.req.Entries) == 0 {
			continue
		}
		r.readStates = append(r.readStates, ReadState{Index: rs.index, RequestCtx: rs.req.Entries[0].Data})
	}
}

func (r *Raft) handleTransferLeader(m raftpb.Message) {
	leadTransferee := m.From
	if r.isLearner || leadTransferee == r.id {
		return
	}
	if r.leadTransferee != 0 {
		if r.leadTransferee == leadTransferee {
			return
		}
		r.abortLeaderTransfer()
	}
	pr := r.trk.Progress[leadTransferee]
	if pr == nil {
		return
	}

	r.electionElapsed = 0
	r.leadTransferee = leadTransferee
	if pr.Match == r.raftLog.lastIndex() {
		r.sendTimeoutNow(leadTransferee)
	} else {
		r.sendAppend(leadTransferee)
	}
}

func (r *Raft) handleAppendEntries(m raftpb.Message) {
	if m.Index < r.raftLog.committed {
		r.send(raftpb.Message{To: m.From, Type: raftpb.MsgAppResp, Index: r.raftLog.committed})
		return
	}
	if lastNewIndex, ok := r.raftLog.maybeAppend(m.Index, m.LogTerm, m.Commit, m.Entries); ok {
		r.send(raftpb.Message{To: m.From, Type: raftpb.MsgAppResp, Index: lastNewIndex})
		return
	}
	r.send(raftpb.Message{
		To:         m.From,
		Type:       raftpb.MsgAppResp,
		Index:      m.Index,
		Reject:     true,
		RejectHint: min(m.Index, r.raftLog.lastIndex()),
	})
}

func (r *Raft) handleHeartbeat(m raftpb.Message) {
	r.raftLog.commitTo(min(m.Commit, r.raftLog.lastIndex()))
	r.send(raftpb.Message{To: m.From, Type: raftpb.MsgHeartbeatResp, Context: m.Context})
}

func (r *Raft) handleSnapshot(m raftpb.Message) {
	if r.restore(m.Snapshot) {
		r.send(raftpb.Message{To: m.From, Type: raftpb.MsgAppResp, Index: r.raftLog.lastIndex()})
	} else {
		r.send(raftpb.Message{To: m.From, Type: raftpb.MsgAppResp, Index: r.raftLog.committed})
	}
}

// restore installs s as the new log base if it is both newer than our
// committed index and not already subsumed by an entry we hold, resetting
// every peer's Progress to the snapshot's own membership. Returns false
// (a no-op or a pure commit bump) when s brings nothing new.
func (r *Raft) restore(s raftpb.Snapshot) bool {
	if s.Metadata.Index <= r.raftLog.committed {
		return false
	}
	if r.raftLog.matchTerm(s.Metadata.Index, s.Metadata.Term) {
		r.raftLog.commitTo(s.Metadata.Index)
		return false
	}

	r.raftLog.restore(s)
	r.trk = tracker.MakeProgressTracker(r.trk.MaxInflight)
	for _, id := range s.Metadata.ConfState.Voters {
		r.trk.InitProgress(id, 0, r.raftLog.lastIndex()+1, false)
	}
	for _, id := range s.Metadata.ConfState.Learners {
		r.trk.InitProgress(id, 0, r.raftLog.lastIndex()+1, true)
		if id == r.id {
			r.isLearner = true
		}
	}
	if pr := r.trk.Progress[r.id]; pr != nil {
		pr.Match = r.raftLog.lastIndex()
	}
	return true
}

// applyConfChange applies cc (already committed) to the membership,
// adjusting our own learner flag if it names us.
func (r *Raft) applyConfChange(cc raftpb.ConfChange) (raftpb.ConfState, error) {
	if err := confchange.Apply(&r.trk, cc, r.raftLog.lastIndex()); err != nil {
		return raftpb.ConfState{}, err
	}
	if cc.NodeID == r.id {
		if pr := r.trk.Progress[r.id]; pr != nil {
			r.isLearner = pr.IsLearner
		}
	}
	return r.confState(), nil
}

func (r *Raft) tickElection() {
	r.electionElapsed++
	if r.promotable() && r.pastElectionTimeout() {
		r.electionElapsed = 0
		_ = r.Step(raftpb.Message{From: r.id, Type: raftpb.MsgHup})
	}
}

func (r *Raft) pastElectionTimeout() bool {
	return r.electionElapsed >= r.randomizedElectionTimeout
}

func (r *Raft) tickHeartbeat() {
	r.heartbeatElapsed++
	r.electionElapsed++

	if r.electionElapsed >= r.electionTimeout {
		r.electionElapsed = 0
		if r.checkQuorum {
			_ = r.Step(raftpb.Message{From: r.id, Type: raftpb.MsgCheckQuorum})
		}
		if r.leadTransferee != 0 {
			r.abortLeaderTransfer()
		}
	}

	if r.state != StateLeader {
		return
	}
	if r.heartbeatElapsed >= r.heartbeatTimeout {
		r.heartbeatElapsed = 0
		_ = r.Step(raftpb.Message{From: r.id, Type: raftpb.MsgBeat})
	}
}

// Tick dispatches to the role-appropriate ticker; called once per logical
// time unit by the host.
func (r *Raft) Tick() {
	switch r.state {
	case StateLeader:
		r.tickHeartbeat()
	default:
		r.tickElection()
	}
}
