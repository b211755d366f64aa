package raft

import "github.com/Konstantsiy/raftkv/raftpb"

// ReadOnlyOption controls how a leader answers a ReadIndex request:
// Safe confirms leadership with a heartbeat round before answering;
// LeaseBased trusts that no other leader can have been elected within the
// election timeout and answers immediately. LeaseBased requires
// synchronized clocks across peers and is strictly weaker.
type ReadOnlyOption int

const (
	ReadOnlySafe ReadOnlyOption = iota
	ReadOnlyLeaseBased
)

// ReadState is handed to the host once a ReadIndex request is safe to
// serve: Index is the commit watermark the read must observe, and
// RequestCtx is the opaque token the caller passed to ReadIndex.
type ReadState struct {
	Index      uint64
	RequestCtx []byte
}

// readIndexStatus tracks one in-flight ReadIndex request while the leader
// collects heartbeat acks from a quorum of voters.
type readIndexStatus struct {
	req   raftpb.Message
	index uint64
	acks  map[uint64]struct{}
}

// readOnly holds every ReadIndex request the leader has not yet confirmed,
// keyed by the opaque context carried in the originating MsgReadIndex
// (etcd's own choice of key, since a client-supplied context is already
// required to be unique per request).
type readOnly struct {
	option           ReadOnlyOption
	pendingReadIndex map[string]*readIndexStatus
	readIndexQueue   []string
}

func newReadOnly(option ReadOnlyOption) *readOnly {
	return &readOnly{
		option:           option,
		pendingReadIndex: make(map[string]*readIndexStatus),
	}
}

// addRequest records a new ReadIndex request. index is the leader's
// committed index at the time the request arrived — the watermark the
// read must eventually observe once a quorum of heartbeat acks confirms
// this node is still the leader.
func (ro *readOnly) addRequest(index uint64, m raftpb.Message) {
	ctx := string(m.Entries[0].Data)
	if _, ok := ro.pendingReadIndex[ctx]; ok {
		return
	}
	ro.pendingReadIndex[ctx] = &readIndexStatus{
		req:   m,
		index: index,
		acks:  make(map[uint64]struct{}),
	}
	ro.readIndexQueue = append(ro.readIndexQueue, ctx)
}

// recvAck records that from has acknowledged the heartbeat carrying ctx,
// returning the updated ack set so the caller can check it against
// quorum.
func (ro *readOnly) recvAck(from uint64, ctx []byte) map[uint64]struct{} {
	rs, ok := ro.pendingReadIndex[string(ctx)]
	if !ok {
		return nil
	}
	rs.acks[from] = struct{}{}
	return rs.acks
}

// advance drops every pending request up to and including the one
// carrying ctx (they piggyback on the same quorum confirmation, since
// heartbeats are totally ordered for a given leader term), returning the
// newly-confirmed requests in submission order.
func (ro *readOnly) advance(ctx []byte) []*readIndexStatus {
	var (
		i         int
		found     bool
		confirmed []*readIndexStatus
	)
	for i = 0; i < len(ro.readIndexQueue); i++ {
		key := ro.readIndexQueue[i]
		rs, ok := ro.pendingReadIndex[key]
		if !ok {
			continue
		}
		confirmed = append(confirmed, rs)
		if key == string(ctx) {
			found = true
			break
		}
	}
	if found {
		for _, key := range ro.readIndexQueue[:i+1] {
			delete(ro.pendingReadIndex, key)
		}
		ro.readIndexQueue = ro.readIndexQueue[i+1:]
		return confirmed
	}
	return nil
}

// lastPendingRequestCtx returns the context of the most recently queued
// request, used by bcastHeartbeat so that a periodic heartbeat round also
// carries, and can confirm, the newest pending read.
func (ro *readOnly) lastPendingRequestCtx() string {
	if len(ro.readIndexQueue) == 0 {
		return ""
	}
	return ro.readIndexQueue[len(ro.readIndexQueue)-1]
}
