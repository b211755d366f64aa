package raft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Konstantsiy/raftkv/raftpb"
)

func readIndexMsg(ctx string) raftpb.Message {
	return raftpb.Message{
		Type:    raftpb.MsgReadIndex,
		Entries: []raftpb.Entry{{Data: []byte(ctx)}},
	}
}

func TestReadOnly_AddRequestIsIdempotentPerContext(t *testing.T) {
	ro := newReadOnly(ReadOnlySafe)
	ro.addRequest(5, readIndexMsg("a"))
	ro.addRequest(9, readIndexMsg("a"))

	require.Len(t, ro.readIndexQueue, 1)
	require.Equal(t, uint64(5), ro.pendingReadIndex["a"].index)
}

func TestReadOnly_RecvAckAccumulates(t *testing.T) {
	ro := newReadOnly(ReadOnlySafe)
	ro.addRequest(1, readIndexMsg("a"))

	acks := ro.recvAck(2, []byte("a"))
	require.Len(t, acks, 1)
	acks = ro.recvAck(3, []byte("a"))
	require.Len(t, acks, 2)

	require.Nil(t, ro.recvAck(2, []byte("missing")))
}

func TestReadOnly_AdvanceDrainsUpToAndIncludingCtx(t *testing.T) {
	ro := newReadOnly(ReadOnlySafe)
	ro.addRequest(1, readIndexMsg("a"))
	ro.addRequest(2, readIndexMsg("b"))
	ro.addRequest(3, readIndexMsg("c"))

	confirmed := ro.advance([]byte("b"))
	require.Len(t, confirmed, 2)
	require.Equal(t, []string{"c"}, ro.readIndexQueue)
	_, stillPending := ro.pendingReadIndex["a"]
	require.False(t, stillPending)
	_, stillPending = ro.pendingReadIndex["c"]
	require.True(t, stillPending)
}

func TestReadOnly_AdvanceUnknownCtxIsNoop(t *testing.T) {
	ro := newReadOnly(ReadOnlySafe)
	ro.addRequest(1, readIndexMsg("a"))

	confirmed := ro.advance([]byte("never-queued"))
	require.Nil(t, confirmed)
	require.Len(t, ro.readIndexQueue, 1)
}

func TestReadOnly_LastPendingRequestCtx(t *testing.T) {
	ro := newReadOnly(ReadOnlySafe)
	require.Equal(t, "", ro.lastPendingRequestCtx())

	ro.addRequest(1, readIndexMsg("a"))
	ro.addRequest(2, readIndexMsg("b"))
	require.Equal(t, "b", ro.lastPendingRequestCtx())
}
