// Package raftd runs the single serializing event loop that owns a
// raft.RawNode: the teacher's server.go drives its own hand-rolled state
// machine from one goroutine behind a select over timers and channels,
// and this loop plays the same role for the real RawNode/Ready cycle —
// ticking it, stepping inbound messages, draining Ready, and applying
// committed entries to the key-value state machine.
package raftd

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	raft "github.com/Konstantsiy/raftkv"
	"github.com/Konstantsiy/raftkv/internal/hostconfig"
	"github.com/Konstantsiy/raftkv/internal/kvstore"
	"github.com/Konstantsiy/raftkv/internal/transport"
	"github.com/Konstantsiy/raftkv/internal/walstorage"
	"github.com/Konstantsiy/raftkv/raftpb"
)

const tickInterval = 100 * time.Millisecond

// proposal is a pending client request waiting for its entry to commit.
type proposal struct {
	data []byte
	done chan error
}

// Node wires a raft.RawNode to durable storage, an HTTP transport, and a
// key-value state machine, and drives all three from one goroutine.
type Node struct {
	cfg *hostconfig.Config

	rn      *raft.RawNode
	storage *walstorage.Storage
	fsm     *kvstore.FSM
	client  *transport.Client

	recvc   chan raftpb.Message
	propc   chan proposal
	statusc chan chan raft.Status
	donec   chan struct{}
	stopc   chan struct{}
}

// New builds a Node from cfg, opening its durable storage and constructing
// a fresh RawNode bootstrapped from the configured peer set.
func New(cfg *hostconfig.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("raftd: invalid config: %w", err)
	}

	storage, err := walstorage.Open(cfg.Node.DataDir, cfg.Node.ID)
	if err != nil {
		return nil, fmt.Errorf("raftd: cannot open storage: %w", err)
	}

	rc := &raft.Config{
		ID:                        cfg.Node.ID,
		Peers:                     cfg.VoterIDs(),
		Learners:                  cfg.LearnerIDs(),
		ElectionTick:              cfg.Raft.ElectionTick,
		HeartbeatTick:             cfg.Raft.HeartbeatTick,
		Storage:                   storage,
		MaxSizePerMsg:             cfg.Raft.MaxSizePerMsg,
		MaxCommittedSizePerReady:  cfg.Raft.MaxCommittedSizePerReady,
		MaxUncommittedEntriesSize: cfg.Raft.MaxUncommittedEntriesSize,
		MaxInflightMsgs:           cfg.Raft.MaxInflightMsgs,
		CheckQuorum:               cfg.Raft.CheckQuorum,
		PreVote:                   cfg.Raft.PreVote,
	}
	if rc.MaxInflightMsgs <= 0 {
		rc.MaxInflightMsgs = 256
	}

	rn, err := raft.NewRawNode(rc)
	if err != nil {
		return nil, fmt.Errorf("raftd: cannot start raft core: %w", err)
	}

	return &Node{
		cfg:     cfg,
		rn:      rn,
		storage: storage,
		fsm:     kvstore.New(),
		client:  transport.NewClient(),
		recvc:   make(chan raftpb.Message),
		propc:   make(chan proposal),
		statusc: make(chan chan raft.Status),
		donec:   make(chan struct{}),
		stopc:   make(chan struct{}),
	}, nil
}

// Receive implements transport.Inbox: it hands an inbound message to the
// loop goroutine, never touching the RawNode from the caller's goroutine.
func (n *Node) Receive(m raftpb.Message) {
	select {
	case n.recvc <- m:
	case <-n.donec:
	}
}

// Propose submits data as a new log entry and blocks until it commits (or
// ctx is done, or the loop has stopped). A nil error means the entry was
// applied to the state machine, not merely appended to the log.
func (n *Node) Propose(ctx context.Context, data []byte) error {
	p := proposal{data: data, done: make(chan error, 1)}
	select {
	case n.propc <- p:
	case <-ctx.Done():
		return ctx.Err()
	case <-n.donec:
		return fmt.Errorf("raftd: node is stopped")
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-n.donec:
		return fmt.Errorf("raftd: node is stopped")
	}
}

// Get reads key directly from the local state machine. Callers that need
// a linearizable read should route through ReadIndex instead; this is the
// teacher's own "just read the local map" shortcut, kept for the common
// case of a follower-tolerant read.
func (n *Node) Get(key string) ([]byte, bool) {
	return n.fsm.Get(key)
}

// Status reports the loop's current view of leadership and term.
func (n *Node) Status() raft.Status {
	reply := make(chan raft.Status, 1)
	select {
	case n.statusc <- reply:
		return <-reply
	case <-n.donec:
		return raft.Status{}
	}
}

// Stop shuts the loop down and waits for it to exit. It does not close the
// storage.
func (n *Node) Stop() {
	close(n.stopc)
	<-n.donec
}

// Run drives the event loop until Stop is called. It is meant to run in
// its own goroutine for the lifetime of the process.
func (n *Node) Run() {
	defer close(n.donec)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var pending []proposal

	for {
		select {
		case <-n.stopc:
			n.failPending(pending, fmt.Errorf("raftd: node is stopping"))
			return

		case <-ticker.C:
			n.rn.Tick()

		case m := <-n.recvc:
			if err := n.rn.Step(m); err != nil {
				log.Printf("raftd: dropping message from %d: %v", m.From, err)
			}

		case p := <-n.propc:
			if err := n.rn.Propose(p.data); err != nil {
				p.done <- err
				continue
			}
			pending = append(pending, p)

		case reply := <-n.statusc:
			reply <- n.rn.Status()
		}

		n.drainReady(&pending)
	}
}

// drainReady processes every Ready currently available, in the order a
// host must: persist, apply snapshot, send, apply committed entries,
// advance.
func (n *Node) drainReady(pending *[]proposal) {
	for n.rn.HasReady() {
		rd := n.rn.Ready()

		if len(rd.Entries) > 0 {
			if err := n.storage.Append(rd.Entries); err != nil {
				log.Printf("raftd: failed to persist entries: %v", err)
				return
			}
		}
		if !rd.HardState.IsEmpty() {
			if err := n.storage.SetHardState(rd.HardState); err != nil {
				log.Printf("raftd: failed to persist hard state: %v", err)
				return
			}
		}

		if !rd.Snapshot.IsEmpty() {
			if err := n.storage.ApplySnapshot(rd.Snapshot); err != nil {
				log.Printf("raftd: failed to apply snapshot: %v", err)
				return
			}
		}

		n.sendMessages(rd.Messages)

		for _, ent := range rd.CommittedEntries {
			n.applyEntry(ent, pending)
		}

		n.rn.Advance(rd)
	}
}

// applyEntry applies a single committed entry to the state machine (or
// feeds a conf change back into the core) and, if it matches the oldest
// outstanding local proposal, resolves it. Proposals are matched by
// payload rather than by index: Propose returns before the entry's index
// is known, and a follower's proposal is only an index once it comes back
// through replication from the leader.
func (n *Node) applyEntry(ent raftpb.Entry, pending *[]proposal) {
	var err error
	switch ent.Type {
	case raftpb.EntryNormal:
		if len(ent.Data) > 0 {
			err = n.fsm.Apply(ent.Data)
		}
	case raftpb.EntryConfChange:
		var cc raftpb.ConfChange
		if uerr := cc.Unmarshal(ent.Data); uerr == nil {
			if _, aerr := n.rn.ApplyConfChange(cc); aerr != nil {
				err = aerr
			}
		} else {
			err = uerr
		}
	}

	if len(*pending) > 0 && bytes.Equal((*pending)[0].data, ent.Data) {
		(*pending)[0].done <- err
		*pending = (*pending)[1:]
	}
}

func (n *Node) sendMessages(msgs []raftpb.Message) {
	addrs := n.cfg.PeerAddresses()
	for _, m := range msgs {
		addr, ok := addrs[m.To]
		if !ok {
			continue
		}
		go func(addr string, m raftpb.Message) {
			if err := n.client.Send(addr, m); err != nil {
				log.Printf("raftd: failed to send %s to %s: %v", m.Type, addr, err)
			}
		}(addr, m)
	}
}

func (n *Node) failPending(pending []proposal, err error) {
	for _, p := range pending {
		p.done <- err
	}
}
