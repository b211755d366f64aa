// Package kvstore implements the replicated state machine: it applies
// committed raftpb.Entry payloads to an in-memory key/value map. It is the
// host's answer to spec.md's "state machine" collaborator, the thing a
// committed entry is ultimately for.
package kvstore

import (
	"fmt"
	"sync"
)

// FSM is a simple in-memory key-value state machine driven by committed
// log entries. Reads do not go through Apply; the host in internal/raftd
// answers them directly from Get, without a ReadIndex round.
type FSM struct {
	mu sync.RWMutex
	db map[string][]byte
}

// New returns an empty FSM.
func New() *FSM {
	return &FSM{db: make(map[string][]byte)}
}

// Apply decodes and applies a single committed entry's payload. It returns
// only an error; reads are served outside Apply, via Get.
func (f *FSM) Apply(payload []byte) error {
	cmd, err := decodeCmd(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.kind {
	case cmdPut:
		f.db[cmd.key] = cmd.value
	case cmdDelete:
		delete(f.db, cmd.key)
	case cmdGet:
		// Gets are answered outside the replicated log via Get below;
		// a Get entry should never actually be proposed.
	default:
		return fmt.Errorf("kvstore: unsupported command kind: %d", cmd.kind)
	}

	return nil
}

// Get reads key directly from the map. Callers that need a linearizable
// read must first confirm the commit watermark via RawNode.ReadIndex and
// wait for the matching ReadState before calling Get.
func (f *FSM) Get(key string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.db[key]
	return v, ok
}
