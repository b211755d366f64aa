package raftpb

import (
	"encoding/binary"
	"fmt"
)

// ConfChangeType enumerates the membership changes a leader can propose.
type ConfChangeType uint8

const (
	ConfChangeAddNode ConfChangeType = iota
	ConfChangeRemoveNode
	ConfChangeUpdateNode
	ConfChangeAddLearnerNode
)

func (t ConfChangeType) String() string {
	switch t {
	case ConfChangeAddNode:
		return "ConfChangeAddNode"
	case ConfChangeRemoveNode:
		return "ConfChangeRemoveNode"
	case ConfChangeUpdateNode:
		return "ConfChangeUpdateNode"
	case ConfChangeAddLearnerNode:
		return "ConfChangeAddLearnerNode"
	default:
		return fmt.Sprintf("ConfChangeType(%d)", t)
	}
}

// ConfChange describes a single membership change. Marshal/Unmarshal form
// the Data payload of an EntryConfChange log entry.
type ConfChange struct {
	Type    ConfChangeType
	NodeID  uint64
	Context []byte
}

// Marshal encodes cc using a fixed layout:
//
//	[0]     ConfChangeType
//	[1:9]   NodeID (uint64, big-endian)
//	[9:13]  len(Context) (uint32, big-endian)
//	[13:]   Context
func (cc ConfChange) Marshal() ([]byte, error) {
	buf := make([]byte, 13+len(cc.Context))
	buf[0] = byte(cc.Type)
	binary.BigEndian.PutUint64(buf[1:9], cc.NodeID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(cc.Context)))
	copy(buf[13:], cc.Context)
	return buf, nil
}

// Unmarshal decodes cc from data written by Marshal.
func (cc *ConfChange) Unmarshal(data []byte) error {
	if len(data) < 13 {
		return fmt.Errorf("raftpb: conf change payload too short: %d bytes", len(data))
	}

	cc.Type = ConfChangeType(data[0])
	cc.NodeID = binary.BigEndian.Uint64(data[1:9])

	ctxLen := int(binary.BigEndian.Uint32(data[9:13]))
	if ctxLen < 0 || 13+ctxLen > len(data) {
		return fmt.Errorf("raftpb: conf change context length out of range: %d", ctxLen)
	}

	cc.Context = append([]byte(nil), data[13:13+ctxLen]...)
	return nil
}

// AsEntry returns an Entry carrying cc's encoded payload, ready to append
// to the log.
func (cc ConfChange) AsEntry(term, index uint64) (Entry, error) {
	data, err := cc.Marshal()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Term: term, Index: index, Type: EntryConfChange, Data: data}, nil
}
