package raftpb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfChange_MarshalUnmarshalCompatibility(t *testing.T) {
	var (
		tt = []struct {
			name string
			cc   ConfChange
		}{
			{
				name: "add node, no context",
				cc:   ConfChange{Type: ConfChangeAddNode, NodeID: 7},
			},
			{
				name: "add learner with context",
				cc:   ConfChange{Type: ConfChangeAddLearnerNode, NodeID: 42, Context: []byte("joining")},
			},
			{
				name: "remove node",
				cc:   ConfChange{Type: ConfChangeRemoveNode, NodeID: 3},
			},
			{
				name: "update node",
				cc:   ConfChange{Type: ConfChangeUpdateNode, NodeID: 5, Context: []byte{0x00, 0xFF}},
			},
		}
	)

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.cc.Marshal()
			require.NoError(t, err)

			var decoded ConfChange
			require.NoError(t, decoded.Unmarshal(data))

			require.Equal(t, tc.cc.Type, decoded.Type)
			require.Equal(t, tc.cc.NodeID, decoded.NodeID)
			require.Equal(t, tc.cc.Context, decoded.Context)
		})
	}
}

func TestConfChange_UnmarshalTooShort(t *testing.T) {
	var cc ConfChange
	err := cc.Unmarshal([]byte{0x00, 0x01})
	require.Error(t, err)
}

func TestConfChange_UnmarshalBadContextLength(t *testing.T) {
	data := []byte{
		byte(ConfChangeAddNode),
		0, 0, 0, 0, 0, 0, 0, 1, // node id
		0, 0, 0, 99, // claims 99 bytes of context but none follow
	}

	var cc ConfChange
	err := cc.Unmarshal(data)
	require.Error(t, err)
}
