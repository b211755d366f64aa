package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCmd(t *testing.T) {
	tt := []struct {
		name        string
		msg         []byte
		expectedCmd command
		expectedErr string
	}{
		{
			name:        "put command",
			msg:         []byte{0x00, 0x00, 0x00, 0x00, 0x03, 'k', 'e', 'y', 0x00, 0x00, 0x00, 0x05, 'v', 'a', 'l', 'u', 'e'},
			expectedCmd: command{kind: cmdPut, key: "key", value: []byte("value")},
		},
		{
			name:        "delete command has no value",
			msg:         []byte{0x02, 0x00, 0x00, 0x00, 0x03, 'k', 'e', 'y'},
			expectedCmd: command{kind: cmdDelete, key: "key"},
		},
		{
			name:        "invalid key length",
			msg:         []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF},
			expectedErr: "kvstore: invalid key length: 4294967295",
		},
		{
			name:        "message too short for value length",
			msg:         []byte{0x00, 0x00, 0x00, 0x00, 0x03, 'k', 'e', 'y', 0x00, 0x00, 0x00},
			expectedErr: "kvstore: message too short for value length",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := decodeCmd(tc.msg)
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectedCmd, cmd)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, err := EncodePut("answer", []byte("42"))
	require.NoError(t, err)

	cmd, err := decodeCmd(payload)
	require.NoError(t, err)
	require.Equal(t, "answer", cmd.key)
	require.Equal(t, []byte("42"), cmd.value)

	payload, err = EncodeDelete("answer")
	require.NoError(t, err)

	cmd, err = decodeCmd(payload)
	require.NoError(t, err)
	require.Equal(t, cmdDelete, cmd.kind)
	require.Equal(t, "answer", cmd.key)
}
