package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSM_ApplyPutThenDelete(t *testing.T) {
	f := New()

	payload, err := EncodePut("k1", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, f.Apply(payload))

	v, ok := f.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	payload, err = EncodeDelete("k1")
	require.NoError(t, err)
	require.NoError(t, f.Apply(payload))

	_, ok = f.Get("k1")
	require.False(t, ok)
}

func TestFSM_GetMissingKey(t *testing.T) {
	f := New()
	_, ok := f.Get("missing")
	require.False(t, ok)
}

func TestFSM_ApplyRejectsGarbage(t *testing.T) {
	f := New()
	require.Error(t, f.Apply([]byte{0x01, 0x02}))
}
