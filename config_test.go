package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ID:              1,
		ElectionTick:    10,
		HeartbeatTick:   1,
		Storage:         NewMemoryStorage(),
		MaxInflightMsgs: 256,
	}
}

func TestConfig_ValidateAcceptsWellFormed(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.validate())
}

func TestConfig_ValidateRejectsMissingID(t *testing.T) {
	c := validConfig()
	c.ID = 0
	require.ErrorIs(t, c.validate(), ErrInvalidConfig)
}

func TestConfig_ValidateRejectsElectionNotGreaterThanHeartbeat(t *testing.T) {
	c := validConfig()
	c.ElectionTick = c.HeartbeatTick
	require.ErrorIs(t, c.validate(), ErrInvalidConfig)
}

func TestConfig_ValidateRejectsNilStorage(t *testing.T) {
	c := validConfig()
	c.Storage = nil
	require.ErrorIs(t, c.validate(), ErrInvalidConfig)
}

func TestConfig_ValidateRejectsOverlappingPeersAndLearners(t *testing.T) {
	c := validConfig()
	c.Peers = []uint64{1, 2}
	c.Learners = []uint64{2}
	require.ErrorIs(t, c.validate(), ErrInvalidConfig)
}
