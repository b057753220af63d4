package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsInternallyConsistent(t *testing.T) {
	cfg := DefaultConfig()

	require.Less(t, cfg.MinDelay, cfg.MaxDelay)
	require.Less(t, cfg.DustLimitSat, cfg.ChannelValueMaxSat)
	require.Less(t, cfg.OnchainFeeMinSat, cfg.OnchainFeeMaxSat)
	require.Less(t, cfg.CommitmentFeeMinSat, cfg.CommitmentFeeMaxSat)
	require.Less(t, cfg.SweepFeeMinSat, cfg.SweepFeeMaxSat)
	require.Less(t, cfg.CltvDeltaMin, cfg.CltvDeltaMax)
	require.True(t, cfg.EnforceBalance)
	require.False(t, cfg.StrictRetryInfo)
}
