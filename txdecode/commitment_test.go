package txdecode

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/stretchr/testify/require"
)

func commitmentTx(outputs ...int64) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, v := range outputs {
		tx.AddTxOut(&wire.TxOut{Value: v})
	}
	return tx
}

func TestVerifyCommitmentValuesAccepts(t *testing.T) {
	tx := commitmentTx(600_000, 390_000)
	info := &enforcement.CommitmentInfo2{
		ToBroadcasterValueSat:   600_000,
		ToCountersignerValueSat: 390_000,
	}

	require.NoError(t, VerifyCommitmentValues(tx, info, 1_000_000))
}

func TestVerifyCommitmentValuesRejectsOutputsExceedingInput(t *testing.T) {
	tx := commitmentTx(600_000, 500_000)
	info := &enforcement.CommitmentInfo2{ToBroadcasterValueSat: 600_000}

	err := VerifyCommitmentValues(tx, info, 1_000_000)
	require.Error(t, err)
}

func TestVerifyCommitmentValuesRejectsOverclaimedValue(t *testing.T) {
	tx := commitmentTx(600_000, 390_000)
	info := &enforcement.CommitmentInfo2{
		ToBroadcasterValueSat:   600_000,
		ToCountersignerValueSat: 500_000,
	}

	err := VerifyCommitmentValues(tx, info, 1_000_000)
	require.Error(t, err)
}

func TestVerifyCommitmentValuesIncludesHTLCs(t *testing.T) {
	tx := commitmentTx(400_000, 390_000, 200_000)
	info := &enforcement.CommitmentInfo2{
		ToBroadcasterValueSat:   400_000,
		ToCountersignerValueSat: 390_000,
		OfferedHTLCs: []enforcement.HTLCInfo2{
			{ValueSat: 200_000},
		},
	}

	require.NoError(t, VerifyCommitmentValues(tx, info, 1_000_000))
}

func TestFindOutputByValueLocatesMatch(t *testing.T) {
	tx := commitmentTx(600_000, 390_000)

	idx, ok := FindOutputByValue(tx, 390_000)
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestFindOutputByValueNoMatch(t *testing.T) {
	tx := commitmentTx(600_000, 390_000)

	_, ok := FindOutputByValue(tx, 1_234)
	require.False(t, ok)
}
