package txdecode

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/stretchr/testify/require"
)

func testDelayedSweepTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{Sequence: 7})
	tx.AddTxOut(&wire.TxOut{Value: 1_978_997})
	return tx
}

func TestValidateSweepFormatAccepts(t *testing.T) {
	tx := testDelayedSweepTx()
	spec := SweepSpec{Kind: SweepDelayed, InputIndex: 0, ExpectedSeq: 7}
	require.NoError(t, ValidateSweepFormat(tx, spec))
}

func TestValidateSweepFormatBadInputCount(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.AddTxIn(&wire.TxIn{Sequence: 7})
	err := ValidateSweepFormat(tx, SweepSpec{Kind: SweepDelayed, ExpectedSeq: 7})
	require.Error(t, err)
	require.True(t, policy.IsKind(err, policy.KindTransactionFormat))
	require.Equal(t, "transaction format: validate_delayed_sweep: bad number of delayed sweep inputs: 2 != 1", err.Error())
}

func TestValidateSweepFormatBadOutputCount(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.AddTxOut(&wire.TxOut{Value: 1})
	err := ValidateSweepFormat(tx, SweepSpec{Kind: SweepDelayed, ExpectedSeq: 7})
	require.Error(t, err)
	require.Equal(t, "transaction format: validate_delayed_sweep: bad number of delayed sweep outputs: 2 != 1", err.Error())
}

func TestValidateSweepFormatBadVersion(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.Version = 3
	err := ValidateSweepFormat(tx, SweepSpec{Kind: SweepDelayed, ExpectedSeq: 7})
	require.Error(t, err)
	require.Equal(t, "transaction format: validate_delayed_sweep: bad delayed sweep version: 3", err.Error())
}

func TestValidateSweepFormatBadLocktime(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.LockTime = 1_000_000
	err := ValidateSweepFormat(tx, SweepSpec{Kind: SweepDelayed, ExpectedSeq: 7})
	require.Error(t, err)
	require.Equal(t, "transaction format: validate_delayed_sweep: bad delayed sweep locktime: 1000000 > 0", err.Error())
}

func TestValidateSweepFormatBadSequence(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.TxIn[0].Sequence = 42
	err := ValidateSweepFormat(tx, SweepSpec{Kind: SweepDelayed, ExpectedSeq: 7})
	require.Error(t, err)
	require.Equal(t, "transaction format: validate_delayed_sweep: bad delayed sweep sequence: 42 != 7", err.Error())
}

func TestValidateSweepFeeTooSmall(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.TxOut[0].Value = 1_979_997 // fee = 0
	err := ValidateSweepFee(tx, SweepDelayed, 1_979_997, 100, 46_000)
	require.Error(t, err)
	require.Equal(t, policy.TagSweepFeeRange, policy.Tag(err))
	require.Equal(t, "policy: validate_fee: validate_delayed_sweep: fee below minimum: 0 < 100 [policy-delayed-sweep-fee-range]", err.Error())
}

func TestValidateSweepFeeTooLarge(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.TxOut[0].Value = 1_000
	err := ValidateSweepFee(tx, SweepDelayed, 1_978_997, 100, 46_000)
	require.Error(t, err)
	require.Equal(t, "policy: validate_fee: validate_delayed_sweep: fee above maximum: 1977997 > 46000 [policy-delayed-sweep-fee-range]", err.Error())
}

func TestValidateSweepOutputNotDustRejectsDust(t *testing.T) {
	tx := testDelayedSweepTx()
	tx.TxOut[0].Value = 100
	err := ValidateSweepOutputNotDust(tx, SweepDelayed, 10_000)
	require.Error(t, err)
	require.Equal(t, policy.TagSweepFeeRange, policy.Tag(err))
}

func TestValidateSweepOutputNotDustAccepts(t *testing.T) {
	tx := testDelayedSweepTx()
	require.NoError(t, ValidateSweepOutputNotDust(tx, SweepDelayed, 10_000))
}

func TestValidateSweepFeeUnderflow(t *testing.T) {
	tx := testDelayedSweepTx()
	err := ValidateSweepFee(tx, SweepDelayed, 1_879_997, 100, 46_000)
	require.Error(t, err)
	require.Equal(t, "policy: validate_delayed_sweep: delayed sweep fee underflow: 1978997 - 1879997 [policy-delayed-sweep-fee-range]", err.Error())
}
