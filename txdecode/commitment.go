package txdecode

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/policy"
)

// VerifyCommitmentValues cross-checks a claimed CommitmentInfo2 decomposition
// against the raw commitment transaction it is supposed to describe: the sum
// of to_broadcaster, to_countersigner and every HTLC value, plus the implied
// fee, must not exceed the sum of the transaction's own outputs plus
// inputValue - outputs (the fee). The signer never re-derives HTLC scripts
// from scratch (it has no independent view of the channel's routing state);
// this is the shape of cross-check the commitment validators in the policy
// package layer on top of a claimed CommitmentInfo2, grounded on
// lnwallet/channel.go's fetchCommitmentView total-value accounting.
func VerifyCommitmentValues(tx *wire.MsgTx, info *enforcement.CommitmentInfo2, inputValue int64) error {
	const op = "verify_commitment_values"

	var outputValue int64
	for _, out := range tx.TxOut {
		outputValue += out.Value
	}
	if outputValue > inputValue {
		return policy.TransactionFormatf(op,
			"commitment outputs %d exceed funding input %d", outputValue, inputValue)
	}

	claimed := int64(info.ToBroadcasterValueSat) + int64(info.ToCountersignerValueSat) +
		int64(info.TotalHTLCValueSat())
	if claimed > outputValue {
		return policy.TransactionFormatf(op,
			"claimed commitment value %d exceeds transaction outputs %d", claimed, outputValue)
	}
	return nil
}

// FindOutputByValue locates the single output in tx whose value matches
// amountSat, returning its index. Used to bind a claimed to_broadcaster or
// HTLC entry in a CommitmentInfo2 to the concrete output the signer is
// about to authorize spending from in a later sweep.
func FindOutputByValue(tx *wire.MsgTx, amountSat uint64) (int, bool) {
	for i, out := range tx.TxOut {
		if out.Value == int64(amountSat) {
			return i, true
		}
	}
	return 0, false
}
