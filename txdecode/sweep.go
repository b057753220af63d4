// Package txdecode implements the Transaction Decomposer (C3): decoding raw
// Bitcoin transactions into the semantic shapes the policy validator reasons
// about, and validating that a claimed sweep transaction's raw shape matches
// the single allowed template for its kind.
//
// Sweep-format checks are grounded on the exact assertions exercised against
// sign_delayed_sweep in the original implementation's test suite: one input,
// one output, a fixed version and locktime, and a sequence that matches the
// channel parameters the signer already knows.
package txdecode

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/remotesigner/policy"
)

// p2wpkhOutputSize is the serialized size in bytes of a P2WPKH output,
// matching the teacher's sweep/txgenerator.go dust calculation: every sweep
// this signer authorizes pays to a single native segwit output.
const p2wpkhOutputSize = 31

// SweepKind distinguishes the three sweep transaction shapes the signer is
// ever asked to sign off-commitment.
type SweepKind int

const (
	SweepDelayed SweepKind = iota
	SweepCounterpartyHTLC
	SweepJustice
)

func (k SweepKind) opName() string {
	switch k {
	case SweepDelayed:
		return "validate_delayed_sweep"
	case SweepCounterpartyHTLC:
		return "validate_counterparty_htlc_sweep"
	case SweepJustice:
		return "validate_justice_sweep"
	default:
		return "validate_sweep"
	}
}

// SweepSpec is the shape a sweep transaction of a given kind is expected to
// have, derived by the caller from channel state the signer already trusts
// (the commitment's to_self_delay, the input being swept, etc).
// ValidateSweepFormat does not read ExpectedValue.
type SweepSpec struct {
	Kind          SweepKind
	InputIndex    int
	ExpectedSeq   uint32
	ExpectedValue int64
}

// ValidateSweepFormat checks tx against spec, returning a *policy.Error with
// Kind TransactionFormat and no rule tag on any mismatch, including a wrong
// version, locktime or sequence. It matches the claimed sweep's shape only;
// the fee checks (ValidateSweepFee, ValidateSweepOutputNotDust below) and
// the destination checks in the validator package are separate calls.
func ValidateSweepFormat(tx *wire.MsgTx, spec SweepSpec) error {
	op := spec.Kind.opName()

	if len(tx.TxIn) != 1 {
		return policy.TransactionFormatf(op,
			"bad number of %s inputs: %d != 1", sweepNoun(spec.Kind), len(tx.TxIn))
	}
	if len(tx.TxOut) != 1 {
		return policy.TransactionFormatf(op,
			"bad number of %s outputs: %d != 1", sweepNoun(spec.Kind), len(tx.TxOut))
	}
	if spec.InputIndex != 0 {
		return policy.TransactionFormatf(op,
			"bad input index: %d != 0", spec.InputIndex)
	}
	if tx.Version != 2 {
		return policy.TransactionFormatf(op,
			"bad %s version: %d", sweepNoun(spec.Kind), tx.Version)
	}
	if tx.LockTime != 0 {
		return policy.TransactionFormatf(op,
			"bad %s locktime: %d > 0", sweepNoun(spec.Kind), tx.LockTime)
	}
	if tx.TxIn[0].Sequence != spec.ExpectedSeq {
		return policy.TransactionFormatf(op,
			"bad %s sequence: %d != %d", sweepNoun(spec.Kind), tx.TxIn[0].Sequence, spec.ExpectedSeq)
	}
	return nil
}

func sweepNoun(k SweepKind) string {
	switch k {
	case SweepDelayed:
		return "delayed sweep"
	case SweepCounterpartyHTLC:
		return "counterparty htlc sweep"
	case SweepJustice:
		return "justice sweep"
	default:
		return "sweep"
	}
}

// ValidateSweepFee checks that tx's implied fee (inputValue - sum of output
// values) lies within [minSat, maxSat], using the same bound-ordering and
// wording as the corresponding commitment/on-chain fee checks so that all
// three read as one family in an audit trail.
func ValidateSweepFee(tx *wire.MsgTx, kind SweepKind, inputValue int64, minSat, maxSat int64) error {
	op := kind.opName()
	tag := policy.SweepFeeTag(op)
	var outputValue int64
	for _, out := range tx.TxOut {
		outputValue += out.Value
	}
	if outputValue > inputValue {
		return policy.Policyf(op, tag,
			"%s fee underflow: %d - %d", sweepNoun(kind), outputValue, inputValue)
	}
	fee := inputValue - outputValue
	if fee < minSat {
		return policy.Policyf("validate_fee", tag,
			"%s: fee below minimum: %d < %d", op, fee, minSat)
	}
	if fee > maxSat {
		return policy.Policyf("validate_fee", tag,
			"%s: fee above maximum: %d > %d", op, fee, maxSat)
	}
	log.Tracef("%s fee %d within [%d, %d]", op, fee, minSat, maxSat)
	return nil
}

// ValidateSweepOutputNotDust rejects a sweep whose sole output would be
// uneconomical to spend at the given relay fee rate, using the same
// dust-threshold calculation the teacher's sweep transaction builder uses
// before ever constructing a candidate sweep (sweep/txgenerator.go).
func ValidateSweepOutputNotDust(tx *wire.MsgTx, kind SweepKind, relayFeePerKW btcutil.Amount) error {
	dustLimit := txrules.GetDustThreshold(p2wpkhOutputSize, relayFeePerKW)
	if btcutil.Amount(tx.TxOut[0].Value) < dustLimit {
		return policy.Policyf(kind.opName(), policy.SweepFeeTag(kind.opName()),
			"sweep output %d below dust limit %d", tx.TxOut[0].Value, dustLimit)
	}
	return nil
}

// DumpTx renders tx for inclusion in a TransactionFormat error's detail,
// matching the teacher's use of spew.Sdump for debugging malformed
// commitment transactions (lnwallet/channel.go).
func DumpTx(tx *wire.MsgTx) string {
	return spew.Sdump(tx)
}
