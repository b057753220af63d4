// Package payments implements the Payment Tracker (C6): summarizing
// in-flight HTLCs across the holder's and counterparty's commitments and
// turning that summary into the claimable-balance delta the policy
// validator uses for balance conservation (§4.6).
package payments

import (
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
)

// PreimageMap answers whether the preimage for a payment hash is known to
// the signer, e.g. because the holder originated or already settled that
// payment.
type PreimageMap interface {
	Preimage(hash enforcement.PaymentHash) (preimage [32]byte, known bool)
}

// Summary maps a payment hash to an in-flight satoshi amount.
type Summary map[enforcement.PaymentHash]uint64

func summarize(htlcs []enforcement.HTLCInfo2) Summary {
	out := make(Summary, len(htlcs))
	for _, h := range htlcs {
		out[h.PaymentHash] += h.ValueSat
	}
	return out
}

// PaymentsSummary merges holder-offered HTLCs with counterparty-received
// HTLCs by taking the max per hash: an outgoing payment is considered
// at-risk as soon as either commitment contains it. newHolderTx/
// newCounterpartyTx, if non-nil, override the corresponding current
// commitment for the purpose of this calculation.
func PaymentsSummary(
	state *enforcement.EnforcementState,
	newHolderTx, newCounterpartyTx *enforcement.CommitmentInfo2) Summary {

	holderTx := pick(newHolderTx, state.CurrentHolderCommitInfo)
	cpTx := pick(newCounterpartyTx, state.CurrentCounterpartyCommitInfo)

	var holderOffered, cpReceived []enforcement.HTLCInfo2
	if holderTx != nil {
		holderOffered = holderTx.OfferedHTLCs
	}
	if cpTx != nil {
		cpReceived = cpTx.ReceivedHTLCs
	}

	summary := summarize(holderOffered)
	for hash, amt := range summarize(cpReceived) {
		if cur, ok := summary[hash]; !ok || amt > cur {
			summary[hash] = amt
		}
	}
	return summary
}

// IncomingPaymentsSummary merges holder-received HTLCs with
// counterparty-offered HTLCs by taking the min per hash and then
// intersecting: an invoice is not credited until both commitments witness
// the payment.
func IncomingPaymentsSummary(
	state *enforcement.EnforcementState,
	newHolderTx, newCounterpartyTx *enforcement.CommitmentInfo2) Summary {

	holderTx := pick(newHolderTx, state.CurrentHolderCommitInfo)
	cpTx := pick(newCounterpartyTx, state.CurrentCounterpartyCommitInfo)

	var holderReceived, cpOffered []enforcement.HTLCInfo2
	if holderTx != nil {
		holderReceived = holderTx.ReceivedHTLCs
	}
	if cpTx != nil {
		cpOffered = cpTx.OfferedHTLCs
	}

	holderSummary := summarize(holderReceived)
	cpSummary := summarize(cpOffered)

	out := make(Summary, len(holderSummary))
	for hash, hv := range holderSummary {
		cv, ok := cpSummary[hash]
		if !ok {
			continue
		}
		if cv < hv {
			out[hash] = cv
		} else {
			out[hash] = hv
		}
	}
	return out
}

func pick(new_, current *enforcement.CommitmentInfo2) *enforcement.CommitmentInfo2 {
	if new_ != nil {
		return new_
	}
	return current
}

// BalanceDelta is the holder's claimable balance before and after a
// proposed new commitment transaction, in satoshi.
type BalanceDelta struct {
	Before uint64
	After  uint64
}

// ClaimableBalances computes the holder's claimable balance before and
// after applying exactly one of newHolderTx/newCounterpartyTx. Each balance
// is the lower of the holder's and counterparty's view, per §4.6.
func ClaimableBalances(
	state *enforcement.EnforcementState,
	preimages PreimageMap,
	newHolderTx, newCounterpartyTx *enforcement.CommitmentInfo2,
	_ *chansetup.ChannelSetup) BalanceDelta {

	if (newHolderTx == nil) == (newCounterpartyTx == nil) {
		panic("ClaimableBalances requires exactly one new commitment")
	}

	curHolderBal, haveHolder := claimFromHolderTx(state.CurrentHolderCommitInfo, preimages)
	curCpBal, haveCp := claimFromCounterpartyTx(state.CurrentCounterpartyCommitInfo, preimages)
	curBal, haveCur := minOpt(curHolderBal, haveHolder, curCpBal, haveCp)
	if !haveCur {
		curBal = state.InitialHolderValue
	}

	newHolderInfo := pick(newHolderTx, state.CurrentHolderCommitInfo)
	newCpInfo := pick(newCounterpartyTx, state.CurrentCounterpartyCommitInfo)
	newHolderBal, haveNewHolder := claimFromHolderTx(newHolderInfo, preimages)
	newCpBal, haveNewCp := claimFromCounterpartyTx(newCpInfo, preimages)
	newBal, ok := minOpt(newHolderBal, haveNewHolder, newCpBal, haveNewCp)
	if !ok {
		panic("ClaimableBalances: no new commitment info available")
	}

	return BalanceDelta{Before: curBal, After: newBal}
}

// claimFromHolderTx is the holder's claimable balance as seen from the
// holder's own commitment transaction: the holder's direct balance plus any
// HTLC the holder received and already knows the preimage for.
func claimFromHolderTx(info *enforcement.CommitmentInfo2, preimages PreimageMap) (uint64, bool) {
	if info == nil {
		return 0, false
	}
	bal := info.ToBroadcasterValueSat
	for _, h := range info.ReceivedHTLCs {
		if preimages != nil {
			if _, known := preimages.Preimage(h.PaymentHash); known {
				bal += h.ValueSat
			}
		}
	}
	return bal, true
}

// claimFromCounterpartyTx is the mirrored calculation from the
// counterparty's commitment transaction: the holder is the countersigner
// there, and any HTLC the counterparty offered (i.e. the holder received)
// with a known preimage is claimable too.
func claimFromCounterpartyTx(info *enforcement.CommitmentInfo2, preimages PreimageMap) (uint64, bool) {
	if info == nil {
		return 0, false
	}
	bal := info.ToCountersignerValueSat
	for _, h := range info.OfferedHTLCs {
		if preimages != nil {
			if _, known := preimages.Preimage(h.PaymentHash); known {
				bal += h.ValueSat
			}
		}
	}
	return bal, true
}

// minOpt returns the lower of two optional values. If neither is present,
// the result is (0, false); if only one is present, it is returned as-is.
func minOpt(a uint64, haveA bool, b uint64, haveB bool) (uint64, bool) {
	switch {
	case haveA && haveB:
		if a < b {
			return a, true
		}
		return b, true
	case haveA:
		return a, true
	case haveB:
		return b, true
	default:
		return 0, false
	}
}
