// Package enforcement implements the per-channel commitment-number state
// machine (§4.5) and the commitment/HTLC data model (§3) that the policy
// validator advances and consults.
package enforcement

import "github.com/btcsuite/btcd/btcec/v2"

// PaymentHash identifies an HTLC's preimage condition.
type PaymentHash [32]byte

// HTLCInfo2 is the canonical description of a single HTLC output.
type HTLCInfo2 struct {
	PaymentHash PaymentHash
	ValueSat    uint64
	CltvExpiry  uint32
}

// CommitmentKeys bundles the per-commitment derived keys used to build a
// commitment transaction's outputs.
type CommitmentKeys struct {
	Revocation     *btcec.PublicKey
	DelayedPayment *btcec.PublicKey
	Htlc           *btcec.PublicKey
}

// CommitmentInfo2 is the canonical, semantic description of a commitment
// transaction, as produced by the transaction decomposer (C3) and consumed
// by the policy validator and payment tracker.
type CommitmentInfo2 struct {
	ToBroadcasterValueSat   uint64
	ToCountersignerValueSat uint64
	FeeratePerKw            uint32

	// AnchorValueSat is the combined value of every anchor output on the
	// commitment transaction (zero for CommitmentTypeLegacy and
	// CommitmentTypeStaticRemoteKey channels, which have none).
	AnchorValueSat uint64

	OfferedHTLCs  []HTLCInfo2
	ReceivedHTLCs []HTLCInfo2

	Keys CommitmentKeys
}

// TotalHTLCValueSat sums the value of every offered and received HTLC.
func (c *CommitmentInfo2) TotalHTLCValueSat() uint64 {
	var total uint64
	for _, h := range c.OfferedHTLCs {
		total += h.ValueSat
	}
	for _, h := range c.ReceivedHTLCs {
		total += h.ValueSat
	}
	return total
}

// clone returns a deep-enough copy for safe storage across state
// transitions (the slices are not mutated in place afterward, but we still
// copy them defensively since the caller may reuse its buffers).
func (c *CommitmentInfo2) clone() *CommitmentInfo2 {
	if c == nil {
		return nil
	}
	cp := *c
	cp.OfferedHTLCs = append([]HTLCInfo2(nil), c.OfferedHTLCs...)
	cp.ReceivedHTLCs = append([]HTLCInfo2(nil), c.ReceivedHTLCs...)
	return &cp
}
