package policy

import "github.com/btcsuite/btcd/btcutil"

// Config enumerates every tunable bound the production validator checks a
// signing request against. Each field corresponds to an "Option" row of
// spec.md §6.
type Config struct {
	// EpsilonSat bounds the allowed divergence between the holder and
	// counterparty views of the same balance (§4.5 minimum_to_holder_value).
	EpsilonSat uint64

	// MinDelay and MaxDelay bound to_self_delay, both holder and
	// counterparty.
	MinDelay uint16
	MaxDelay uint16

	// DustLimitSat and ChannelValueMaxSat bound channel_value_sat.
	DustLimitSat       btcutil.Amount
	ChannelValueMaxSat btcutil.Amount

	// OnchainFeeMinSat/OnchainFeeMaxSat bound the fee of a funding or
	// other on-chain transaction.
	OnchainFeeMinSat btcutil.Amount
	OnchainFeeMaxSat btcutil.Amount

	// CommitmentFeeMinSat/CommitmentFeeMaxSat bound the fee implied by a
	// commitment transaction.
	CommitmentFeeMinSat btcutil.Amount
	CommitmentFeeMaxSat btcutil.Amount

	// SweepFeeMinSat/SweepFeeMaxSat bound the fee of a sweep transaction
	// (delayed, counterparty-HTLC, justice).
	SweepFeeMinSat btcutil.Amount
	SweepFeeMaxSat btcutil.Amount

	// CltvDeltaMin/CltvDeltaMax bound an HTLC's CLTV expiry relative to
	// the current chain height.
	CltvDeltaMin uint32
	CltvDeltaMax uint32

	// CltvExpiryMax is the absolute ceiling on any HTLC CLTV expiry,
	// independent of current height (CommitmentInfo2's invariant in §3).
	CltvExpiryMax uint32

	// RoutingFeeMaxMsat bounds the fee an originated payment may pay
	// above its invoiced amount.
	RoutingFeeMaxMsat uint64

	// EnforceBalance gates the §4.5 balance-conservation checks.
	EnforceBalance bool

	// StrictRetryInfo additionally requires structural equality of the
	// supplied CommitmentInfo2 on a counterparty-commitment retry, not
	// only point equality. See DESIGN.md's "policy-v2-commitment-retry-same"
	// decision. Off by default.
	StrictRetryInfo bool
}

// DefaultConfig returns reasonable bounds for a mainnet-style deployment.
// Callers are expected to override these from their own configuration
// surface; these values exist mainly to keep tests and the demo entrypoint
// self-contained.
func DefaultConfig() Config {
	return Config{
		EpsilonSat:          10,
		MinDelay:            4,
		MaxDelay:            2016,
		DustLimitSat:        546,
		ChannelValueMaxSat:  16_777_215,
		OnchainFeeMinSat:    100,
		OnchainFeeMaxSat:    200_000,
		CommitmentFeeMinSat: 100,
		CommitmentFeeMaxSat: 200_000,
		SweepFeeMinSat:      100,
		SweepFeeMaxSat:      46_000,
		CltvDeltaMin:        18,
		CltvDeltaMax:        2016,
		CltvExpiryMax:       500_000_000,
		RoutingFeeMaxMsat:   10_000_000,
		EnforceBalance:      true,
		StrictRetryInfo:     false,
	}
}
