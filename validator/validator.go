// Package validator implements the Policy Validator (C5): the Validator
// interface the channel container drives, and the production policy that
// enforces every bound in policy.Config against the lower-level
// enforcement, payments, txdecode, wallet and allowlist packages.
//
// This package depends on enforcement (for EnforcementState/CommitmentInfo2)
// while enforcement itself depends only on policy for its error vocabulary;
// keeping Config and the error types in the separate policy package is what
// avoids a validator<->enforcement import cycle.
package validator

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/allowlist"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/payments"
	"github.com/lightningnetwork/remotesigner/wallet"
)

// Validator is the Policy Validator (C5) surface the channel container
// drives. Every method either returns nil (the request is safe to sign) or
// a non-nil *policy.Error. Implementations must leave state untouched on any
// failure path (P7). ValidateCounterpartyCommitmentTx,
// ValidateHolderCommitmentTx, ValidateCounterpartyRevocation and
// ValidateMutualCloseTx are the exceptions to the otherwise
// side-effect-free rule: on success each calls through to the enforcement
// package's own setters itself (the commitment-number setters,
// SetNextCounterpartyRevokeNum and MarkMutualCloseSigned respectively),
// rather than leaving that to a separate caller. Every other method only
// inspects a channel's ChannelSetup/EnforcementState/ChainState.
//
// Grounded on validator.rs's Validator trait in the original implementation;
// adapted to Go's single-error-return idiom in place of the original's
// Result<(), Status>.
type Validator interface {
	// ValidateReadyChannel checks a freshly negotiated ChannelSetup against
	// configured bounds before the channel is allowed to transition to
	// ready (§4.1).
	ValidateReadyChannel(setup *chansetup.ChannelSetup) error

	// ValidateOnchainTx checks a funding (or other on-chain) transaction's
	// outputs against the allowlist, every channel's funding script, and
	// the wallet-derivable change path claimed for each output via
	// opaths[i] (nil where an output is not claimed as a wallet output),
	// plus the transaction's aggregate fee (§4.2).
	ValidateOnchainTx(
		channels []*chansetup.ChannelSetup, tx *wire.MsgTx, inputValueSat int64,
		opaths []*wallet.KeyOrigin, wv *wallet.View, al *allowlist.List) error

	// ValidateCounterpartyCommitmentTx runs every step of §4.4 against a
	// proposed counterparty commitment: a simulated state-progression
	// check against the real proposed per-commitment point, the
	// commitment fee bound, each HTLC's CLTV bounds, the balance-
	// conservation check, and finally the actual state commit.
	ValidateCounterpartyCommitmentTx(
		setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
		commitNum uint64, point *btcec.PublicKey, cstate *chansetup.ChainState,
		info *enforcement.CommitmentInfo2, preimages payments.PreimageMap) error

	// ValidateHolderCommitmentTx is the symmetric check run before the
	// signer co-signs a holder commitment transaction.
	ValidateHolderCommitmentTx(
		setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
		commitNum uint64, cstate *chansetup.ChainState,
		info *enforcement.CommitmentInfo2, preimages payments.PreimageMap) error

	// ValidateCounterpartyRevocation derives the per-commitment point
	// expected for revokeNum from state itself, checks that revealedSecret
	// derives it, and on success advances next_counterparty_revoke_num.
	ValidateCounterpartyRevocation(
		state *enforcement.EnforcementState, revokeNum uint64, revealedSecret []byte) error

	// ValidateMutualCloseTx checks a proposed mutual close transaction's
	// output destinations against the negotiated shutdown scripts (or,
	// when no holder shutdown script was negotiated, the wallet/allowlist),
	// its fee, and its split against
	// the channel's current claimable balances (§4.6), marking
	// mutual_close_signed on success.
	ValidateMutualCloseTx(
		setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
		tx *wire.MsgTx, toHolderValueSat, toCounterpartyValueSat uint64,
		wv *wallet.View, holderShutdownPath *wallet.KeyOrigin, al *allowlist.List) error

	// ValidateDelayedSweep checks the destination of a sweep of the
	// holder's to_local output of a broadcast holder commitment (§4.3).
	ValidateDelayedSweep(
		tx *wire.MsgTx, inputValueSat int64, isWalletDestination bool,
		isAllowlistedDestination bool) error

	// ValidateCounterpartyHTLCSweep checks a sweep of an HTLC output paid
	// out by a broadcast counterparty commitment.
	ValidateCounterpartyHTLCSweep(
		tx *wire.MsgTx, inputValueSat int64, isWalletDestination bool,
		isAllowlistedDestination bool) error

	// ValidateJusticeSweep checks a justice transaction sweeping a
	// revoked commitment's output after the counterparty breached. Unlike
	// a plain delayed sweep, this additionally requires that the
	// referenced commitment (commitNum) has actually had its revocation
	// secret received.
	ValidateJusticeSweep(
		state *enforcement.EnforcementState, commitNum uint64,
		tx *wire.MsgTx, inputValueSat int64, isWalletDestination bool,
		isAllowlistedDestination bool) error

	// ValidatePaymentBalance checks that a proposed new commitment leaves
	// the holder no worse off than its invoiced/routed obligations allow
	// (§4.4's balance-conservation step).
	ValidatePaymentBalance(incomingMsat, outgoingMsat uint64, invoicedAmountMsat *uint64) error
}
