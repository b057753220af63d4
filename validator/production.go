package validator

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/allowlist"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/payments"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/lightningnetwork/remotesigner/wallet"
)

// ProductionPolicy is the default, fully-enforcing Validator implementation,
// and the only one in this module.
type ProductionPolicy struct {
	Config policy.Config
}

// NewProductionPolicy builds a ProductionPolicy from cfg.
func NewProductionPolicy(cfg policy.Config) *ProductionPolicy {
	return &ProductionPolicy{Config: cfg}
}

var _ Validator = (*ProductionPolicy)(nil)

const (
	opValidateReadyChannel       = "validate_ready_channel"
	opValidateOnchainTx          = "validate_onchain_tx"
	opValidateCounterpartyCommit = "validate_counterparty_commitment_tx"
	opValidateHolderCommit       = "validate_holder_commitment_tx"
	opValidateRevocation         = "validate_counterparty_revocation"
	opValidateMutualClose        = "validate_mutual_close_tx"
	opValidatePaymentBalance     = "validate_payment_balance"

	tagDelayNotInRange        = "policy-channel-safe-type"
	tagChannelValueNotInRange = "policy-channel-value-limit"
	tagRevocationMismatch     = "policy-commitment-revoked-not-matching"
	tagMutualCloseBalance     = "policy-mutual-close-value-constraint"
	tagMutualCloseDestination = "policy-mutual-close-destination-unknown"
	tagPaymentBalance         = "policy-commitment-payment-settled-with-fee"
	tagCltvExpiryTooLarge     = "policy-commitment-htlc-cltv-range"
	tagCltvDeltaOutOfRange    = "policy-commitment-htlc-cltv-delta-range"
	tagCommitmentBalanceDrop  = "policy-commitment-payment-balance-conservation"
	tagJusticeRevocationMissing = "policy-justice-sweep-not-revoked"
)

// ValidateReadyChannel checks the negotiated to_self_delay and channel value
// against configured bounds (§4.1).
func (p *ProductionPolicy) ValidateReadyChannel(setup *chansetup.ChannelSetup) error {
	if setup.HolderToSelfDelay < p.Config.MinDelay || setup.HolderToSelfDelay > p.Config.MaxDelay {
		return policy.Policyf(opValidateReadyChannel, tagDelayNotInRange,
			"holder_to_self_delay %d out of range [%d, %d]",
			setup.HolderToSelfDelay, p.Config.MinDelay, p.Config.MaxDelay)
	}
	if setup.CounterpartyToSelfDelay < p.Config.MinDelay || setup.CounterpartyToSelfDelay > p.Config.MaxDelay {
		return policy.Policyf(opValidateReadyChannel, tagDelayNotInRange,
			"counterparty_to_self_delay %d out of range [%d, %d]",
			setup.CounterpartyToSelfDelay, p.Config.MinDelay, p.Config.MaxDelay)
	}
	if setup.ChannelValueSat < p.Config.DustLimitSat || setup.ChannelValueSat > p.Config.ChannelValueMaxSat {
		return policy.Policyf(opValidateReadyChannel, tagChannelValueNotInRange,
			"channel_value_sat %d out of range [%d, %d]",
			setup.ChannelValueSat, p.Config.DustLimitSat, p.Config.ChannelValueMaxSat)
	}
	return nil
}

// ValidateOnchainTx checks a funding (or other on-chain) transaction's
// destinations and fee. Every output must either pay into one of channels'
// 2-of-2 funding scripts, an allowlisted address, or a wallet-derivable
// change path named by the matching entry of opaths.
func (p *ProductionPolicy) ValidateOnchainTx(
	channels []*chansetup.ChannelSetup, tx *wire.MsgTx, inputValueSat int64,
	opaths []*wallet.KeyOrigin, wv *wallet.View, al *allowlist.List) error {

	if len(opaths) != len(tx.TxOut) {
		return policy.TransactionFormatf(opValidateOnchainTx,
			"opaths count %d does not match output count %d", len(opaths), len(tx.TxOut))
	}

	fundingScripts := make([][]byte, 0, len(channels))
	seen := make(map[wire.OutPoint]struct{}, len(channels))
	for _, ch := range channels {
		if _, dup := seen[ch.FundingOutpoint]; dup {
			return policy.Policyf(opValidateOnchainTx, policy.TagOnchainDestination,
				"duplicate funding outpoint %v across channels", ch.FundingOutpoint)
		}
		seen[ch.FundingOutpoint] = struct{}{}
		script, err := ch.FundingScript()
		if err != nil {
			return policy.TransactionFormatf(opValidateOnchainTx, "funding script: %v", err)
		}
		fundingScripts = append(fundingScripts, script)
	}

	var outputValue int64
	for i, out := range tx.TxOut {
		outputValue += out.Value

		if matchesAny(out.PkScript, fundingScripts) {
			continue
		}
		if al != nil && al.Contains(out.PkScript) {
			continue
		}
		if opaths[i] != nil && wv != nil {
			ok, err := wv.IsHolderDestination(out.PkScript, *opaths[i])
			if err != nil {
				return policy.TransactionFormatf(opValidateOnchainTx,
					"deriving wallet destination for output %d: %v", i, err)
			}
			if ok {
				continue
			}
		}
		return policy.Policyf(opValidateOnchainTx, policy.TagOnchainDestination,
			"output %d pays to a destination that is not a known funding script, "+
				"an allowlisted address, or a wallet change path", i)
	}

	if outputValue > inputValueSat {
		return policy.Policyf(opValidateOnchainTx, policy.TagOnchainFeeRange,
			"onchain tx outputs %d exceed inputs %d", outputValue, inputValueSat)
	}
	fee := inputValueSat - outputValue
	if fee < int64(p.Config.OnchainFeeMinSat) {
		return policy.Policyf(opValidateOnchainTx, policy.TagOnchainFeeRange,
			"fee below minimum: %d < %d", fee, p.Config.OnchainFeeMinSat)
	}
	if fee > int64(p.Config.OnchainFeeMaxSat) {
		return policy.Policyf(opValidateOnchainTx, policy.TagOnchainFeeRange,
			"fee above maximum: %d > %d", fee, p.Config.OnchainFeeMaxSat)
	}
	return nil
}

func matchesAny(script []byte, candidates [][]byte) bool {
	for _, c := range candidates {
		if bytesEqual(script, c) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValidateCounterpartyCommitmentTx runs all five steps of §4.4 against a
// proposed counterparty commitment transaction: the simulated state
// progression (against the real proposed per-commitment point), the
// commitment fee bound, HTLC CLTV bounds, balance conservation, and finally
// the actual state commit.
func (p *ProductionPolicy) ValidateCounterpartyCommitmentTx(
	setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
	commitNum uint64, point *btcec.PublicKey, cstate *chansetup.ChainState,
	info *enforcement.CommitmentInfo2, preimages payments.PreimageMap) error {

	if state.MutualCloseSigned {
		return policy.Policyf(opValidateCounterpartyCommit, enforcement.TagMutualCloseAlready,
			"mutual close already signed")
	}

	// Step 1: simulated state-transition check against the real proposed
	// point, without mutating state.
	if err := state.CheckNextCounterpartyCommitNum(
		commitNum, point, p.Config.StrictRetryInfo, info); err != nil {
		return err
	}

	// Step 2: commitment fee bound.
	if err := p.validateCommitmentFee(opValidateCounterpartyCommit, setup, info); err != nil {
		return err
	}

	// Step 3: CLTV-delta checks against chain height, plus the absolute
	// ceiling.
	if err := p.validateHTLCBounds(opValidateCounterpartyCommit, cstate, info); err != nil {
		return err
	}

	// Step 4: payment/balance-delta check.
	if p.Config.EnforceBalance {
		delta := payments.ClaimableBalances(state, preimages, nil, info, setup)
		if delta.Before > delta.After+p.Config.EpsilonSat {
			return policy.Policyf(opValidateCounterpartyCommit, tagCommitmentBalanceDrop,
				"holder claimable balance would drop from %d to %d", delta.Before, delta.After)
		}
	}

	// Step 5: commit.
	return state.SetNextCounterpartyCommitNum(commitNum, point, p.Config.StrictRetryInfo, info)
}

// ValidateHolderCommitmentTx is the symmetric check run before the signer
// co-signs a holder commitment transaction.
func (p *ProductionPolicy) ValidateHolderCommitmentTx(
	setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
	commitNum uint64, cstate *chansetup.ChainState,
	info *enforcement.CommitmentInfo2, preimages payments.PreimageMap) error {

	if state.MutualCloseSigned {
		return policy.Policyf(opValidateHolderCommit, enforcement.TagMutualCloseAlready,
			"mutual close already signed")
	}

	if err := p.validateCommitmentFee(opValidateHolderCommit, setup, info); err != nil {
		return err
	}
	if err := p.validateHTLCBounds(opValidateHolderCommit, cstate, info); err != nil {
		return err
	}
	if p.Config.EnforceBalance {
		delta := payments.ClaimableBalances(state, preimages, info, nil, setup)
		if delta.Before > delta.After+p.Config.EpsilonSat {
			return policy.Policyf(opValidateHolderCommit, tagCommitmentBalanceDrop,
				"holder claimable balance would drop from %d to %d", delta.Before, delta.After)
		}
	}

	return state.SetNextHolderCommitNum(commitNum, info)
}

// validateCommitmentFee checks the fee implied by a commitment transaction,
// i.e. the funding value left over after every output (to_broadcaster,
// to_countersigner, anchors, and every HTLC) is accounted for.
func (p *ProductionPolicy) validateCommitmentFee(
	op string, setup *chansetup.ChannelSetup, info *enforcement.CommitmentInfo2) error {

	spent := info.ToBroadcasterValueSat + info.ToCountersignerValueSat +
		info.AnchorValueSat + info.TotalHTLCValueSat()
	channelValue := uint64(setup.ChannelValueSat)
	if spent > channelValue {
		return policy.Policyf(op, policy.TagCommitmentFeeRange,
			"commitment outputs %d exceed channel value %d", spent, channelValue)
	}
	fee := channelValue - spent
	if fee < uint64(p.Config.CommitmentFeeMinSat) {
		return policy.Policyf(op, policy.TagCommitmentFeeRange,
			"commitment fee below minimum: %d < %d", fee, p.Config.CommitmentFeeMinSat)
	}
	if fee > uint64(p.Config.CommitmentFeeMaxSat) {
		return policy.Policyf(op, policy.TagCommitmentFeeRange,
			"commitment fee above maximum: %d > %d", fee, p.Config.CommitmentFeeMaxSat)
	}
	return nil
}

func (p *ProductionPolicy) validateHTLCBounds(
	op string, cstate *chansetup.ChainState, info *enforcement.CommitmentInfo2) error {

	check := func(h enforcement.HTLCInfo2) error {
		if h.CltvExpiry > p.Config.CltvExpiryMax {
			return policy.Policyf(op, tagCltvExpiryTooLarge,
				"htlc cltv_expiry %d exceeds maximum %d", h.CltvExpiry, p.Config.CltvExpiryMax)
		}
		if cstate != nil {
			delta := cltvDelta(h.CltvExpiry, cstate.CurrentHeight)
			if delta < p.Config.CltvDeltaMin || delta > p.Config.CltvDeltaMax {
				return policy.Policyf(op, tagCltvDeltaOutOfRange,
					"htlc cltv_expiry %d is %d blocks out from height %d, outside [%d, %d]",
					h.CltvExpiry, delta, cstate.CurrentHeight, p.Config.CltvDeltaMin, p.Config.CltvDeltaMax)
			}
		}
		return nil
	}

	for _, h := range info.OfferedHTLCs {
		if err := check(h); err != nil {
			return err
		}
	}
	for _, h := range info.ReceivedHTLCs {
		if err := check(h); err != nil {
			return err
		}
	}
	return nil
}

// cltvDelta is the signed distance from the current height to expiry,
// clamped to zero so an already-expired HTLC reads as "zero blocks out"
// rather than wrapping through a uint32 underflow.
func cltvDelta(expiry, currentHeight uint32) uint32 {
	if expiry <= currentHeight {
		return 0
	}
	return expiry - currentHeight
}

// ValidateCounterpartyRevocation derives the per-commitment point expected
// for revokeNum from state itself (rather than trusting a caller-supplied
// point), checks that revealedSecret derives it, and on success advances
// next_counterparty_revoke_num.
func (p *ProductionPolicy) ValidateCounterpartyRevocation(
	state *enforcement.EnforcementState, revokeNum uint64, revealedSecret []byte) error {

	expectedPoint, err := state.GetPreviousCounterpartyPoint(revokeNum)
	if err != nil {
		return err
	}
	// GetPreviousCounterpartyCommitInfo is called only to require that
	// commitment info is on file for revokeNum; the returned info is
	// discarded and plays no part in validating the secret.
	if _, err := state.GetPreviousCounterpartyCommitInfo(revokeNum); err != nil {
		return err
	}

	_, derived := btcec.PrivKeyFromBytes(revealedSecret)
	if !derived.IsEqual(expectedPoint) {
		return policy.Policyf(opValidateRevocation, tagRevocationMismatch,
			"revealed secret does not derive the point on file for commit_num %d", revokeNum)
	}

	return state.SetNextCounterpartyRevokeNum(revokeNum)
}

// ValidateMutualCloseTx checks the proposed mutual close's output
// destinations, fee, and the epsilon-bound floor on each side (§4.6),
// marking mutual_close_signed on success.
func (p *ProductionPolicy) ValidateMutualCloseTx(
	setup *chansetup.ChannelSetup, state *enforcement.EnforcementState,
	tx *wire.MsgTx, toHolderValueSat, toCounterpartyValueSat uint64,
	wv *wallet.View, holderShutdownPath *wallet.KeyOrigin, al *allowlist.List) error {

	if state.MutualCloseSigned {
		return policy.Policyf(opValidateMutualClose, enforcement.TagMutualCloseAlready,
			"mutual close already signed")
	}

	if err := p.validateMutualCloseDestinations(setup, tx, wv, holderShutdownPath, al); err != nil {
		return err
	}

	var outputValue int64
	for _, out := range tx.TxOut {
		outputValue += out.Value
	}
	channelValue := int64(setup.ChannelValueSat)
	if outputValue > channelValue {
		return policy.Policyf(opValidateMutualClose, policy.TagOnchainFeeRange,
			"mutual close outputs %d exceed channel value %d", outputValue, channelValue)
	}
	fee := channelValue - outputValue
	if fee < int64(p.Config.OnchainFeeMinSat) {
		return policy.Policyf(opValidateMutualClose, policy.TagOnchainFeeRange,
			"mutual close fee below minimum: %d < %d", fee, p.Config.OnchainFeeMinSat)
	}
	if fee > int64(p.Config.OnchainFeeMaxSat) {
		return policy.Policyf(opValidateMutualClose, policy.TagOnchainFeeRange,
			"mutual close fee above maximum: %d > %d", fee, p.Config.OnchainFeeMaxSat)
	}

	if minHolder, ok := state.MinimumToHolderValue(p.Config.EpsilonSat); ok {
		if toHolderValueSat+p.Config.EpsilonSat < minHolder {
			log.Warnf("rejecting mutual close: to_holder_value_sat %d below floor %d",
				toHolderValueSat, minHolder)
			return policy.Policyf(opValidateMutualClose, tagMutualCloseBalance,
				"to_holder_value_sat %d below floor %d", toHolderValueSat, minHolder)
		}
	}
	if minCp, ok := state.MinimumToCounterpartyValue(p.Config.EpsilonSat); ok {
		if toCounterpartyValueSat+p.Config.EpsilonSat < minCp {
			return policy.Policyf(opValidateMutualClose, tagMutualCloseBalance,
				"to_counterparty_value_sat %d below floor %d", toCounterpartyValueSat, minCp)
		}
	}

	return state.MarkMutualCloseSigned()
}

// validateMutualCloseDestinations checks every output of tx pays either to
// one of the negotiated shutdown scripts or, only when no holder shutdown
// script was negotiated, to the holder's wallet or the allowlist. While a
// holder shutdown script is set, an output matching neither script is
// rejected even if it is allowlisted.
func (p *ProductionPolicy) validateMutualCloseDestinations(
	setup *chansetup.ChannelSetup, tx *wire.MsgTx,
	wv *wallet.View, holderShutdownPath *wallet.KeyOrigin, al *allowlist.List) error {

	for i, out := range tx.TxOut {
		if len(setup.HolderShutdownScript) > 0 && bytesEqual(out.PkScript, setup.HolderShutdownScript) {
			continue
		}
		if len(setup.CounterpartyShutdownScript) > 0 &&
			bytesEqual(out.PkScript, setup.CounterpartyShutdownScript) {
			continue
		}
		if len(setup.HolderShutdownScript) == 0 {
			if holderShutdownPath != nil && wv != nil {
				ok, err := wv.IsHolderDestination(out.PkScript, *holderShutdownPath)
				if err != nil {
					return policy.TransactionFormatf(opValidateMutualClose,
						"deriving holder shutdown destination for output %d: %v", i, err)
				}
				if ok {
					continue
				}
			}
			if al != nil && al.Contains(out.PkScript) {
				continue
			}
		}
		return policy.Policyf(opValidateMutualClose, tagMutualCloseDestination,
			"output %d pays to a destination that is neither side's shutdown script, "+
				"the holder's wallet, nor the allowlist", i)
	}
	return nil
}

func (p *ProductionPolicy) validateSweepDestination(
	op string, isWalletDestination, isAllowlistedDestination bool) error {

	if !isWalletDestination && !isAllowlistedDestination {
		return policy.Policyf(op, policy.TagSweepDestinationAllowlisted,
			"destination is not in wallet or allowlist")
	}
	return nil
}

// ValidateDelayedSweep checks the destination of a delayed (to_local) sweep.
// Format and fee bounds are checked separately by the txdecode package; this
// method covers the destination-allowlist rule.
func (p *ProductionPolicy) ValidateDelayedSweep(
	tx *wire.MsgTx, inputValueSat int64, isWalletDestination, isAllowlistedDestination bool) error {

	return p.validateSweepDestination(
		"validate_delayed_sweep", isWalletDestination, isAllowlistedDestination)
}

// ValidateCounterpartyHTLCSweep is the mirror check for a counterparty-HTLC
// sweep transaction's destination.
func (p *ProductionPolicy) ValidateCounterpartyHTLCSweep(
	tx *wire.MsgTx, inputValueSat int64, isWalletDestination, isAllowlistedDestination bool) error {

	return p.validateSweepDestination(
		"validate_counterparty_htlc_sweep", isWalletDestination, isAllowlistedDestination)
}

// ValidateJusticeSweep is the mirror check for a justice transaction's
// destination, additionally requiring that the commitment being swept
// (commitNum) has actually been revoked: a delayed sweep of an
// un-breached commitment must never be accepted as a justice sweep.
func (p *ProductionPolicy) ValidateJusticeSweep(
	state *enforcement.EnforcementState, commitNum uint64,
	tx *wire.MsgTx, inputValueSat int64, isWalletDestination, isAllowlistedDestination bool) error {

	if commitNum+1 > state.NextCounterpartyRevokeNum {
		return policy.Policyf("validate_justice_sweep", tagJusticeRevocationMissing,
			"commit_num %d has not had its revocation secret received, next_revoke is %d",
			commitNum, state.NextCounterpartyRevokeNum)
	}

	return p.validateSweepDestination(
		"validate_justice_sweep", isWalletDestination, isAllowlistedDestination)
}

// ValidatePaymentBalance delegates to payments.ValidateBalance, converting
// its boolean result into the closed error surface.
func (p *ProductionPolicy) ValidatePaymentBalance(
	incomingMsat, outgoingMsat uint64, invoicedAmountMsat *uint64) error {

	if !payments.ValidateBalance(incomingMsat, outgoingMsat, invoicedAmountMsat, p.Config.RoutingFeeMaxMsat) {
		return policy.Policyf(opValidatePaymentBalance, tagPaymentBalance,
			"incoming %d insufficient for outgoing %d", incomingMsat, outgoingMsat)
	}
	return nil
}
