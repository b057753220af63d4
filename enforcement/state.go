package enforcement

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/remotesigner/policy"
)

// Stable policy-rule tags for every transition failure in this package. See
// spec.md §7: each policy rejection carries a stable tag so that external
// audits can correlate rejections with rule text.
const (
	TagCommitZero             = "policy-commitment-zero"
	TagCommitTooSmall         = "policy-commitment-too-small"
	TagCommitTooLarge         = "policy-commitment-too-large"
	TagCommitRetrySame        = "policy-v2-commitment-retry-same"
	TagCommitInvalidProgress  = "policy-commitment-invalid-progression"
	TagRevokeZero             = "policy-revoke-zero"
	TagRevokeOutOfRange       = "policy-revoke-out-of-range"
	TagRevokeInvalidProgress  = "policy-revoke-invalid-progression"
	TagHolderCommitInvalid    = "policy-holder-commitment-invalid-progression"
	TagPointOutOfRange        = "policy-point-out-of-range"
	TagMutualCloseAlready     = "policy-mutual-close-already-signed"
)

// op is the operation name reported in every *policy.Error raised from this
// file, matching the teacher's convention of naming the failing function in
// error text (see validator.rs's policy_err! call sites).
const op = "enforcement"

// EnforcementState is the mutable, per-channel state machine of §3/§4.5. All
// mutation happens through the methods below, each of which is
// side-effect-free on failure (P7): no field is written unless every guard
// passes.
type EnforcementState struct {
	NextHolderCommitNum        uint64
	NextCounterpartyCommitNum  uint64
	NextCounterpartyRevokeNum  uint64

	CurrentCounterpartyPoint  *btcec.PublicKey // for NextCounterpartyCommitNum - 1
	PreviousCounterpartyPoint *btcec.PublicKey // for NextCounterpartyCommitNum - 2

	CurrentHolderCommitInfo        *CommitmentInfo2
	CurrentCounterpartyCommitInfo  *CommitmentInfo2
	PreviousCounterpartyCommitInfo *CommitmentInfo2

	MutualCloseSigned bool

	// InitialHolderValue is the lowest value we expect the initial
	// commitment to send to us, in satoshi.
	InitialHolderValue uint64
}

// New creates enforcement state for a freshly opened channel.
func New(initialHolderValue uint64) *EnforcementState {
	return &EnforcementState{InitialHolderValue: initialHolderValue}
}

// Clone returns a copy of the state with its commitment infos deep-copied
// (the per-commitment points are shared), so that later mutation of the
// receiver does not show through the copy.
func (s *EnforcementState) Clone() *EnforcementState {
	cp := *s
	cp.CurrentHolderCommitInfo = s.CurrentHolderCommitInfo.clone()
	cp.CurrentCounterpartyCommitInfo = s.CurrentCounterpartyCommitInfo.clone()
	cp.PreviousCounterpartyCommitInfo = s.PreviousCounterpartyCommitInfo.clone()
	return &cp
}

// MinimumToHolderValue returns the lower of the holder's and counterparty's
// view of the holder's balance, or (0, false) if either view is missing or
// the two views disagree by more than epsilonSat (§4.5).
func (s *EnforcementState) MinimumToHolderValue(epsilonSat uint64) (uint64, bool) {
	if s.CurrentHolderCommitInfo == nil || s.CurrentCounterpartyCommitInfo == nil {
		return 0, false
	}
	h := s.CurrentHolderCommitInfo.ToBroadcasterValueSat
	c := s.CurrentCounterpartyCommitInfo.ToCountersignerValueSat
	return minWithinEpsilon(h, c, epsilonSat)
}

// MinimumToCounterpartyValue is the symmetric floor for the counterparty's
// balance, needed to bound the counterparty's share of a mutual close.
func (s *EnforcementState) MinimumToCounterpartyValue(epsilonSat uint64) (uint64, bool) {
	if s.CurrentHolderCommitInfo == nil || s.CurrentCounterpartyCommitInfo == nil {
		return 0, false
	}
	h := s.CurrentHolderCommitInfo.ToCountersignerValueSat
	c := s.CurrentCounterpartyCommitInfo.ToBroadcasterValueSat
	return minWithinEpsilon(h, c, epsilonSat)
}

func minWithinEpsilon(a, b, epsilon uint64) (uint64, bool) {
	var diff uint64
	if a > b {
		diff = a - b
	} else {
		diff = b - a
	}
	if diff > epsilon {
		return 0, false
	}
	if a < b {
		return a, true
	}
	return b, true
}

// counterpartyCommitPlan is the set of field writes that applying a
// SetNextCounterpartyCommitNum call would make, computed without mutating
// the receiver so it can be used both to validate-in-simulation (§4.4 step
// 1) and to actually commit (§4.4 step 5) from the same logic.
type counterpartyCommitPlan struct {
	retry bool
}

// planNextCounterpartyCommitNum validates a proposed
// (num, point, info) triple against the current state and returns the plan
// to apply, or a *policy.Error if the triple is invalid. It never mutates s.
func (s *EnforcementState) planNextCounterpartyCommitNum(
	num uint64, point *btcec.PublicKey, strictRetryInfo bool,
	info *CommitmentInfo2) (*counterpartyCommitPlan, error) {

	if num == 0 {
		return nil, policy.Policyf(op, TagCommitZero, "can't set next to 0")
	}

	// The initial commitment is special: it may advance even though
	// next_revoke is still 0.
	delta := uint64(2)
	if num == 1 {
		delta = 1
	}

	if num < s.NextCounterpartyRevokeNum+delta {
		return nil, policy.Policyf(op, TagCommitTooSmall,
			"%d too small relative to next_counterparty_revoke_num %d",
			num, s.NextCounterpartyRevokeNum)
	}
	if num > s.NextCounterpartyRevokeNum+2 {
		return nil, policy.Policyf(op, TagCommitTooLarge,
			"%d too large relative to next_counterparty_revoke_num %d",
			num, s.NextCounterpartyRevokeNum)
	}

	current := s.NextCounterpartyCommitNum
	switch {
	case num == current:
		// Retry: the point (and, if StrictRetryInfo is enabled, the
		// commitment info) must match exactly what was already
		// accepted.
		if s.CurrentCounterpartyPoint == nil {
			return nil, policy.Internalf(op, nil,
				"retry %d: current_counterparty_point not set", num)
		}
		if !s.CurrentCounterpartyPoint.IsEqual(point) {
			return nil, policy.Policyf(op, TagCommitRetrySame,
				"retry %d: point different than prior", num)
		}
		if strictRetryInfo && !commitInfoEqual(s.CurrentCounterpartyCommitInfo, info) {
			return nil, policy.Policyf(op, TagCommitRetrySame,
				"retry %d: commitment info different than prior", num)
		}
		return &counterpartyCommitPlan{retry: true}, nil

	case num == current+1:
		return &counterpartyCommitPlan{retry: false}, nil

	default:
		return nil, policy.Policyf(op, TagCommitInvalidProgress,
			"invalid progression: %d to %d", current, num)
	}
}

// CheckNextCounterpartyCommitNum reports whether
// SetNextCounterpartyCommitNum(num, point, info) would succeed, without
// mutating the receiver. Used by §4.4 step (1) "in simulation".
func (s *EnforcementState) CheckNextCounterpartyCommitNum(
	num uint64, point *btcec.PublicKey, strictRetryInfo bool,
	info *CommitmentInfo2) error {

	_, err := s.planNextCounterpartyCommitNum(num, point, strictRetryInfo, info)
	return err
}

// SetNextCounterpartyCommitNum advances (or retries) the counterparty
// commitment number per the table in spec.md §4.5.
func (s *EnforcementState) SetNextCounterpartyCommitNum(
	num uint64, point *btcec.PublicKey, strictRetryInfo bool,
	info *CommitmentInfo2) error {

	plan, err := s.planNextCounterpartyCommitNum(num, point, strictRetryInfo, info)
	if err != nil {
		return err
	}
	if !plan.retry {
		s.PreviousCounterpartyPoint = s.CurrentCounterpartyPoint
		s.PreviousCounterpartyCommitInfo = s.CurrentCounterpartyCommitInfo
		s.CurrentCounterpartyPoint = point
		s.CurrentCounterpartyCommitInfo = info.clone()
	}
	s.NextCounterpartyCommitNum = num
	log.Debugf("advanced next_counterparty_commit_num to %d (retry=%v)", num, plan.retry)
	return nil
}

// GetPreviousCounterpartyPoint returns the per-commitment point associated
// with commit_num, which must be one of the two most recently recorded
// counterparty points.
func (s *EnforcementState) GetPreviousCounterpartyPoint(num uint64) (*btcec.PublicKey, error) {
	var point *btcec.PublicKey
	switch {
	case num+1 == s.NextCounterpartyCommitNum:
		point = s.CurrentCounterpartyPoint
	case num+2 == s.NextCounterpartyCommitNum:
		point = s.PreviousCounterpartyPoint
	default:
		return nil, policy.Policyf(op, TagPointOutOfRange,
			"%d out of range, next is %d", num, s.NextCounterpartyCommitNum)
	}
	if point == nil {
		return nil, policy.Internalf(op, nil,
			"counterparty point for commit_num %d not set, next is %d",
			num, s.NextCounterpartyCommitNum)
	}
	return point, nil
}

// GetPreviousCounterpartyCommitInfo is the symmetric accessor to
// GetPreviousCounterpartyPoint, needed by revocation validation to recover
// the commitment info matching a just-revoked point.
func (s *EnforcementState) GetPreviousCounterpartyCommitInfo(num uint64) (*CommitmentInfo2, error) {
	var info *CommitmentInfo2
	switch {
	case num+1 == s.NextCounterpartyCommitNum:
		info = s.CurrentCounterpartyCommitInfo
	case num+2 == s.NextCounterpartyCommitNum:
		info = s.PreviousCounterpartyCommitInfo
	default:
		return nil, policy.Policyf(op, TagPointOutOfRange,
			"%d out of range, next is %d", num, s.NextCounterpartyCommitNum)
	}
	if info == nil {
		return nil, policy.Internalf(op, nil,
			"counterparty commit info for commit_num %d not set, next is %d",
			num, s.NextCounterpartyCommitNum)
	}
	return info, nil
}

// SetNextCounterpartyRevokeNum advances (or retries) the counterparty
// revocation number.
func (s *EnforcementState) SetNextCounterpartyRevokeNum(num uint64) error {
	if num == 0 {
		return policy.Policyf(op, TagRevokeZero, "can't set next to 0")
	}
	if num+2 < s.NextCounterpartyCommitNum {
		return policy.Policyf(op, TagRevokeOutOfRange,
			"%d too small relative to next_counterparty_commit_num %d",
			num, s.NextCounterpartyCommitNum)
	}
	if num+1 > s.NextCounterpartyCommitNum {
		return policy.Policyf(op, TagRevokeOutOfRange,
			"%d too large relative to next_counterparty_commit_num %d",
			num, s.NextCounterpartyCommitNum)
	}

	current := s.NextCounterpartyRevokeNum
	if num != current && num != current+1 {
		return policy.Policyf(op, TagRevokeInvalidProgress,
			"invalid progression: %d to %d", current, num)
	}

	// Clear the revoked commitment info; it must never be signed again.
	// previous_counterparty_point is deliberately retained (§9) since a
	// retried counterparty signing of the now-revoked state still needs
	// to be compared against it.
	if num+1 == s.NextCounterpartyCommitNum {
		s.PreviousCounterpartyCommitInfo = nil
	}

	s.NextCounterpartyRevokeNum = num
	return nil
}

// SetNextHolderCommitNum advances (or retries) the holder commitment
// number, always recording the newly supplied commitment info.
func (s *EnforcementState) SetNextHolderCommitNum(num uint64, info *CommitmentInfo2) error {
	current := s.NextHolderCommitNum
	if num != current && num != current+1 {
		return policy.Policyf(op, TagHolderCommitInvalid,
			"invalid progression: %d to %d", current, num)
	}
	s.NextHolderCommitNum = num
	s.CurrentHolderCommitInfo = info.clone()
	return nil
}

// GetCurrentHolderCommitmentInfo returns the commitment info for
// commitmentNumber, failing unless the signer is currently expecting a
// retry/ack of exactly that commitment.
func (s *EnforcementState) GetCurrentHolderCommitmentInfo(commitmentNumber uint64) (*CommitmentInfo2, error) {
	if commitmentNumber+1 != s.NextHolderCommitNum {
		return nil, policy.Policyf(op, TagHolderCommitInvalid,
			"invalid next holder commitment number: %d != %d",
			commitmentNumber+1, s.NextHolderCommitNum)
	}
	return s.CurrentHolderCommitInfo, nil
}

// MarkMutualCloseSigned sets the one-shot mutual-close flag. Once set, no
// further commitment advance is permitted (I4); callers are expected to
// check MutualCloseSigned before attempting any other transition.
func (s *EnforcementState) MarkMutualCloseSigned() error {
	if s.MutualCloseSigned {
		return policy.Policyf(op, TagMutualCloseAlready, "mutual close already signed")
	}
	s.MutualCloseSigned = true
	return nil
}

func commitInfoEqual(a, b *CommitmentInfo2) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ToBroadcasterValueSat != b.ToBroadcasterValueSat ||
		a.ToCountersignerValueSat != b.ToCountersignerValueSat ||
		a.FeeratePerKw != b.FeeratePerKw ||
		a.AnchorValueSat != b.AnchorValueSat ||
		len(a.OfferedHTLCs) != len(b.OfferedHTLCs) ||
		len(a.ReceivedHTLCs) != len(b.ReceivedHTLCs) {
		return false
	}
	keyEqual := func(x, y *btcec.PublicKey) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.IsEqual(y)
	}
	if !keyEqual(a.Keys.Revocation, b.Keys.Revocation) ||
		!keyEqual(a.Keys.DelayedPayment, b.Keys.DelayedPayment) ||
		!keyEqual(a.Keys.Htlc, b.Keys.Htlc) {
		return false
	}
	for i := range a.OfferedHTLCs {
		if a.OfferedHTLCs[i] != b.OfferedHTLCs[i] {
			return false
		}
	}
	for i := range a.ReceivedHTLCs {
		if a.ReceivedHTLCs[i] != b.ReceivedHTLCs[i] {
			return false
		}
	}
	return true
}
