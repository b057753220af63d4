package payments

import (
	"testing"

	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/stretchr/testify/require"
)

func hash(b byte) enforcement.PaymentHash {
	var h enforcement.PaymentHash
	h[0] = b
	return h
}

type fakePreimages map[enforcement.PaymentHash][32]byte

func (f fakePreimages) Preimage(h enforcement.PaymentHash) ([32]byte, bool) {
	p, ok := f[h]
	return p, ok
}

// P5: PaymentsSummary is commutative under reordering of HTLCs within a
// commitment, and takes the max across holder/counterparty views.
func TestPaymentsSummaryTakesMax(t *testing.T) {
	h1, h2 := hash(1), hash(2)
	state := &enforcement.EnforcementState{
		CurrentHolderCommitInfo: &enforcement.CommitmentInfo2{
			OfferedHTLCs: []enforcement.HTLCInfo2{
				{PaymentHash: h1, ValueSat: 1000},
				{PaymentHash: h2, ValueSat: 500},
			},
		},
		CurrentCounterpartyCommitInfo: &enforcement.CommitmentInfo2{
			ReceivedHTLCs: []enforcement.HTLCInfo2{
				{PaymentHash: h2, ValueSat: 500},
				{PaymentHash: h1, ValueSat: 2000},
			},
		},
	}

	summary := PaymentsSummary(state, nil, nil)
	require.Equal(t, uint64(2000), summary[h1])
	require.Equal(t, uint64(500), summary[h2])
}

// P5: IncomingPaymentsSummary only returns hashes present in both views,
// taking the min.
func TestIncomingPaymentsSummaryIntersects(t *testing.T) {
	h1, h2 := hash(1), hash(2)
	state := &enforcement.EnforcementState{
		CurrentHolderCommitInfo: &enforcement.CommitmentInfo2{
			ReceivedHTLCs: []enforcement.HTLCInfo2{
				{PaymentHash: h1, ValueSat: 1000},
				{PaymentHash: h2, ValueSat: 300},
			},
		},
		CurrentCounterpartyCommitInfo: &enforcement.CommitmentInfo2{
			OfferedHTLCs: []enforcement.HTLCInfo2{
				{PaymentHash: h1, ValueSat: 900},
			},
		},
	}

	summary := IncomingPaymentsSummary(state, nil, nil)
	require.Len(t, summary, 1)
	require.Equal(t, uint64(900), summary[h1])
	_, ok := summary[h2]
	require.False(t, ok)
}

func TestClaimableBalancesUsesInitialValueWhenNoCurrentCommitments(t *testing.T) {
	state := enforcement.New(50_000)
	newHolder := &enforcement.CommitmentInfo2{ToBroadcasterValueSat: 40_000}

	delta := ClaimableBalances(state, nil, newHolder, nil, nil)
	require.Equal(t, uint64(50_000), delta.Before)
	require.Equal(t, uint64(40_000), delta.After)
}

func TestClaimableBalancesCreditsKnownPreimage(t *testing.T) {
	h1 := hash(1)
	state := enforcement.New(0)
	state.CurrentHolderCommitInfo = &enforcement.CommitmentInfo2{ToBroadcasterValueSat: 90_000}
	state.CurrentCounterpartyCommitInfo = &enforcement.CommitmentInfo2{ToCountersignerValueSat: 90_000}

	newCp := &enforcement.CommitmentInfo2{
		ToCountersignerValueSat: 80_000,
		OfferedHTLCs:            []enforcement.HTLCInfo2{{PaymentHash: h1, ValueSat: 10_000}},
	}

	// Without a known preimage, the decrease is not recovered.
	delta := ClaimableBalances(state, fakePreimages{}, nil, newCp, nil)
	require.Equal(t, uint64(90_000), delta.Before)
	require.Equal(t, uint64(80_000), delta.After)

	// With a known preimage, the HTLC value is still claimable.
	delta = ClaimableBalances(state, fakePreimages{h1: [32]byte{}}, nil, newCp, nil)
	require.Equal(t, uint64(90_000), delta.After)
}

func TestValidateBalanceRoutingNode(t *testing.T) {
	require.True(t, ValidateBalance(1000, 900, nil, 0))
	require.False(t, ValidateBalance(900, 1000, nil, 0))
}

func TestValidateBalanceOriginator(t *testing.T) {
	invoiced := uint64(1000)
	require.True(t, ValidateBalance(1050, 0, &invoiced, 100))
	require.False(t, ValidateBalance(1101, 0, &invoiced, 100))
	require.False(t, ValidateBalance(999, 0, &invoiced, 100))
}
