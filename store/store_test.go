package store

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/remotesigner/chanid"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/stretchr/testify/require"
)

func newStateForTest(t *testing.T, initialHolderValue uint64) *enforcement.EnforcementState {
	t.Helper()
	return enforcement.New(initialHolderValue)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:     t.TempDir(),
		DBFileName: "remotesigner.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, clock.NewDefaultClock())
}

func testSetup(t *testing.T) *chansetup.ChannelSetup {
	t.Helper()
	_, holderPub := btcec.PrivKeyFromBytes(bytes32(1))
	_, cpPub := btcec.PrivKeyFromBytes(bytes32(2))
	return &chansetup.ChannelSetup{
		ChannelValueSat:         btcutil.Amount(500_000),
		IsOutbound:              true,
		HolderFundingKey:        holderPub,
		CounterpartyFundingKey:  cpPub,
		HolderToSelfDelay:       144,
		CounterpartyToSelfDelay: 144,
		CommitmentType:          chansetup.CommitmentTypeAnchors,
	}
}

func bytes32(b byte) []byte {
	out := make([]byte, 32)
	out[31] = b
	return out
}

func testID(t *testing.T) chanid.ChannelId {
	t.Helper()
	id, err := chanid.New(bytes32(7))
	require.NoError(t, err)
	return id
}

func TestPutGetRoundTrip(t *testing.T) {
	s := testStore(t)
	id := testID(t)
	setup := testSetup(t)

	err := s.Put(id, setup, newStateForTest(t, 500_000))
	require.NoError(t, err)

	gotSetup, gotState, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, setup.ChannelValueSat, gotSetup.ChannelValueSat)
	require.Equal(t, setup.IsOutbound, gotSetup.IsOutbound)
	require.Equal(t, setup.HolderToSelfDelay, gotSetup.HolderToSelfDelay)
	require.True(t, setup.HolderFundingKey.IsEqual(gotSetup.HolderFundingKey))
	require.Equal(t, uint64(500_000), gotState.InitialHolderValue)
}

func TestGetUnknownChannel(t *testing.T) {
	s := testStore(t)
	_, _, err := s.Get(testID(t))
	require.Error(t, err)
}

func TestPutOverwritesPriorRecord(t *testing.T) {
	s := testStore(t)
	id := testID(t)
	setup := testSetup(t)

	require.NoError(t, s.Put(id, setup, newStateForTest(t, 1)))
	require.NoError(t, s.Put(id, setup, newStateForTest(t, 2)))

	_, gotState, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(2), gotState.InitialHolderValue)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := testStore(t)
	id := testID(t)
	require.NoError(t, s.Put(id, testSetup(t), newStateForTest(t, 1)))

	require.NoError(t, s.Delete(id))

	_, _, err := s.Get(id)
	require.Error(t, err)
}
