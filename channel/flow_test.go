package channel

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/remotesigner/chanid"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/lightningnetwork/remotesigner/txdecode"
	"github.com/lightningnetwork/remotesigner/validator"
	"github.com/stretchr/testify/require"
)

// stubSigner records the last commitment it was asked to sign and returns a
// fixed, recognizable signature so tests can confirm the flow actually
// reaches the signing step rather than short-circuiting earlier.
type stubSigner struct {
	lastID             chanid.ChannelId
	lastIsCounterparty bool
	lastTx             *wire.MsgTx
	err                error
}

func (s *stubSigner) SignCommitment(id chanid.ChannelId, isCounterparty bool, tx *wire.MsgTx) ([]byte, error) {
	s.lastID = id
	s.lastIsCounterparty = isCounterparty
	s.lastTx = tx
	if s.err != nil {
		return nil, s.err
	}
	return []byte{0xde, 0xad, 0xbe, 0xef}, nil
}

func testKey(seed byte) *btcec.PublicKey {
	var sk [32]byte
	sk[31] = seed
	_, pub := btcec.PrivKeyFromBytes(sk[:])
	return pub
}

// toLocalScript builds a BOLT #3 to_local witness script for the given
// revocation/delayed keys and to_self_delay.
func toLocalScript(t *testing.T, revocation, delayed *btcec.PublicKey, delay int64) []byte {
	t.Helper()
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_IF)
	b.AddData(revocation.SerializeCompressed())
	b.AddOp(txscript.OP_ELSE)
	b.AddInt64(delay)
	b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	b.AddOp(txscript.OP_DROP)
	b.AddData(delayed.SerializeCompressed())
	b.AddOp(txscript.OP_ENDIF)
	b.AddOp(txscript.OP_CHECKSIG)
	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func testFlowSetup() *chansetup.ChannelSetup {
	return &chansetup.ChannelSetup{
		ChannelValueSat:         1_000_000,
		HolderFundingKey:        testKey(1),
		CounterpartyFundingKey:  testKey(2),
		HolderToSelfDelay:       144,
		CounterpartyToSelfDelay: 144,
	}
}

func TestSignCounterpartyCommitmentFlow(t *testing.T) {
	m := NewManager(clock.NewDefaultClock())
	id := testID(t, 1)
	pol := validator.NewProductionPolicy(policy.DefaultConfig())
	setup := testFlowSetup()

	require.NoError(t, m.Open(id, setup, pol, 0))

	signer := &stubSigner{}
	require.NoError(t, m.AttachSigner(id, signer))

	script := toLocalScript(t, testKey(3), testKey(4), 144)
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: 500_000, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 498_000})

	witnesses := []txdecode.OutputWitness{
		{Script: script},
		{Script: nil},
	}

	point := testKey(9)
	sig, err := m.SignCounterpartyCommitment(
		id, tx, 1, point, nil, witnesses, 1000, 1_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sig)

	require.True(t, signer.lastIsCounterparty)
	require.Same(t, tx, signer.lastTx)

	var committed uint64
	require.NoError(t, m.WithChannel(id, func(ch *Channel) error {
		committed = ch.State.NextCounterpartyCommitNum
		return nil
	}))
	require.Equal(t, uint64(1), committed)
}

func TestSignCounterpartyCommitmentFlowRejectsInvalidCommitment(t *testing.T) {
	m := NewManager(clock.NewDefaultClock())
	id := testID(t, 2)
	pol := validator.NewProductionPolicy(policy.DefaultConfig())
	setup := testFlowSetup()

	require.NoError(t, m.Open(id, setup, pol, 0))

	signer := &stubSigner{}
	require.NoError(t, m.AttachSigner(id, signer))

	// Wrong delay: the script claims a to_self_delay that does not match
	// the channel's negotiated counterparty_to_self_delay, so it matches
	// no known output template.
	script := toLocalScript(t, testKey(3), testKey(4), 1)
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: 500_000, PkScript: script})

	witnesses := []txdecode.OutputWitness{{Script: script}}

	_, err := m.SignCounterpartyCommitment(
		id, tx, 1, testKey(9), nil, witnesses, 1000, 1_000_000, nil)
	require.Error(t, err)
	require.Nil(t, signer.lastTx)
}

func TestSignCounterpartyCommitmentFlowRequiresSigner(t *testing.T) {
	m := NewManager(clock.NewDefaultClock())
	id := testID(t, 3)
	pol := validator.NewProductionPolicy(policy.DefaultConfig())
	setup := testFlowSetup()

	require.NoError(t, m.Open(id, setup, pol, 0))

	script := toLocalScript(t, testKey(3), testKey(4), 144)
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: 500_000, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 498_000})

	witnesses := []txdecode.OutputWitness{
		{Script: script},
		{Script: nil},
	}

	_, err := m.SignCounterpartyCommitment(
		id, tx, 1, testKey(9), nil, witnesses, 1000, 1_000_000, nil)
	require.Error(t, err)
}

func TestSignHolderCommitmentFlow(t *testing.T) {
	m := NewManager(clock.NewDefaultClock())
	id := testID(t, 4)
	pol := validator.NewProductionPolicy(policy.DefaultConfig())
	setup := testFlowSetup()

	require.NoError(t, m.Open(id, setup, pol, 0))

	signer := &stubSigner{}
	require.NoError(t, m.AttachSigner(id, signer))

	script := toLocalScript(t, testKey(5), testKey(6), 144)
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{Value: 500_000, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 498_000})

	witnesses := []txdecode.OutputWitness{
		{Script: script},
		{Script: nil},
	}

	sig, err := m.SignHolderCommitment(id, tx, 1, nil, witnesses, 1000, 1_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sig)
	require.False(t, signer.lastIsCounterparty)

	var committed uint64
	require.NoError(t, m.WithChannel(id, func(ch *Channel) error {
		committed = ch.State.NextHolderCommitNum
		return nil
	}))
	require.Equal(t, uint64(1), committed)
}
