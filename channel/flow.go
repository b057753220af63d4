package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/chanid"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/payments"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/lightningnetwork/remotesigner/txdecode"
)

// Signer is the key-custody boundary (C8): given a commitment transaction
// that has already cleared decomposition and policy validation, it produces
// the signature over it. The channel container never touches private key
// material itself; everything up to this call runs under the channel's own
// lock with only SignCommitment crossing into the signer.
type Signer interface {
	SignCommitment(id chanid.ChannelId, isCounterparty bool, tx *wire.MsgTx) ([]byte, error)
}

// AttachSigner wires a Signer to an already-open channel. Kept separate
// from Open rather than folded into its argument list so that tests
// exercising Open/WithChannel in isolation never need to supply one.
func (m *Manager) AttachSigner(id chanid.ChannelId, signer Signer) error {
	return m.WithChannel(id, func(ch *Channel) error {
		ch.Signer = signer
		return nil
	})
}

// SignCounterpartyCommitment drives the full §2 flow for a proposed
// counterparty commitment under id's lock: decompose the raw transaction
// (C3), cross-check it against the claimed decomposition, validate it under
// policy (C5), which itself commits the resulting state transition on
// success, and only then hand the transaction to the signer (C8).
func (m *Manager) SignCounterpartyCommitment(
	id chanid.ChannelId, tx *wire.MsgTx, commitNum uint64, point *btcec.PublicKey,
	cstate *chansetup.ChainState, witnesses []txdecode.OutputWitness, feeratePerKw uint32,
	inputValueSat int64, preimages payments.PreimageMap) ([]byte, error) {

	const op = "sign_counterparty_commitment"

	var sig []byte
	err := m.WithChannel(id, func(ch *Channel) error {
		if ch.Signer == nil {
			return policy.Internalf(op, nil, "channel %s has no signer attached", id)
		}

		info, err := txdecode.DecomposeCommitment(tx, ch.Setup, true, witnesses, feeratePerKw)
		if err != nil {
			return err
		}
		if err := txdecode.VerifyCommitmentValues(tx, info, inputValueSat); err != nil {
			return err
		}
		if err := ch.Policy.ValidateCounterpartyCommitmentTx(
			ch.Setup, ch.State, commitNum, point, cstate, info, preimages); err != nil {
			return err
		}

		s, err := ch.Signer.SignCommitment(id, true, tx)
		if err != nil {
			return policy.Internalf(op, err, "signer failed")
		}
		sig = s
		return nil
	})
	return sig, err
}

// SignHolderCommitment is the symmetric flow for a holder commitment the
// signer is about to co-sign.
func (m *Manager) SignHolderCommitment(
	id chanid.ChannelId, tx *wire.MsgTx, commitNum uint64,
	cstate *chansetup.ChainState, witnesses []txdecode.OutputWitness, feeratePerKw uint32,
	inputValueSat int64, preimages payments.PreimageMap) ([]byte, error) {

	const op = "sign_holder_commitment"

	var sig []byte
	err := m.WithChannel(id, func(ch *Channel) error {
		if ch.Signer == nil {
			return policy.Internalf(op, nil, "channel %s has no signer attached", id)
		}

		info, err := txdecode.DecomposeCommitment(tx, ch.Setup, false, witnesses, feeratePerKw)
		if err != nil {
			return err
		}
		if err := txdecode.VerifyCommitmentValues(tx, info, inputValueSat); err != nil {
			return err
		}
		if err := ch.Policy.ValidateHolderCommitmentTx(
			ch.Setup, ch.State, commitNum, cstate, info, preimages); err != nil {
			return err
		}

		s, err := ch.Signer.SignCommitment(id, false, tx)
		if err != nil {
			return policy.Internalf(op, err, "signer failed")
		}
		sig = s
		return nil
	})
	return sig, err
}
