// Package chansetup holds the immutable, per-channel negotiation outcome
// (ChannelSetup) and the read-only view of chain progress (ChainState) that
// the policy validator consumes. Apart from deriving the funding script
// (FundingScript, MultiSigScript), neither type carries behavior of its
// own; they are data shared between the validator and the channel
// container without creating an import cycle between the two.
package chansetup

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// CommitmentType selects the script templates used for the channel's
// commitment transactions.
type CommitmentType uint8

const (
	CommitmentTypeLegacy CommitmentType = iota
	CommitmentTypeStaticRemoteKey
	CommitmentTypeAnchors
)

// ChannelPublicKeys bundles the four basepoints a counterparty contributes
// to a channel at funding time.
type ChannelPublicKeys struct {
	RevocationBasePoint     *btcec.PublicKey
	PaymentBasePoint        *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint           *btcec.PublicKey
}

// ChannelSetup is the negotiated, static description of a channel. It is
// immutable from the moment the channel transitions to "ready" and may be
// freely shared without synchronization.
type ChannelSetup struct {
	Network *chaincfg.Params

	ChannelValueSat btcutil.Amount
	IsOutbound      bool

	FundingOutpoint   wire.OutPoint
	HolderFundingKey  *btcec.PublicKey
	CounterpartyFundingKey *btcec.PublicKey

	HolderToSelfDelay        uint16
	CounterpartyToSelfDelay  uint16
	CounterpartyPublicKeys   ChannelPublicKeys

	HolderShutdownScript       []byte
	CounterpartyShutdownScript []byte

	CommitmentType CommitmentType
}

// FundingScript returns the 2-of-2 multisig witness script that the funding
// outpoint pays to, built from the sorted holder/counterparty funding keys.
func (s *ChannelSetup) FundingScript() ([]byte, error) {
	a := s.HolderFundingKey.SerializeCompressed()
	b := s.CounterpartyFundingKey.SerializeCompressed()
	return MultiSigScript(a, b)
}

// MultiSigScript builds the canonical BOLT #3 2-of-2 funding script from two
// compressed pubkeys, lexicographically sorted.
func MultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if len(aPub) != 33 || len(bPub) != 33 {
		return nil, errBadPubkeyLen
	}
	if bytesCompare(aPub, bPub) > 0 {
		aPub, bPub = bPub, aPub
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	builder.AddData(aPub)
	builder.AddData(bPub)
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

var errBadPubkeyLen = fmtError("compressed pubkeys only")

type fmtError string

func (e fmtError) Error() string { return string(e) }

// ChainState is the read-only view of chain progress the validator is
// handed for each request. It is maintained by an external chain follower;
// the core never mutates it.
type ChainState struct {
	// CurrentHeight is the current best-known block height.
	CurrentHeight uint32

	// FundingDepth is zero, or the number of confirmations of the
	// funding transaction.
	FundingDepth uint32

	// FundingDoubleSpentDepth is zero, or the number of confirmations of
	// a transaction that double-spends the funding outpoint.
	FundingDoubleSpentDepth uint32

	// ClosingDepth is zero, or the number of confirmations of a closing
	// transaction.
	ClosingDepth uint32
}
