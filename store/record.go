package store

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
)

// TLV types for the persisted (ChannelSetup, EnforcementState) tuple.
// Grounded on channeldb's manual field-by-field binary encoding
// (channeldb/channel.go's putChanInfo), upgraded from raw binary.Write
// calls to the tlv framing the teacher already depends on for wire
// messages, so a future field addition doesn't require a store migration.
const (
	typeChannelValueSat        tlv.Type = 0
	typeIsOutbound             tlv.Type = 1
	typeHolderFundingKey       tlv.Type = 2
	typeCounterpartyFundingKey tlv.Type = 3
	typeHolderToSelfDelay      tlv.Type = 4
	typeCpToSelfDelay          tlv.Type = 5
	typeCommitmentType         tlv.Type = 6

	typeNextHolderCommitNum       tlv.Type = 20
	typeNextCounterpartyCommitNum tlv.Type = 21
	typeNextCounterpartyRevokeNum tlv.Type = 22
	typeCurrentCounterpartyPoint  tlv.Type = 23
	typePreviousCounterpartyPoint tlv.Type = 24
	typeMutualCloseSigned         tlv.Type = 25
	typeInitialHolderValue        tlv.Type = 26
)

// encodeRecord serializes setup and state into a single TLV stream.
func encodeRecord(setup *chansetup.ChannelSetup, state *enforcement.EnforcementState) ([]byte, error) {
	var (
		isOutbound     uint8
		mutualClose    uint8
		commitmentType = uint8(setup.CommitmentType)
	)
	if setup.IsOutbound {
		isOutbound = 1
	}
	if state.MutualCloseSigned {
		mutualClose = 1
	}

	holderKey := setup.HolderFundingKey.SerializeCompressed()
	cpKey := setup.CounterpartyFundingKey.SerializeCompressed()
	channelValue := uint64(setup.ChannelValueSat)
	holderDelay := uint32(setup.HolderToSelfDelay)
	cpDelay := uint32(setup.CounterpartyToSelfDelay)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeChannelValueSat, &channelValue),
		tlv.MakePrimitiveRecord(typeIsOutbound, &isOutbound),
		tlv.MakePrimitiveRecord(typeHolderFundingKey, &holderKey),
		tlv.MakePrimitiveRecord(typeCounterpartyFundingKey, &cpKey),
		tlv.MakePrimitiveRecord(typeHolderToSelfDelay, &holderDelay),
		tlv.MakePrimitiveRecord(typeCpToSelfDelay, &cpDelay),
		tlv.MakePrimitiveRecord(typeCommitmentType, &commitmentType),
		tlv.MakePrimitiveRecord(typeNextHolderCommitNum, &state.NextHolderCommitNum),
		tlv.MakePrimitiveRecord(typeNextCounterpartyCommitNum, &state.NextCounterpartyCommitNum),
		tlv.MakePrimitiveRecord(typeNextCounterpartyRevokeNum, &state.NextCounterpartyRevokeNum),
		tlv.MakePrimitiveRecord(typeMutualCloseSigned, &mutualClose),
		tlv.MakePrimitiveRecord(typeInitialHolderValue, &state.InitialHolderValue),
	}
	if state.CurrentCounterpartyPoint != nil {
		p := state.CurrentCounterpartyPoint.SerializeCompressed()
		records = append(records, tlv.MakePrimitiveRecord(typeCurrentCounterpartyPoint, &p))
	}
	if state.PreviousCounterpartyPoint != nil {
		p := state.PreviousCounterpartyPoint.SerializeCompressed()
		records = append(records, tlv.MakePrimitiveRecord(typePreviousCounterpartyPoint, &p))
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRecord is the inverse of encodeRecord. The returned ChannelSetup
// carries only the fields encodeRecord writes; its Network is left nil.
func decodeRecord(data []byte) (*chansetup.ChannelSetup, *enforcement.EnforcementState, error) {
	var (
		channelValue, initialHolderValue uint64
		isOutbound, mutualClose, commitmentType uint8
		holderDelay, cpDelay uint32
		holderKey, cpKey []byte
		curPoint, prevPoint []byte
		nextHolder, nextCpCommit, nextCpRevoke uint64
	)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeChannelValueSat, &channelValue),
		tlv.MakePrimitiveRecord(typeIsOutbound, &isOutbound),
		tlv.MakePrimitiveRecord(typeHolderFundingKey, &holderKey),
		tlv.MakePrimitiveRecord(typeCounterpartyFundingKey, &cpKey),
		tlv.MakePrimitiveRecord(typeHolderToSelfDelay, &holderDelay),
		tlv.MakePrimitiveRecord(typeCpToSelfDelay, &cpDelay),
		tlv.MakePrimitiveRecord(typeCommitmentType, &commitmentType),
		tlv.MakePrimitiveRecord(typeNextHolderCommitNum, &nextHolder),
		tlv.MakePrimitiveRecord(typeNextCounterpartyCommitNum, &nextCpCommit),
		tlv.MakePrimitiveRecord(typeNextCounterpartyRevokeNum, &nextCpRevoke),
		tlv.MakePrimitiveRecord(typeCurrentCounterpartyPoint, &curPoint),
		tlv.MakePrimitiveRecord(typePreviousCounterpartyPoint, &prevPoint),
		tlv.MakePrimitiveRecord(typeMutualCloseSigned, &mutualClose),
		tlv.MakePrimitiveRecord(typeInitialHolderValue, &initialHolderValue),
	}
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, nil, err
	}
	if err := stream.Decode(bytes.NewReader(data)); err != nil {
		return nil, nil, err
	}

	holderPub, err := btcec.ParsePubKey(holderKey)
	if err != nil {
		return nil, nil, err
	}
	cpPub, err := btcec.ParsePubKey(cpKey)
	if err != nil {
		return nil, nil, err
	}

	setup := &chansetup.ChannelSetup{
		ChannelValueSat:         btcutil.Amount(channelValue),
		IsOutbound:              isOutbound == 1,
		HolderFundingKey:        holderPub,
		CounterpartyFundingKey:  cpPub,
		HolderToSelfDelay:       uint16(holderDelay),
		CounterpartyToSelfDelay: uint16(cpDelay),
		CommitmentType:          chansetup.CommitmentType(commitmentType),
	}

	state := enforcement.New(initialHolderValue)
	state.NextHolderCommitNum = nextHolder
	state.NextCounterpartyCommitNum = nextCpCommit
	state.NextCounterpartyRevokeNum = nextCpRevoke
	state.MutualCloseSigned = mutualClose == 1
	if len(curPoint) > 0 {
		pub, err := btcec.ParsePubKey(curPoint)
		if err != nil {
			return nil, nil, err
		}
		state.CurrentCounterpartyPoint = pub
	}
	if len(prevPoint) > 0 {
		pub, err := btcec.ParsePubKey(prevPoint)
		if err != nil {
			return nil, nil, err
		}
		state.PreviousCounterpartyPoint = pub
	}

	return setup, state, nil
}

// Not part of v1 of the on-disk format: the setup's Network,
// FundingOutpoint, CounterpartyPublicKeys and shutdown scripts, and every
// CommitmentInfo2 of the enforcement state (the current holder, current
// counterparty and previous counterparty infos, with their HTLC lists). A
// record loaded by decodeRecord has all of these at their zero value.
