package txdecode

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/policy"
	"golang.org/x/crypto/ripemd160"
)

const opDecomposeCommitment = "decompose_commitment"

// OutputWitness is the per-output material a caller supplies to
// DecomposeCommitment alongside the raw transaction: the witness script
// that output will be spent with, and, for an output the caller asserts is
// an HTLC, the payment hash and CLTV expiry it is claiming. Script is nil
// for an output paid directly to a key (the legacy to_remote output, which
// carries no witness script of its own). DecomposeCommitment cross-checks
// every HTLC claim against what the script actually commits to rather than
// trusting it, the same way the signer never re-derives a claimed
// CommitmentInfo2 from scratch in VerifyCommitmentValues.
type OutputWitness struct {
	Script      []byte
	HTLC        bool
	Offered     bool
	PaymentHash enforcement.PaymentHash
	CltvExpiry  uint32
}

// DecomposeCommitment implements §4.1's core operation: given a candidate
// commitment transaction, the channel setup, whether the commitment belongs
// to the counterparty or the holder, and the witness material for every
// output, it produces the typed CommitmentInfo2 the policy validator
// reasons about. It fails with a TransactionFormat error on a malformed
// witness script, an output that matches no known commitment template, or a
// duplicate HTLC output (same payment hash and CLTV expiry, same
// direction).
func DecomposeCommitment(
	tx *wire.MsgTx, setup *chansetup.ChannelSetup, isCounterparty bool,
	witnesses []OutputWitness, feeratePerKw uint32) (*enforcement.CommitmentInfo2, error) {

	if len(witnesses) != len(tx.TxOut) {
		return nil, policy.TransactionFormatf(opDecomposeCommitment,
			"witness count %d does not match output count %d", len(witnesses), len(tx.TxOut))
	}

	broadcasterDelay := setup.CounterpartyToSelfDelay
	if !isCounterparty {
		broadcasterDelay = setup.HolderToSelfDelay
	}

	info := &enforcement.CommitmentInfo2{FeeratePerKw: feeratePerKw}

	toBroadcasterIdx := -1
	toCountersignerIdx := -1
	var anchorTotal uint64
	type htlcKey struct {
		hash enforcement.PaymentHash
		cltv uint32
	}
	offeredSeen := make(map[htlcKey]struct{})
	receivedSeen := make(map[htlcKey]struct{})

	for i, out := range tx.TxOut {
		w := witnesses[i]

		if w.Script == nil {
			if toCountersignerIdx != -1 {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"duplicate to_countersigner output at index %d", i)
			}
			toCountersignerIdx = i
			continue
		}

		toks, err := tokenizeScript(w.Script)
		if err != nil {
			return nil, policy.TransactionFormatf(opDecomposeCommitment,
				"malformed witness script at output %d: %v", i, err)
		}

		toLocal := matchToLocal(toks, broadcasterDelay)

		switch {
		case toLocal != nil:
			if toBroadcasterIdx != -1 {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"duplicate to_broadcaster output at index %d", i)
			}
			toBroadcasterIdx = i
			info.Keys.Revocation = toLocal.revocation
			info.Keys.DelayedPayment = toLocal.delayed

		case matchToRemoteConfirmed(toks):
			if toCountersignerIdx != -1 {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"duplicate to_countersigner output at index %d", i)
			}
			toCountersignerIdx = i

		case matchAnchor(toks):
			anchorTotal += uint64(out.Value)

		case hasHTLCShape(toks):
			hash160, receivedScript, cltv, ok := matchHTLC(toks)
			if !ok {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"malformed htlc witness script at output %d", i)
			}
			if !w.HTLC {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"output %d has an htlc-shaped witness script but was not claimed as an htlc", i)
			}
			if w.Offered == receivedScript {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"output %d htlc direction claim does not match its witness script", i)
			}
			if !ripemd160Of(w.PaymentHash[:]).equal(hash160) {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"output %d claimed payment hash does not match its witness script", i)
			}
			if receivedScript && w.CltvExpiry != cltv {
				return nil, policy.TransactionFormatf(opDecomposeCommitment,
					"output %d claimed cltv_expiry %d does not match witness script value %d",
					i, w.CltvExpiry, cltv)
			}

			h := enforcement.HTLCInfo2{
				PaymentHash: w.PaymentHash,
				ValueSat:    uint64(out.Value),
				CltvExpiry:  w.CltvExpiry,
			}
			key := htlcKey{hash: h.PaymentHash, cltv: h.CltvExpiry}
			if w.Offered {
				if _, dup := offeredSeen[key]; dup {
					return nil, policy.TransactionFormatf(opDecomposeCommitment,
						"duplicate offered htlc output at index %d", i)
				}
				offeredSeen[key] = struct{}{}
				info.OfferedHTLCs = append(info.OfferedHTLCs, h)
			} else {
				if _, dup := receivedSeen[key]; dup {
					return nil, policy.TransactionFormatf(opDecomposeCommitment,
						"duplicate received htlc output at index %d", i)
				}
				receivedSeen[key] = struct{}{}
				info.ReceivedHTLCs = append(info.ReceivedHTLCs, h)
			}

		default:
			return nil, policy.TransactionFormatf(opDecomposeCommitment,
				"output %d witness script matches no known commitment output template", i)
		}
	}

	if toBroadcasterIdx >= 0 {
		info.ToBroadcasterValueSat = uint64(tx.TxOut[toBroadcasterIdx].Value)
	}
	if toCountersignerIdx >= 0 {
		info.ToCountersignerValueSat = uint64(tx.TxOut[toCountersignerIdx].Value)
	}
	info.AnchorValueSat = anchorTotal

	return info, nil
}

// token is one opcode of a disassembled script, with its pushed data if it
// is a data-push opcode.
type token struct {
	op   byte
	data []byte
}

// tokenizeScript is a minimal script disassembler: it decodes direct data
// pushes (0x01..0x4b) and OP_PUSHDATA1/2 together with their payloads, and
// takes every other byte, OP_PUSHDATA4 included, as a single bare opcode.
// Its only failure is a data push that runs past the end of the script;
// any other malformed script is left to the template matchers to reject.
func tokenizeScript(script []byte) ([]token, error) {
	var toks []token
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op >= 0x01 && op <= 0x4b:
			n := int(op)
			if i+1+n > len(script) {
				return nil, errTruncatedPush
			}
			toks = append(toks, token{op: op, data: script[i+1 : i+1+n]})
			i += 1 + n
		case op == txscript.OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil, errTruncatedPush
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil, errTruncatedPush
			}
			toks = append(toks, token{op: op, data: script[i+2 : i+2+n]})
			i += 2 + n
		case op == txscript.OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil, errTruncatedPush
			}
			n := int(binary.LittleEndian.Uint16(script[i+1 : i+3]))
			if i+3+n > len(script) {
				return nil, errTruncatedPush
			}
			toks = append(toks, token{op: op, data: script[i+3 : i+3+n]})
			i += 3 + n
		default:
			toks = append(toks, token{op: op})
			i++
		}
	}
	return toks, nil
}

type scriptError string

func (e scriptError) Error() string { return string(e) }

const errTruncatedPush = scriptError("truncated push opcode")

// scriptNumValue decodes tok as a minimally-encoded script number, covering
// the small-immediate opcodes (OP_0, OP_1..OP_16) and little-endian data
// pushes up to 4 bytes. BOLT #3 never encodes a to_self_delay or CLTV
// expiry as a negative number, so the sign bit is rejected outright.
func scriptNumValue(tok token) (uint32, bool) {
	if tok.op == txscript.OP_0 {
		return 0, true
	}
	if tok.op >= txscript.OP_1 && tok.op <= txscript.OP_16 {
		return uint32(tok.op-txscript.OP_1) + 1, true
	}
	if len(tok.data) == 0 || len(tok.data) > 4 {
		return 0, false
	}
	var v uint32
	for i, b := range tok.data {
		v |= uint32(b) << (8 * uint(i))
	}
	if tok.data[len(tok.data)-1]&0x80 != 0 {
		return 0, false
	}
	return v, true
}

type toLocalKeys struct {
	revocation *btcec.PublicKey
	delayed    *btcec.PublicKey
}

// matchToLocal recognizes BOLT #3's to_local (to_broadcaster) output
// script:
//
//	OP_IF
//	    <revocationkey>
//	OP_ELSE
//	    `to_self_delay`
//	    OP_CHECKSEQUENCEVERIFY
//	    OP_DROP
//	    <local_delayedkey>
//	OP_ENDIF
//	OP_CHECKSIG
//
// returning the embedded keys when the delay also matches the channel's
// negotiated to_self_delay for the commitment's broadcaster, or nil.
func matchToLocal(toks []token, expectedDelay uint16) *toLocalKeys {
	if len(toks) != 9 {
		return nil
	}
	if toks[0].op != txscript.OP_IF || len(toks[1].data) != 33 {
		return nil
	}
	if toks[2].op != txscript.OP_ELSE {
		return nil
	}
	delay, ok := scriptNumValue(toks[3])
	if !ok || delay != uint32(expectedDelay) {
		return nil
	}
	if toks[4].op != txscript.OP_CHECKSEQUENCEVERIFY || toks[5].op != txscript.OP_DROP {
		return nil
	}
	if len(toks[6].data) != 33 {
		return nil
	}
	if toks[7].op != txscript.OP_ENDIF || toks[8].op != txscript.OP_CHECKSIG {
		return nil
	}
	revocation, err := btcec.ParsePubKey(toks[1].data)
	if err != nil {
		return nil
	}
	delayed, err := btcec.ParsePubKey(toks[6].data)
	if err != nil {
		return nil
	}
	return &toLocalKeys{revocation: revocation, delayed: delayed}
}

// matchToRemoteConfirmed recognizes the static_remotekey/anchors to_remote
// script, which requires a full commitment-count confirmation (CSV 1)
// before the counterparty's direct balance output can be spent:
//
//	<remotepubkey> OP_CHECKSIGVERIFY
//	OP_1 OP_CHECKSEQUENCEVERIFY
func matchToRemoteConfirmed(toks []token) bool {
	if len(toks) != 4 {
		return false
	}
	return len(toks[0].data) == 33 &&
		toks[1].op == txscript.OP_CHECKSIGVERIFY &&
		toks[2].op == txscript.OP_1 &&
		toks[3].op == txscript.OP_CHECKSEQUENCEVERIFY
}

// matchAnchor recognizes an anchors-commitment anchor output script: spent
// immediately by the funding key, or by anyone after 16 confirmations
// (CPFP carve-out).
//
//	<funding_pubkey> OP_CHECKSIG OP_IFDUP
//	OP_NOTIF
//	    OP_16
//	    OP_CHECKSEQUENCEVERIFY
//	OP_ENDIF
func matchAnchor(toks []token) bool {
	if len(toks) != 7 {
		return false
	}
	return len(toks[0].data) == 33 &&
		toks[1].op == txscript.OP_CHECKSIG &&
		toks[2].op == txscript.OP_IFDUP &&
		toks[3].op == txscript.OP_NOTIF &&
		toks[4].op == txscript.OP_16 &&
		toks[5].op == txscript.OP_CHECKSEQUENCEVERIFY &&
		toks[6].op == txscript.OP_ENDIF
}

// hasHTLCShape is a coarse pre-filter: every BOLT #3 HTLC script hash-locks
// its output and offers a revocation escape via a 2-of-2 multisig, so both
// opcodes are always present together. Template classes that lack this
// combination (to_local, to_remote, anchor) are filtered out before the
// more specific matchHTLC parse.
func hasHTLCShape(toks []token) bool {
	return hasOp(toks, txscript.OP_CHECKMULTISIG) && hasHashlock(toks)
}

func hasOp(toks []token, op byte) bool {
	for _, t := range toks {
		if t.op == op {
			return true
		}
	}
	return false
}

func hasHashlock(toks []token) bool {
	_, ok := findHashlock(toks)
	return ok
}

func findHashlock(toks []token) ([]byte, bool) {
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].op == txscript.OP_HASH160 && len(toks[i+1].data) == 20 &&
			(toks[i+2].op == txscript.OP_EQUAL || toks[i+2].op == txscript.OP_EQUALVERIFY) {
			return toks[i+1].data, true
		}
	}
	return nil, false
}

// findCLTV locates OP_CHECKLOCKTIMEVERIFY and decodes the script number
// pushed immediately before it. A received HTLC script carries a CLTV
// check (the broadcaster must wait out the timeout before reclaiming it);
// an offered HTLC script never does, since its offerer is already past the
// point of no return on the route.
func findCLTV(toks []token) (uint32, bool) {
	for i := 1; i < len(toks); i++ {
		if toks[i].op == txscript.OP_CHECKLOCKTIMEVERIFY {
			return scriptNumValue(toks[i-1])
		}
	}
	return 0, false
}

// matchHTLC extracts the 20-byte hash lock and, if present, the CLTV
// expiry from an HTLC-shaped script, reporting whether a CLTV check was
// found (i.e. this is a received HTLC from the broadcaster's perspective).
func matchHTLC(toks []token) (hash160 []byte, received bool, cltv uint32, ok bool) {
	hash160, ok = findHashlock(toks)
	if !ok {
		return nil, false, 0, false
	}
	cltv, received = findCLTV(toks)
	return hash160, received, cltv, true
}

type ripemd160Hash [20]byte

func (h ripemd160Hash) equal(b []byte) bool {
	if len(b) != len(h) {
		return false
	}
	for i := range h {
		if h[i] != b[i] {
			return false
		}
	}
	return true
}

// ripemd160Of hashes the caller's claimed 32-byte payment hash down to the
// 20-byte value BOLT #3 actually commits to in the witness script. Grounded
// on lnwallet/script_utils.go's use of golang.org/x/crypto/ripemd160 for the
// identical HTLC script construction.
func ripemd160Of(paymentHash []byte) ripemd160Hash {
	h := ripemd160.New()
	h.Write(paymentHash)
	sum := h.Sum(nil)
	var out ripemd160Hash
	copy(out[:], sum)
	return out
}
