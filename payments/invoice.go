package payments

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/lightningnetwork/remotesigner/enforcement"
)

// DecodeInvoiceAmount decodes a raw BOLT11 invoice string and returns the
// invoiced amount in millisatoshi together with its payment hash. This
// supplements §4.4's validate_payment_balance, which spec.md leaves silent
// on how invoiced_amount_msat is actually obtained when the signer itself
// is the payment originator.
func DecodeInvoiceAmount(invoice string, net *chaincfg.Params) (uint64, enforcement.PaymentHash, error) {
	inv, err := zpay32.Decode(invoice, net)
	if err != nil {
		return 0, enforcement.PaymentHash{}, err
	}
	var amtMsat uint64
	if inv.MilliSat != nil {
		amtMsat = uint64(*inv.MilliSat)
	}
	var hash enforcement.PaymentHash
	if inv.PaymentHash != nil {
		hash = enforcement.PaymentHash(*inv.PaymentHash)
	}
	return amtMsat, hash, nil
}
