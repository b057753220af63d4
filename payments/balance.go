package payments

// ValidateBalance implements §4.4's validate_payment_balance. When
// invoicedAmountMsat is nil, the signer is acting as a routing node and
// only requires incoming >= outgoing. Otherwise the signer originated the
// payment and must receive enough to cover the invoice, plus at most
// routingFeeMaxMsat on top for routing fees paid along the way.
func ValidateBalance(incomingMsat, outgoingMsat uint64, invoicedAmountMsat *uint64,
	routingFeeMaxMsat uint64) bool {

	if invoicedAmountMsat == nil {
		ok := incomingMsat >= outgoingMsat
		if !ok {
			log.Debugf("routing balance check failed: incoming %d < outgoing %d", incomingMsat, outgoingMsat)
		}
		return ok
	}

	if outgoingMsat > incomingMsat {
		return false
	}
	net := incomingMsat - outgoingMsat
	if net < *invoicedAmountMsat {
		log.Debugf("originator balance check failed: net %d below invoiced %d", net, *invoicedAmountMsat)
		return false
	}
	return net <= *invoicedAmountMsat+routingFeeMaxMsat
}
