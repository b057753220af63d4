package payments

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestDecodeInvoiceAmountRejectsMalformedInvoice(t *testing.T) {
	_, _, err := DecodeInvoiceAmount("not-a-bolt11-invoice", &chaincfg.MainNetParams)
	require.Error(t, err)
}

func TestDecodeInvoiceAmountRejectsEmptyInvoice(t *testing.T) {
	// An empty string fails decode regardless of which network params
	// are supplied.
	_, _, err := DecodeInvoiceAmount("", &chaincfg.TestNet3Params)
	require.Error(t, err)
}
