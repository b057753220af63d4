package wallet

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the wallet package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
