package payments

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the payments package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
