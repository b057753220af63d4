package validator

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the validator package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
