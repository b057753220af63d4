package enforcement

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the enforcement package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
