package allowlist

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the allowlist package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
