package audit

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the audit package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
