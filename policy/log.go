package policy

import "github.com/btcsuite/btclog"

// log is the package-wide logger, disabled until the embedding process
// calls UseLogger, matching the convention every lnd subsystem follows.
var log = btclog.Disabled

// UseLogger sets the logger used by the policy package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
