package txdecode

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the logger used by the txdecode package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
