package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/remotesigner/allowlist"
	"github.com/lightningnetwork/remotesigner/audit"
	"github.com/lightningnetwork/remotesigner/channel"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/payments"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/lightningnetwork/remotesigner/store"
	"github.com/lightningnetwork/remotesigner/txdecode"
	"github.com/lightningnetwork/remotesigner/validator"
	"github.com/lightningnetwork/remotesigner/wallet"
)

// backendLog is the single logging backend, the same shape daemon/log.go
// builds before handing each subsystem its own sub-logger. A remote signer
// has few enough subsystems that one shared logger, rsgnLog, is handed to
// every package instead of a sub-logger per subsystem.
var backendLog = btclog.NewBackend(os.Stdout)

var rsgnLog = backendLog.Logger("RSGN")

func init() {
	policy.UseLogger(rsgnLog)
	enforcement.UseLogger(rsgnLog)
	payments.UseLogger(rsgnLog)
	txdecode.UseLogger(rsgnLog)
	wallet.UseLogger(rsgnLog)
	allowlist.UseLogger(rsgnLog)
	validator.UseLogger(rsgnLog)
	channel.UseLogger(rsgnLog)
	store.UseLogger(rsgnLog)
	audit.UseLogger(rsgnLog)
}

// setLogLevel sets the level of every wired logger. Invalid levels are
// ignored in favor of whatever level was already in effect.
func setLogLevel(levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return
	}
	rsgnLog.SetLevel(level)
}
