package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/remotesigner/policy"
)

const (
	defaultDataDirname   = "data"
	defaultLogLevel      = "info"
	defaultTLSCertFile   = "tls.cert"
	defaultTLSKeyFile    = "tls.key"
	defaultRPCPort       = 10019
	defaultChannelDBName = "remotesigner.db"
)

var defaultConfigDir = btcutil.AppDataDir("remotesigner", false)

// config mirrors the way lnd's own daemon config is built: a flat struct of
// flags, annotated for jessevdk/go-flags, with defaults filled in before
// parsing so a bare invocation with no flags at all still runs.
type config struct {
	DataDir string `long:"datadir" description:"Directory to store the channel state database in."`

	RPCListen string `long:"rpclisten" description:"host:port the status/admin listener binds to."`

	TLSCertPath string `long:"tlscertpath" description:"Path to write the self-signed TLS certificate to."`
	TLSKeyPath  string `long:"tlskeypath" description:"Path to write the self-signed TLS key to."`

	LogLevel string `long:"loglevel" description:"Logging level for all subsystems."`

	Policy policyFlags `group:"policy" namespace:"policy"`
}

// policyFlags exposes policy.Config's tunables on the command line, the way
// lnd exposes sub-RPC-server config structs via the `group`/`namespace`
// jessevdk/go-flags tags.
type policyFlags struct {
	MinDelay           uint16 `long:"mindelay" description:"Minimum accepted to_self_delay."`
	MaxDelay           uint16 `long:"maxdelay" description:"Maximum accepted to_self_delay."`
	ChannelValueMaxSat uint64 `long:"maxchannelvalue" description:"Maximum accepted channel value, in satoshis."`
}

func defaultConfig() *config {
	return &config{
		DataDir:     filepath.Join(defaultConfigDir, defaultDataDirname),
		RPCListen:   fmt.Sprintf("localhost:%d", defaultRPCPort),
		TLSCertPath: filepath.Join(defaultConfigDir, defaultTLSCertFile),
		TLSKeyPath:  filepath.Join(defaultConfigDir, defaultTLSKeyFile),
		LogLevel:    defaultLogLevel,
		Policy: policyFlags{
			MinDelay:           policy.DefaultConfig().MinDelay,
			MaxDelay:           policy.DefaultConfig().MaxDelay,
			ChannelValueMaxSat: uint64(policy.DefaultConfig().ChannelValueMaxSat),
		},
	}
}

// loadConfig parses command-line flags over a set of defaults, the same
// two-step shape lnd's own loadConfig follows (preCfg defaults, then
// flags.Parse overlays them).
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create data directory: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.TLSCertPath), 0700); err != nil {
		return nil, fmt.Errorf("unable to create tls directory: %v", err)
	}

	return cfg, nil
}

func (c *config) policyConfig() policy.Config {
	cfg := policy.DefaultConfig()
	if c.Policy.MinDelay != 0 {
		cfg.MinDelay = c.Policy.MinDelay
	}
	if c.Policy.MaxDelay != 0 {
		cfg.MaxDelay = c.Policy.MaxDelay
	}
	if c.Policy.ChannelValueMaxSat != 0 {
		cfg.ChannelValueMaxSat = btcutil.Amount(c.Policy.ChannelValueMaxSat)
	}
	return cfg
}
