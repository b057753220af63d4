// Command remotesignerd brings up the channel manager, the persistence
// store, and the policy validator behind a bare TLS status listener. The
// wire protocol that a watched lnd node would speak to this process is out
// of scope here (see SPEC_FULL.md); this wiring exists to demonstrate that
// every collaborator constructs and shuts down cleanly.
package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/cert"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/remotesigner/audit"
	"github.com/lightningnetwork/remotesigner/channel"
	"github.com/lightningnetwork/remotesigner/store"
	"github.com/lightningnetwork/remotesigner/validator"
)

var shutdownChannel = make(chan struct{})

func remotesignerMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	db, err := kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:     cfg.DataDir,
		DBFileName: defaultChannelDBName,
	})
	if err != nil {
		return fmt.Errorf("unable to open channel database: %v", err)
	}
	defer db.Close()

	chanStore := store.New(db, clock.NewDefaultClock())
	mgr := channel.NewManager(clock.NewDefaultClock())
	pol := validator.NewProductionPolicy(cfg.policyConfig())

	exporter := audit.NewExporter(stdoutSink{})
	defer exporter.Stop()

	monitor := healthcheck.NewMonitor(&healthcheck.Config{
		RemoteSigner: &healthcheck.Observation{
			Check:    storeHealthCheck(chanStore),
			Interval: time.Minute,
			Timeout:  5 * time.Second,
			Backoff:  10 * time.Second,
			Attempts: 3,
		},
	})
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("unable to start health monitor: %v", err)
	}
	defer monitor.Stop()

	tlsCfg, err := getTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("unable to load TLS credentials: %v", err)
	}

	listener, err := tls.Listen("tcp", cfg.RPCListen, tlsCfg)
	if err != nil {
		return fmt.Errorf("unable to listen on %v: %v", cfg.RPCListen, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", statusHandler(mgr, pol))

	srv := &http.Server{Handler: mux}
	go func() {
		rsgnLog.Infof("status listener starting on %v", cfg.RPCListen)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			rsgnLog.Errorf("status listener stopped: %v", err)
		}
	}()
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(shutdownChannel)
	}()

	rsgnLog.Infof("remotesignerd ready")
	<-shutdownChannel
	rsgnLog.Infof("shutdown complete")
	return nil
}

func storeHealthCheck(s *store.Store) func() error {
	return func() error {
		if err := s.Healthy(time.Minute); err != nil {
			rsgnLog.Errorf("persistence health check failed: %v", err)
			return err
		}
		return nil
	}
}

type stdoutSink struct{}

func (stdoutSink) Export(rec audit.Record) {
	rsgnLog.Warnf("rejected request on channel %s: %s (%s)", rec.ChannelID, rec.Message, rec.Tag)
}

func statusHandler(mgr *channel.Manager, pol *validator.ProductionPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "remotesignerd: ok, %d channels tracked, delay range [%d, %d]\n",
			mgr.Count(), pol.Config.MinDelay, pol.Config.MaxDelay)
	}
}

func getTLSConfig(cfg *config) (*tls.Config, error) {
	if !fileExists(cfg.TLSCertPath) && !fileExists(cfg.TLSKeyPath) {
		rsgnLog.Infof("generating TLS certificate pair at %v", cfg.TLSCertPath)
		err := cert.GenCertPair(
			"remotesignerd autogenerated cert", cfg.TLSCertPath,
			cfg.TLSKeyPath, nil, nil, false, cert.DefaultAutogenValidity,
		)
		if err != nil {
			return nil, err
		}
	}

	certData, _, err := cert.LoadCert(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		return nil, err
	}

	return cert.TLSConfFromCert(certData), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func main() {
	if err := remotesignerMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
