// Package allowlist implements the Allowlist (C2): a concurrency-safe set
// of destination addresses that sweep and on-chain transactions are
// permitted to pay out to, normalized so that equivalent encodings of the
// same output script collide.
package allowlist

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// List is a mutex-guarded set of allowed destination scripts, keyed by their
// normalized output script rather than by address string so that different
// encodings of the same destination (e.g. upper/lower-case bech32) collide.
// Grounded on the teacher's htlcswitch.Switch link table
// (htlcswitch/switch.go), which guards a map under sync.RWMutex with the
// same read-mostly, write-rare access pattern.
type List struct {
	mu  sync.RWMutex
	net *chaincfg.Params
	set map[string]struct{}
}

// New creates an empty allowlist for the given network.
func New(net *chaincfg.Params) *List {
	return &List{
		net: net,
		set: make(map[string]struct{}),
	}
}

// normalize parses addr and returns its canonical output script, rejecting
// address encodings outside the set this signer is willing to pay to:
// P2WPKH, P2WSH, P2TR and P2SH. A P2SH address is accepted whatever script
// it wraps; nested P2SH-P2WPKH/P2WSH is not told apart from other P2SH.
func (l *List) normalize(addr string) (string, error) {
	a, err := btcutil.DecodeAddress(addr, l.net)
	if err != nil {
		return "", err
	}
	if !a.IsForNet(l.net) {
		return "", errWrongNetwork(addr)
	}
	switch a.(type) {
	case *btcutil.AddressWitnessPubKeyHash,
		*btcutil.AddressWitnessScriptHash,
		*btcutil.AddressTaproot,
		*btcutil.AddressScriptHash:
	default:
		return "", errUnsupportedAddressType(addr)
	}
	script, err := txscript.PayToAddrScript(a)
	if err != nil {
		return "", err
	}
	return string(script), nil
}

// Add normalizes and inserts addr into the allowlist.
func (l *List) Add(addr string) error {
	key, err := l.normalize(addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set[key] = struct{}{}
	log.Infof("added %s to allowlist", key)
	return nil
}

// Remove normalizes and deletes addr from the allowlist. Removing an
// address not present is a no-op.
func (l *List) Remove(addr string) error {
	key, err := l.normalize(addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.set, key)
	return nil
}

// Contains reports whether outputScript pays to an allowlisted destination.
func (l *List) Contains(outputScript []byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.set[string(outputScript)]
	return ok
}

// Addresses returns every address currently on the allowlist, in no
// particular order, decoded back from their normalized scripts.
func (l *List) Addresses() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.set))
	for key := range l.set {
		addr, err := extractAddress([]byte(key), l.net)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func extractAddress(script []byte, net *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, net)
	if err != nil {
		return "", err
	}
	if len(addrs) != 1 {
		return "", errUnsupportedAddressType(string(script))
	}
	return addrs[0].EncodeAddress(), nil
}

type errWrongNetwork string

func (e errWrongNetwork) Error() string { return "address for wrong network: " + string(e) }

type errUnsupportedAddressType string

func (e errUnsupportedAddressType) Error() string {
	return "unsupported address type: " + string(e)
}
