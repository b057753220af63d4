// Package wallet implements the Wallet View (C1): pure BIP32 derivation and
// script comparison used to decide whether an output in a transaction under
// validation pays back to a key the signer itself controls, with no access
// to any private key material or external service.
package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// KeyOrigin is a BIP32 derivation path rooted at the signer's own extended
// key. Index values with the high bit set are hardened, following the
// convention in hdkeychain.
type KeyOrigin struct {
	Path []uint32
}

// View derives addresses from a single extended key and answers whether a
// given output script pays to one of them. It holds no private key
// material: NewView accepts a neutered (public-only) extended key, or
// neuters one that isn't already.
type View struct {
	net     *chaincfg.Params
	rootKey *hdkeychain.ExtendedKey
}

// NewView builds a wallet view rooted at rootKey, grounded on the rootKey
// field kept by the teacher's lnwallet.LightningWallet. The key is neutered
// immediately: nothing in this package ever needs or retains a private key.
func NewView(rootKey *hdkeychain.ExtendedKey, net *chaincfg.Params) (*View, error) {
	pub := rootKey
	if rootKey.IsPrivate() {
		var err error
		pub, err = rootKey.Neuter()
		if err != nil {
			return nil, err
		}
	}
	return &View{net: net, rootKey: pub}, nil
}

// derivePublicKey walks the extended key down the given path, returning the
// leaf public key.
func (v *View) derivePublicKey(origin KeyOrigin) (*btcec.PublicKey, error) {
	key := v.rootKey
	for _, index := range origin.Path {
		var err error
		key, err = key.Derive(index)
		if err != nil {
			return nil, err
		}
	}
	ecPub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	return ecPub, nil
}

// scriptFor returns the P2WPKH output script paying to the key at origin.
// The signer only ever receives to native segwit outputs; other output
// types under our control (e.g. the to_remote anchor-commitment key) are
// matched the same way since they, too, resolve to a single pubkey hash.
func (v *View) scriptFor(origin KeyOrigin) ([]byte, error) {
	pub, err := v.derivePublicKey(origin)
	if err != nil {
		return nil, err
	}
	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, v.net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// IsHolderDestination reports whether outputScript pays to the key derived
// at origin under this view, i.e. whether the holder's wallet would
// recognize this output as its own. This is the C1 operation used by the
// policy validator to check that a sweep transaction's destination is
// either the holder's wallet or an allowlisted external address.
func (v *View) IsHolderDestination(outputScript []byte, origin KeyOrigin) (bool, error) {
	want, err := v.scriptFor(origin)
	if err != nil {
		return false, err
	}
	match := bytesEqual(outputScript, want)
	if !match {
		log.Debugf("output script does not match derived key at %v", origin.Path)
	}
	return match, nil
}

// MatchesOutput scans tx for an output paying to the key at origin,
// returning its index. Grounded on the teacher's findScriptOutputIndex
// (lnwallet/script_utils.go), generalized to a derived destination rather
// than a literal script argument.
func (v *View) MatchesOutput(tx *wire.MsgTx, origin KeyOrigin) (int, bool, error) {
	want, err := v.scriptFor(origin)
	if err != nil {
		return 0, false, err
	}
	for i, out := range tx.TxOut {
		if bytesEqual(out.PkScript, want) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
