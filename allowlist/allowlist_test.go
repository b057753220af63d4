package allowlist

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T) (string, []byte) {
	t.Helper()
	pkHash := make([]byte, 20)
	pkHash[0] = 0x42
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return addr.EncodeAddress(), script
}

func TestAddAndContains(t *testing.T) {
	l := New(&chaincfg.RegressionNetParams)
	addr, script := testAddress(t)

	require.False(t, l.Contains(script))
	require.NoError(t, l.Add(addr))
	require.True(t, l.Contains(script))
}

func TestRemove(t *testing.T) {
	l := New(&chaincfg.RegressionNetParams)
	addr, script := testAddress(t)

	require.NoError(t, l.Add(addr))
	require.NoError(t, l.Remove(addr))
	require.False(t, l.Contains(script))
}

func TestRejectsWrongNetwork(t *testing.T) {
	l := New(&chaincfg.MainNetParams)
	addr, _ := testAddress(t)
	require.Error(t, l.Add(addr))
}

func TestRejectsUnsupportedAddressType(t *testing.T) {
	l := New(&chaincfg.RegressionNetParams)
	pubKeyHash := make([]byte, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.Error(t, l.Add(addr.EncodeAddress()))
}
