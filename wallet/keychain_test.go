package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// testMnemonic is the exact vector used by the original SDK's wallet test
// suite.
const testMnemonic = "aim bunker wash balance finish force paper analyst cabin spoon stable organ"

func TestNewMnemonicProducesValidPhrase(t *testing.T) {
	m, err := NewMnemonic(128)
	require.NoError(t, err)
	require.True(t, ValidateMnemonic(m))
	require.Len(t, strings.Fields(m), 12)
}

func TestNewMnemonic24Words(t *testing.T) {
	m, err := NewMnemonic(256)
	require.NoError(t, err)
	require.Len(t, strings.Fields(m), 24)
}

func TestValidateMnemonicRejectsGarbage(t *testing.T) {
	require.False(t, ValidateMnemonic("not a real mnemonic phrase at all"))
}

func TestMasterKeyFromMnemonicIsDeterministic(t *testing.T) {
	m1, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	m2, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, m1.Fingerprint, m2.Fingerprint)
	require.Equal(t, m1.ExtendedKey.String(), m2.ExtendedKey.String())
}

func TestMasterKeyRejectsInvalidMnemonic(t *testing.T) {
	_, err := NewMasterKeyFromMnemonic("totally invalid", "", &chaincfg.MainNetParams)
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestAccountDerivesDistinctExternalInternalChains(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	external, internal, err := master.Account(0)
	require.NoError(t, err)

	require.Equal(t, DerivationPath{Harden(44), Harden(0), Harden(0), ExternalChain}, external.Path)
	require.Equal(t, DerivationPath{Harden(44), Harden(0), Harden(0), InternalChain}, internal.Path)
	require.Equal(t, master.Fingerprint, external.MasterFingerprint)
	require.Equal(t, master.Fingerprint, internal.MasterFingerprint)

	require.NotEqual(t, external.ExtendedKey.String(), internal.ExtendedKey.String())
}

func TestDeriveAddressKeyExtendsPath(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	external, _, err := master.Account(0)
	require.NoError(t, err)

	leaf, err := master.DeriveAddressKey(external, 7)
	require.NoError(t, err)
	require.Equal(t, append(append(DerivationPath{}, external.Path...), 7), leaf.Path)
}

