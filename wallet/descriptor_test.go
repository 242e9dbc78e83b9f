package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestWPKHDescriptorStringFormat(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)

	external, _, err := master.Account(0)
	require.NoError(t, err)

	desc := NewWPKHDescriptor(external)
	s := desc.String()

	require.True(t, strings.HasPrefix(s, "wpkh(["))
	require.True(t, strings.HasSuffix(s, "/*)"))
	require.Contains(t, s, "/44'/0'/0'/0]")
}

func TestSortedMultisigDescriptorRejectsBadThreshold(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)

	_, err = NewSortedMultisigDescriptor(0, []*KeyWithPath{external})
	require.ErrorIs(t, err, ErrThresholdOutOfRange)

	_, err = NewSortedMultisigDescriptor(2, []*KeyWithPath{external})
	require.ErrorIs(t, err, ErrThresholdOutOfRange)
}

func TestSortedMultisigDescriptorStringFormat(t *testing.T) {
	keys := threePartyAccountKeys(t)

	desc, err := NewSortedMultisigDescriptor(2, keys)
	require.NoError(t, err)

	s := desc.String()
	require.True(t, strings.HasPrefix(s, "wsh(sortedmulti(2,["))
	require.Equal(t, 3, strings.Count(s, "xpub"))
}

// threePartyAccountKeys derives three independent parties' external chain
// keys at account 0, the same shape as the original SDK's 3-party 2-of-3
// multisig test.
func threePartyAccountKeys(t *testing.T) []*KeyWithPath {
	t.Helper()

	mnemonics := []string{
		testMnemonic,
		"legal winner thank year wave sausage worth useful legal winner thank yellow",
		"letter advice cage absurd amount doctor acoustic avoid letter advice cage above",
	}

	keys := make([]*KeyWithPath, len(mnemonics))
	for i, m := range mnemonics {
		master, err := NewMasterKeyFromMnemonic(m, "", &chaincfg.MainNetParams)
		require.NoError(t, err)
		ext, _, err := master.Account(0)
		require.NoError(t, err)
		keys[i] = ext
	}
	return keys
}
