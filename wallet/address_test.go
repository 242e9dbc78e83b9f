package wallet

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestDeriveWPKHAddressIsDeterministic(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)

	desc := NewWPKHDescriptor(external)

	a1, err := desc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	a2, err := desc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)

	require.Equal(t, a1.Address.String(), a2.Address.String())
}

func TestDeriveWPKHAddressChangesByIndex(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)
	desc := NewWPKHDescriptor(external)

	a0, err := desc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	a1, err := desc.Derive(&chaincfg.MainNetParams, 1)
	require.NoError(t, err)

	require.NotEqual(t, a0.Address.String(), a1.Address.String())
}

// TestSortedMultisigAddressAgreesAcrossParties reproduces the original
// SDK's multisig test property: every participant, deriving the same
// account index independently with the other parties' public keys, arrives
// at the identical multisig address.
func TestSortedMultisigAddressAgreesAcrossParties(t *testing.T) {
	keys := threePartyAccountKeys(t)

	// Each "party" builds the descriptor with the same key set but in a
	// different listed order; sortedmulti must still converge.
	orderA := []*KeyWithPath{keys[0], keys[1], keys[2]}
	orderB := []*KeyWithPath{keys[2], keys[0], keys[1]}
	orderC := []*KeyWithPath{keys[1], keys[2], keys[0]}

	descA, err := NewSortedMultisigDescriptor(2, orderA)
	require.NoError(t, err)
	descB, err := NewSortedMultisigDescriptor(2, orderB)
	require.NoError(t, err)
	descC, err := NewSortedMultisigDescriptor(2, orderC)
	require.NoError(t, err)

	addrA, err := descA.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	addrB, err := descB.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	addrC, err := descC.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)

	require.Equal(t, addrA.Address.String(), addrB.Address.String())
	require.Equal(t, addrA.Address.String(), addrC.Address.String())
	require.Equal(t, addrA.Pubkeys, addrB.Pubkeys)
}

func TestSortedMultisigPubkeysIsBIP67Ordered(t *testing.T) {
	a := []byte{0x03, 0x01}
	b := []byte{0x02, 0x99}
	c := []byte{0x03, 0x00}

	sorted := SortedMultisigPubkeys([][]byte{a, b, c})
	require.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		require.True(t, bytes.Compare(sorted[i-1], sorted[i]) <= 0)
	}
}
