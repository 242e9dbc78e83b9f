package wallet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// fakeIndexer is a deterministic stand-in for a real block-explorer
// backend: it reports one UTXO for exactly one known address and nothing
// for any other, which is enough to exercise Sync's gap-limit scan without
// a network dependency.
type fakeIndexer struct {
	utxoAddr string
	utxo     UTXOInfo
	height   int32
}

func (f *fakeIndexer) FetchUTXOs(_ context.Context, addresses []string) ([]UTXOInfo, error) {
	for _, a := range addresses {
		if a == f.utxoAddr {
			return []UTXOInfo{f.utxo}, nil
		}
	}
	return nil, nil
}

func (f *fakeIndexer) BroadcastTx(_ context.Context, rawTx []byte) (string, error) {
	return "deadbeef", nil
}

func (f *fakeIndexer) FetchHeight(_ context.Context) (int32, error) {
	return f.height, nil
}

func openTestWallet(t *testing.T, indexer IndexerClient) *Wallet {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "wallet.db")

	w, err := Open(Config{
		Name:             "test",
		Net:              &chaincfg.MainNetParams,
		Mnemonic:         testMnemonic,
		StorePath:        storePath,
		Indexer:          indexer,
		AddressLookAhead: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestNewAddressWatchesAndIncrementsIndex(t *testing.T) {
	w := openTestWallet(t, nil)

	a0, err := w.NewAddress()
	require.NoError(t, err)
	a1, err := w.NewAddress()
	require.NoError(t, err)

	require.NotEqual(t, a0.Address.String(), a1.Address.String())

	watched, err := w.store.WatchedAddresses()
	require.NoError(t, err)
	require.Len(t, watched, 2)
}

func TestSyncDiscoversUtxoWithinLookAhead(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)
	extDesc := NewWPKHDescriptor(external)

	fundedAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 1)
	require.NoError(t, err)

	indexer := &fakeIndexer{
		utxoAddr: fundedAddr.Address.String(),
		utxo:     UTXOInfo{TxID: "aa" + zeros(60), Vout: 0, Value: 42_000, Height: 100},
		height:   100,
	}

	w := openTestWallet(t, indexer)
	require.NoError(t, w.Sync(context.Background()))

	balance, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, int64(42_000), balance)
}

func TestSyncStopsAtLookAheadWithoutActivity(t *testing.T) {
	indexer := &fakeIndexer{utxoAddr: "never-matches"}
	w := openTestWallet(t, indexer)

	require.NoError(t, w.Sync(context.Background()))

	balance, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

func TestSendToAddressBuildsSignsAndBroadcasts(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)
	extDesc := NewWPKHDescriptor(external)

	fundedAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)

	indexer := &fakeIndexer{
		utxoAddr: fundedAddr.Address.String(),
		utxo:     UTXOInfo{TxID: "bb" + zeros(60), Vout: 0, Value: 100_000, Height: 50},
		height:   50,
	}

	w := openTestWallet(t, indexer)
	require.NoError(t, w.Sync(context.Background()))

	dest, err := extDesc.Derive(&chaincfg.MainNetParams, 99)
	require.NoError(t, err)

	txid, err := w.SendToAddress(context.Background(), dest.PkScript, 10_000)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", txid)
}
