package wallet

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// openMultisigWallet opens a 2-of-3 multi-sig wallet for participant self,
// holding its own private key from keys[self] and watch-only (neutered)
// copies of the other two participants' keys.
func openMultisigWallet(t *testing.T, self int, keys []*KeyWithPath, indexer IndexerClient) *Wallet {
	t.Helper()

	participantKeys := make([]*KeyWithPath, len(keys))
	for i, k := range keys {
		if i == self {
			participantKeys[i] = k
			continue
		}
		pub, err := k.Neutered()
		require.NoError(t, err)
		participantKeys[i] = pub
	}

	w, err := Open(Config{
		Name:              fmt.Sprintf("party-%d", self),
		Net:               &chaincfg.MainNetParams,
		StorePath:         filepath.Join(t.TempDir(), "multisig.db"),
		Indexer:           indexer,
		MultisigKeys:      participantKeys,
		MultisigThreshold: 2,
		AddressLookAhead:  3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// TestMultisigSignFinalizesOnlyAfterThresholdSignatures is the three-party
// 2-of-3 multi-sig sign/broadcast flow: party A builds the transaction and
// adds the first partial signature without yet reaching threshold
// (finalized must stay false so the PSBT is relayed on), party C's
// independently-opened wallet signs and finalizes it, producing a witness
// that validates against the funding output's script, and party B
// broadcasts it.
func TestMultisigSignFinalizesOnlyAfterThresholdSignatures(t *testing.T) {
	keys := threePartyAccountKeys(t)

	refDesc, err := NewSortedMultisigDescriptor(2, keys)
	require.NoError(t, err)
	fundAddr, err := refDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	destAddr, err := refDesc.Derive(&chaincfg.MainNetParams, 5)
	require.NoError(t, err)

	indexer := &fakeIndexer{
		utxoAddr: fundAddr.Address.String(),
		utxo:     UTXOInfo{TxID: "44" + zeros(60), Vout: 0, Value: 200_000, Height: 10},
		height:   10,
	}

	partyA := openMultisigWallet(t, 0, keys, indexer)
	partyB := openMultisigWallet(t, 1, keys, indexer)
	partyC := openMultisigWallet(t, 2, keys, indexer)

	require.NoError(t, partyA.Sync(context.Background()))

	psbtBytes, details, err := partyA.CreateTx(CreateTxRequest{
		Recipients:   []Recipient{{Address: destAddr.Address.String(), AmountSats: 50_000}},
		FeeSpec:      FeeSpec{Kind: FeeRate},
		ChangePolicy: ChangeAllow,
	})
	require.NoError(t, err)
	require.Equal(t, 1, details.InputCount)
	require.Equal(t, int64(50_000), details.Recipients[0].AmountSats)

	// Party A (the builder) isn't required to sign its own creation, but
	// can: a single partial signature is not enough to reach threshold 2.
	onceSigned, finalizedAfterA, err := partyA.Sign(psbtBytes)
	require.NoError(t, err)
	require.False(t, finalizedAfterA)

	// Party C never touched this PSBT before; it receives party A's
	// partially-signed packet by relay.
	twiceSigned, finalizedAfterC, err := partyC.Sign(onceSigned)
	require.NoError(t, err)
	require.True(t, finalizedAfterC)

	rawTx, err := partyC.ExtractFinalTx(twiceSigned)
	require.NoError(t, err)
	require.NotEmpty(t, rawTx)

	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(rawTx)))

	prevFetcher := txscript.NewCannedPrevOutputFetcher(fundAddr.PkScript, 200_000)
	sigHashes := txscript.NewTxSigHashes(&tx, prevFetcher)
	vm, err := txscript.NewEngine(
		fundAddr.PkScript, &tx, 0, txscript.StandardVerifyFlags, nil, sigHashes, 200_000, prevFetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())

	txid, err := partyB.Broadcast(context.Background(), rawTx)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", txid)
}

func TestMultisigWalletHasNoInternalDescriptor(t *testing.T) {
	keys := threePartyAccountKeys(t)
	w := openMultisigWallet(t, 0, keys, nil)
	require.Nil(t, w.intDesc)

	change, err := w.NewChangeAddress()
	require.NoError(t, err)
	receive, err := w.NewAddress()
	require.NoError(t, err)
	require.NotEqual(t, change.Address.String(), receive.Address.String())
}
