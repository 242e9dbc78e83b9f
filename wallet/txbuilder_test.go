package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestBuildSignExtractPSBTRoundTrip(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, internal, err := master.Account(0)
	require.NoError(t, err)

	extDesc := NewWPKHDescriptor(external)
	intDesc := NewWPKHDescriptor(internal)

	fundAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	changeAddr, err := intDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	destAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 1)
	require.NoError(t, err)

	utxo := SpendableUTXO{
		UTXORecord: UTXORecord{
			TxID:     "11" + zeros(60),
			Vout:     0,
			Value:    100_000,
			PkScript: fundAddr.PkScript,
			Address:  fundAddr.Address.String(),
		},
		Descriptor: extDesc,
		Index:      0,
	}

	pkt, selected, change, err := BuildPSBT(
		&chaincfg.MainNetParams,
		[]SpendableUTXO{utxo},
		[]TxOutput{{PkScript: destAddr.PkScript, Value: 50_000}},
		changeAddr.PkScript,
		FeeSpec{Kind: FeeRate},
		ChangeAllow,
	)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Greater(t, change, int64(0))

	finalized, err := SignWithKeys(pkt, []*KeyWithPath{external})
	require.NoError(t, err)
	require.True(t, finalized)

	tx, err := ExtractTx(pkt)
	require.NoError(t, err)
	require.Len(t, tx.TxOut, 2) // destination + change
	require.Equal(t, int64(50_000), tx.TxOut[0].Value)
	require.Equal(t, uint32(rbfSequence), tx.TxIn[0].Sequence)

	// The extracted witness must actually validate against the funding
	// output's script, not just be present.
	prevFetcher := txscript.NewCannedPrevOutputFetcher(fundAddr.PkScript, utxo.Value)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)
	vm, err := txscript.NewEngine(
		fundAddr.PkScript, tx, 0, txscript.StandardVerifyFlags, nil, sigHashes, utxo.Value, prevFetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())

	raw, err := SerializeTx(tx)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}

func TestBuildPSBTFailsWithInsufficientFunds(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)
	extDesc := NewWPKHDescriptor(external)

	fundAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	destAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 1)
	require.NoError(t, err)

	utxo := SpendableUTXO{
		UTXORecord: UTXORecord{TxID: "22" + zeros(60), Vout: 0, Value: 1000, PkScript: fundAddr.PkScript},
		Descriptor: extDesc,
		Index:      0,
	}

	_, _, _, err = BuildPSBT(
		&chaincfg.MainNetParams,
		[]SpendableUTXO{utxo},
		[]TxOutput{{PkScript: destAddr.PkScript, Value: 50_000}},
		nil,
		FeeSpec{Kind: FeeRate},
		ChangeAllow,
	)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBuildPSBTFailsWithNoUtxos(t *testing.T) {
	_, _, _, err := BuildPSBT(
		&chaincfg.MainNetParams, nil, []TxOutput{{PkScript: []byte{0x00}, Value: 1}}, nil,
		FeeSpec{Kind: FeeRate}, ChangeAllow,
	)
	require.ErrorIs(t, err, ErrNoUtxos)
}

func TestBuildPSBTChangeForbidAbsorbsLeftoverIntoFee(t *testing.T) {
	master, err := NewMasterKeyFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	require.NoError(t, err)
	external, _, err := master.Account(0)
	require.NoError(t, err)
	extDesc := NewWPKHDescriptor(external)

	fundAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 0)
	require.NoError(t, err)
	destAddr, err := extDesc.Derive(&chaincfg.MainNetParams, 1)
	require.NoError(t, err)

	utxo := SpendableUTXO{
		UTXORecord: UTXORecord{TxID: "33" + zeros(60), Vout: 0, Value: 100_000, PkScript: fundAddr.PkScript},
		Descriptor: extDesc,
		Index:      0,
	}

	pkt, _, change, err := BuildPSBT(
		&chaincfg.MainNetParams,
		[]SpendableUTXO{utxo},
		[]TxOutput{{PkScript: destAddr.PkScript, Value: 50_000}},
		nil,
		FeeSpec{Kind: FeeRate},
		ChangeForbid,
	)
	require.NoError(t, err)
	require.Equal(t, int64(0), change)
	require.Len(t, pkt.UnsignedTx.TxOut, 1)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
