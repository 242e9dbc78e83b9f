package wallet

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/psbt"
)

// SpendableUTXO pairs a tracked UTXO with the descriptor and leaf index
// needed to reconstruct its spending conditions (key-origin metadata,
// witness script for multisig). Descriptor is the chain-level descriptor
// the UTXO's address was derived from (external or internal), not any one
// participant's individual key, so the same SpendableUTXO shape covers
// both single-key and multisig wallets.
type SpendableUTXO struct {
	UTXORecord
	Descriptor *Descriptor
	Index      uint32
}

// TxOutput is a single requested payment output.
type TxOutput struct {
	PkScript []byte
	Value    int64
}

// FeeKind selects how CreateTxRequest.FeeSpec specifies the fee.
type FeeKind int

const (
	// FeeRate sizes the fee from the estimated transaction vsize times a
	// sat/vByte rate.
	FeeRate FeeKind = iota
	// FeeAbsolute fixes the fee to an exact satoshi amount regardless of
	// transaction size.
	FeeAbsolute
)

// FeeSpec describes how BuildPSBT should size the transaction fee.
type FeeSpec struct {
	Kind            FeeKind
	RateSatPerVByte int64 // meaningful for FeeRate; defaultFeeRateSatPerVByte if <= 0
	AbsoluteSats    int64 // meaningful for FeeAbsolute
}

// ChangePolicy controls whether and how BuildPSBT attaches a change output.
type ChangePolicy int

const (
	// ChangeAllow attaches a change output unless it would fall below the
	// dust threshold, in which case the leftover is absorbed into the fee.
	ChangeAllow ChangePolicy = iota
	// ChangeForbid never attaches a change output; any leftover beyond the
	// requested outputs and fee is absorbed into the fee.
	ChangeForbid
	// ChangeOnlyChange attaches a change output for any positive leftover,
	// even one below the dust threshold. A leftover of exactly 0 gets no
	// change output.
	ChangeOnlyChange
)

// dustThreshold is the minimum non-dust output value this SDK will attach
// as change under ChangeAllow: the standard P2PKH dust limit, which is
// above the P2WPKH (294) and P2WSH (330) limits most full nodes relay.
const dustThreshold = 546

// rbfSequence is the sequence number BuildPSBT sets on every input to
// opt in to replace-by-fee per BIP125. spec.md's create_tx algorithm
// always enables RBF flagging regardless of CreateTxRequest.RBF, which is
// retained only for request/response round-tripping.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// defaultFeeRateSatPerVByte is a conservative fixed estimator used when a
// FeeSpec's rate is unset. A real mempool-driven estimator has no
// grounding in the retrieval pack's dependency set, so the SDK does not
// fabricate one.
const defaultFeeRateSatPerVByte = 2

// estimatedVirtualSize approximates a P2WPKH-input, P2WPKH-output
// transaction's vsize for fee estimation: ~68 vbytes per segwit input,
// ~31 vbytes per output, plus a ~11 vbyte overhead.
func estimatedVirtualSize(numInputs, numOutputs int) int64 {
	return int64(11 + numInputs*68 + numOutputs*31)
}

// BuildPSBT selects from utxos (largest-first, the simplest of the
// teacher-adjacent coin-selection strategies in the pack, see
// lnwallet/chanfunding/coin_select.go) enough inputs to cover outputs plus
// a fee sized per feeSpec, and returns an unsigned PSBT paying change (if
// changePolicy allows it) to changePkScript. It returns the selected
// inputs and the actual change amount attached (0 if none).
func BuildPSBT(
	net *chaincfg.Params,
	utxos []SpendableUTXO,
	outputs []TxOutput,
	changePkScript []byte,
	feeSpec FeeSpec,
	changePolicy ChangePolicy,
) (*psbt.Packet, []SpendableUTXO, int64, error) {
	if len(utxos) == 0 {
		return nil, nil, 0, ErrNoUtxos
	}

	sorted := make([]SpendableUTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var target int64
	for _, o := range outputs {
		target += o.Value
	}

	rate := feeSpec.RateSatPerVByte
	if rate <= 0 {
		rate = defaultFeeRateSatPerVByte
	}
	changeOutputs := 1
	if changePolicy == ChangeForbid {
		changeOutputs = 0
	}
	estimateFee := func(numInputs int) int64 {
		if feeSpec.Kind == FeeAbsolute {
			return feeSpec.AbsoluteSats
		}
		return estimatedVirtualSize(numInputs, len(outputs)+changeOutputs) * rate
	}

	var selected []SpendableUTXO
	var total int64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Value
		if total >= target+estimateFee(len(selected)) {
			break
		}
	}

	fee := estimateFee(len(selected))
	if total < target+fee {
		return nil, nil, 0, ErrInsufficientFunds
	}

	txIns := make([]*wire.TxIn, len(selected))
	for i, u := range selected {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, nil, 0, wrap(err)
		}
		txIns[i] = wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
		txIns[i].Sequence = rbfSequence
	}

	txOuts := make([]*wire.TxOut, 0, len(outputs)+1)
	for _, o := range outputs {
		txOuts = append(txOuts, wire.NewTxOut(o.Value, o.PkScript))
	}

	change := total - target - fee
	switch changePolicy {
	case ChangeForbid:
		change = 0
	case ChangeOnlyChange:
		// always attach, even below dust
	default: // ChangeAllow
		if change < dustThreshold {
			change = 0
		}
	}
	if change > 0 && changePkScript != nil {
		txOuts = append(txOuts, wire.NewTxOut(change, changePkScript))
	} else {
		change = 0
	}

	unsignedTx := wire.NewMsgTx(wire.TxVersion)
	unsignedTx.TxIn = txIns
	unsignedTx.TxOut = txOuts

	pkt, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		return nil, nil, 0, wrap(err)
	}

	for i, u := range selected {
		addr, err := u.Descriptor.Derive(net, u.Index)
		if err != nil {
			return nil, nil, 0, err
		}

		pkt.Inputs[i].WitnessUtxo = wire.NewTxOut(u.Value, u.PkScript)
		if len(addr.WitnessScript) > 0 {
			pkt.Inputs[i].WitnessScript = addr.WitnessScript
		}

		derivations := make([]*psbt.Bip32Derivation, len(u.Descriptor.Keys))
		for j, k := range u.Descriptor.Keys {
			pub, err := leafPubKey(k, u.Index)
			if err != nil {
				return nil, nil, 0, err
			}
			derivations[j] = &psbt.Bip32Derivation{
				PubKey:               pub.SerializeCompressed(),
				MasterKeyFingerprint: fingerprintBytes(k.MasterFingerprint),
				Bip32Path:            append(append([]uint32{}, k.Path...), u.Index),
			}
		}
		pkt.Inputs[i].Bip32Derivation = derivations
	}

	return pkt, selected, change, nil
}

// matchSigningKey returns the private key among keys whose key-origin
// metadata matches bip's fingerprint and path, or nil if none of keys can
// sign this input. Matching is decoupled from any single "master" key
// reference so the same logic covers single-key and multisig wallets.
func matchSigningKey(keys []*KeyWithPath, bip *psbt.Bip32Derivation) *KeyWithPath {
	for _, k := range keys {
		if !k.IsPrivate() {
			continue
		}
		if fingerprintBytes(k.MasterFingerprint) != bip.MasterKeyFingerprint {
			continue
		}
		if len(bip.Bip32Path) != len(k.Path)+1 {
			continue
		}
		match := true
		for i, p := range k.Path {
			if bip.Bip32Path[i] != p {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return nil
}

// alreadySigned reports whether in already carries a partial signature for
// pubKey.
func alreadySigned(in *psbt.PInput, pubKey []byte) bool {
	for _, sig := range in.PartialSigs {
		if bytes.Equal(sig.PubKey, pubKey) {
			return true
		}
	}
	return false
}

// signInput adds key's partial signature for pkt's input i, if not already
// present. For a multisig (wsh(sortedmulti)) input the sighash subscript is
// the witness script attached by BuildPSBT; for single-key wpkh inputs it
// is the prevout's own pkScript, relying on btcd's standard witness-v0
// P2WKH sighash handling.
func signInput(pkt *psbt.Packet, i int, key *KeyWithPath, leafIndex uint32) error {
	leaf, err := key.ExtendedKey.Derive(leafIndex)
	if err != nil {
		return wrap(err)
	}
	privKey, err := leaf.ECPrivKey()
	if err != nil {
		return wrap(err)
	}
	pubKey, err := leaf.ECPubKey()
	if err != nil {
		return wrap(err)
	}

	in := &pkt.Inputs[i]
	pubBytes := pubKey.SerializeCompressed()
	if alreadySigned(in, pubBytes) {
		return nil
	}

	subscript := in.WitnessUtxo.PkScript
	if len(in.WitnessScript) > 0 {
		subscript = in.WitnessScript
	}

	sigHashes := txscript.NewTxSigHashes(pkt.UnsignedTx, prevOutFetcher(pkt))
	sig, err := txscript.RawTxInWitnessSignature(
		pkt.UnsignedTx, sigHashes, i, in.WitnessUtxo.Value, subscript,
		txscript.SigHashAll, privKey,
	)
	if err != nil {
		return wrap(err)
	}

	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubBytes,
		Signature: sig,
	})
	return nil
}

// SignWithKeys adds a partial signature to every pkt input that one of keys
// can sign, then attempts to finalize each input. It does not error when an
// input can't yet be finalized (insufficient multisig signatures): the
// caller inspects the returned bool and, if false, relays pkt to the next
// co-signer, per the multi-sig signing flow.
func SignWithKeys(pkt *psbt.Packet, keys []*KeyWithPath) (bool, error) {
	for i := range pkt.Inputs {
		in := &pkt.Inputs[i]
		if in.WitnessUtxo == nil {
			continue
		}
		for _, bip := range in.Bip32Derivation {
			key := matchSigningKey(keys, bip)
			if key == nil {
				continue
			}
			leafIndex := bip.Bip32Path[len(bip.Bip32Path)-1]
			if err := signInput(pkt, i, key, leafIndex); err != nil {
				return false, err
			}
		}
	}
	return tryFinalizeAll(pkt), nil
}

// tryFinalizeAll attempts to finalize every unfinalized input of pkt,
// leaving inputs that don't yet carry enough signatures untouched. It
// returns whether every input in pkt is now finalized.
func tryFinalizeAll(pkt *psbt.Packet) bool {
	allFinal := true
	for i := range pkt.Inputs {
		in := &pkt.Inputs[i]
		if in.FinalScriptSig != nil || in.FinalScriptWitness != nil {
			continue
		}
		if err := psbt.Finalize(pkt, i); err != nil {
			allFinal = false
			continue
		}
	}
	return allFinal
}

func prevOutFetcher(pkt *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			continue
		}
		fetcher.AddPrevOut(pkt.UnsignedTx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
	}
	return fetcher
}

// ExtractTx returns the fully-signed wire.MsgTx from pkt, failing with
// ErrNotFinalized if any input is missing a finalized witness/script.
func ExtractTx(pkt *psbt.Packet) (*wire.MsgTx, error) {
	if !pkt.IsComplete() {
		return nil, ErrNotFinalized
	}
	return psbt.Extract(pkt)
}

// SerializeTx returns the raw wire-format bytes of tx.
func SerializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, wrap(err)
	}
	return buf.Bytes(), nil
}
