package wallet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/psbt"
)

// Recipient is a single requested payment: an address and an amount in
// satoshis.
type Recipient struct {
	Address    string
	AmountSats int64
}

// CreateTxRequest describes a transaction to build, independent of who
// will eventually sign it. spec.md §4.9 splits transaction construction
// (CreateTx), signing (Sign), and broadcast (Broadcast) into separately
// callable operations specifically so a multi-sig PSBT can be built by one
// participant, signed by others in turn, and broadcast once finalized.
type CreateTxRequest struct {
	Recipients   []Recipient
	FeeSpec      FeeSpec
	ChangePolicy ChangePolicy
	// RBF is carried for request/response round-tripping; BuildPSBT always
	// flags replace-by-fee regardless of this field's value, per spec.md
	// §4.9's create_tx algorithm ("Always enable replace-by-fee flagging").
	RBF bool
}

// TxDetails summarizes a transaction CreateTx built, for display/approval
// before signing.
type TxDetails struct {
	Recipients   []Recipient
	Fee          int64
	ChangeAmount int64
	InputCount   int
	OutputCount  int
}

// AddressKind selects which address Wallet.Address returns.
type AddressKind int

const (
	// AddressNew derives and watches a fresh, never-before-issued address.
	AddressNew AddressKind = iota
	// AddressLastUnused returns the next address that would be issued,
	// without advancing the derivation index, so repeated calls are
	// idempotent as long as no New address is issued in between.
	AddressLastUnused
	// AddressPeek returns the address at an explicit index, without
	// touching the derivation index or watch set at all.
	AddressPeek
)

// Address resolves kind to a concrete address. peekIndex is only used for
// AddressPeek.
func (w *Wallet) Address(kind AddressKind, peekIndex uint32) (*DerivedAddress, error) {
	switch kind {
	case AddressNew:
		return w.NewAddress()
	case AddressLastUnused:
		idx, err := w.store.PeekNextIndex(ExternalChain)
		if err != nil {
			return nil, err
		}
		return w.extDesc.Derive(w.net, idx)
	case AddressPeek:
		return w.extDesc.Derive(w.net, peekIndex)
	default:
		return nil, fmt.Errorf("wallet: unknown address kind %d", kind)
	}
}

// CreateTx builds an unsigned PSBT paying req.Recipients from tracked
// UTXOs, selecting a fee per req.FeeSpec and attaching change per
// req.ChangePolicy. It returns the PSBT's serialized bytes plus a summary
// of the transaction's shape, without signing or broadcasting anything.
func (w *Wallet) CreateTx(req CreateTxRequest) ([]byte, TxDetails, error) {
	if len(req.Recipients) == 0 {
		return nil, TxDetails{}, fmt.Errorf("wallet: create_tx requires at least one recipient")
	}

	spendable, err := w.spendableUTXOs()
	if err != nil {
		return nil, TxDetails{}, err
	}

	outputs := make([]TxOutput, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		addr, err := btcutil.DecodeAddress(r.Address, w.net)
		if err != nil {
			return nil, TxDetails{}, fmt.Errorf("wallet: invalid recipient address %q: %w", r.Address, err)
		}
		if !addr.IsForNet(w.net) {
			return nil, TxDetails{}, fmt.Errorf("wallet: recipient address %q is not valid for this network", r.Address)
		}
		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, TxDetails{}, wrap(err)
		}
		outputs = append(outputs, TxOutput{PkScript: pkScript, Value: r.AmountSats})
	}

	var changePkScript []byte
	if req.ChangePolicy != ChangeForbid {
		change, err := w.NewChangeAddress()
		if err != nil {
			return nil, TxDetails{}, err
		}
		changePkScript = change.PkScript
	}

	pkt, selected, changeAmount, err := BuildPSBT(w.net, spendable, outputs, changePkScript, req.FeeSpec, req.ChangePolicy)
	if err != nil {
		return nil, TxDetails{}, err
	}

	var totalIn, totalOut int64
	for _, u := range selected {
		totalIn += u.Value
	}
	for _, o := range outputs {
		totalOut += o.Value
	}

	var buf bytes.Buffer
	if err := pkt.Serialize(&buf); err != nil {
		return nil, TxDetails{}, wrap(err)
	}

	outputCount := len(outputs)
	if changeAmount > 0 {
		outputCount++
	}

	details := TxDetails{
		Recipients:   req.Recipients,
		Fee:          totalIn - totalOut - changeAmount,
		ChangeAmount: changeAmount,
		InputCount:   len(selected),
		OutputCount:  outputCount,
	}
	return buf.Bytes(), details, nil
}

// Sign deserializes a PSBT (possibly built by another participant, or
// partially signed by another co-signer), adds this wallet's partial
// signature to every input it holds a matching private key for, and
// attempts to finalize each input. It returns the re-serialized PSBT and
// whether every input is now finalized; if false, the caller relays the
// returned bytes to the next co-signer in the multi-sig signing flow.
func (w *Wallet) Sign(psbtBytes []byte) ([]byte, bool, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(psbtBytes), false)
	if err != nil {
		return nil, false, wrap(err)
	}

	finalized, err := SignWithKeys(pkt, w.signingKeys())
	if err != nil {
		return nil, false, err
	}

	var buf bytes.Buffer
	if err := pkt.Serialize(&buf); err != nil {
		return nil, false, wrap(err)
	}
	return buf.Bytes(), finalized, nil
}

// ExtractFinalTx deserializes a fully-signed PSBT and returns the raw
// wire-format transaction bytes ready for Broadcast.
func (w *Wallet) ExtractFinalTx(psbtBytes []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(psbtBytes), false)
	if err != nil {
		return nil, wrap(err)
	}
	tx, err := ExtractTx(pkt)
	if err != nil {
		return nil, err
	}
	return SerializeTx(tx)
}

// Broadcast submits a raw, fully-signed transaction to the configured
// indexer and returns its txid. Callers using the CreateTx/Sign/Broadcast
// path are responsible for calling MarkSpent on the inputs they consumed.
func (w *Wallet) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	if w.indexer == nil {
		return "", fmt.Errorf("wallet: no indexer configured")
	}
	return w.indexer.BroadcastTx(ctx, rawTx)
}

// MarkSpent flags the UTXO at txid:vout as spent, for a caller that built
// and broadcast a transaction via CreateTx/Sign/Broadcast rather than
// SendToAddress.
func (w *Wallet) MarkSpent(txid string, vout uint32) error {
	return w.store.MarkUTXOSpent(txid, vout)
}
