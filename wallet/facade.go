package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/sifir-io/sifir-sdk/metrics"
	"github.com/sifir-io/sifir-sdk/observer"
)

// Config describes how to construct a Wallet. Exactly one of the two
// construction modes below must be set: single-key (Mnemonic/Account) or
// multi-sig (MultisigKeys/MultisigThreshold).
type Config struct {
	Name      string
	Net       *chaincfg.Params
	StorePath string
	Indexer   IndexerClient

	// Single-key mode: a BIP39 mnemonic and BIP44 account index.
	Mnemonic   string
	Passphrase string
	Account    uint32

	// Multi-sig mode: MultisigKeys are the account-level chain keys for
	// every participant (one of which must carry this wallet's own
	// private material; the rest are watch-only co-signer keys), and
	// MultisigThreshold is k of len(MultisigKeys). When set, Mnemonic is
	// ignored and the wallet has no separate internal (change)
	// descriptor, per spec.md §4.8.
	MultisigKeys      []*KeyWithPath
	MultisigThreshold int

	// AddressLookAhead bounds how many unused addresses past the last
	// used one Sync scans on each chain before stopping, the gap-limit
	// convention most descriptor wallets use (spec Open Question #3).
	AddressLookAhead uint32
}

const defaultAddressLookAhead = 20

// Wallet is the descriptor-wallet facade: a single account's external
// (and, for single-key wallets, internal) chain, its persistent
// UTXO/address store, and whichever IndexerClient it syncs against.
type Wallet struct {
	name    string
	net     *chaincfg.Params
	master  *MasterKey // nil for multi-sig wallets
	extDesc *Descriptor
	intDesc *Descriptor // nil for multi-sig wallets; see spec.md §4.8

	store   *Store
	indexer IndexerClient

	lookAhead uint32

	// SyncProgress, if set, receives a JSON progress line after each
	// chain's scan completes.
	SyncProgress observer.Slot
}

// Open constructs a Wallet from cfg, opening (or creating) its store.
func Open(cfg Config) (*Wallet, error) {
	store, err := OpenStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	lookAhead := cfg.AddressLookAhead
	if lookAhead == 0 {
		lookAhead = defaultAddressLookAhead
	}

	w := &Wallet{
		name:      cfg.Name,
		net:       cfg.Net,
		store:     store,
		indexer:   cfg.Indexer,
		lookAhead: lookAhead,
	}

	if len(cfg.MultisigKeys) > 0 {
		desc, err := NewSortedMultisigDescriptor(cfg.MultisigThreshold, cfg.MultisigKeys)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		w.extDesc = desc
		return w, nil
	}

	master, err := NewMasterKeyFromMnemonic(cfg.Mnemonic, cfg.Passphrase, cfg.Net)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	external, internal, err := master.Account(cfg.Account)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	w.master = master
	w.extDesc = NewWPKHDescriptor(external)
	w.intDesc = NewWPKHDescriptor(internal)
	return w, nil
}

// Close releases the wallet's store.
func (w *Wallet) Close() error {
	return w.store.Close()
}

// NewAddress derives and watches the next unused receive (external chain)
// address.
func (w *Wallet) NewAddress() (*DerivedAddress, error) {
	return w.newAddress(ExternalChain)
}

// NewChangeAddress derives and watches the next unused change address. A
// multi-sig wallet has no separate internal descriptor (spec.md §4.8), so
// it draws change addresses from the same single external index counter
// used for receive addresses instead of a second chain, the only way to
// keep every address it issues unique under one shared descriptor.
func (w *Wallet) NewChangeAddress() (*DerivedAddress, error) {
	if w.intDesc == nil {
		return w.newAddress(ExternalChain)
	}
	return w.newAddress(InternalChain)
}

func (w *Wallet) newAddress(chain uint32) (*DerivedAddress, error) {
	idx, err := w.store.NextIndex(chain)
	if err != nil {
		return nil, err
	}

	desc := w.chainDescriptor(chain)
	addr, err := desc.Derive(w.net, idx)
	if err != nil {
		return nil, err
	}
	if err := w.store.WatchAddress(addr.Address.String(), chain, idx); err != nil {
		return nil, err
	}
	return addr, nil
}

// chainDescriptor returns the descriptor used to derive addresses for
// chain, falling back to the external descriptor when the wallet has no
// separate internal one (multi-sig mode).
func (w *Wallet) chainDescriptor(chain uint32) *Descriptor {
	if chain == InternalChain && w.intDesc != nil {
		return w.intDesc
	}
	return w.extDesc
}

// syncChains returns the set of chains Sync and newAddress-derived
// bookkeeping should scan: both chains for single-key wallets, or just the
// external chain for multi-sig wallets, since chainDescriptor resolves
// InternalChain to the same descriptor and scanning it again would just
// re-derive external-chain addresses under a different index.
func (w *Wallet) syncChains() []uint32 {
	if w.intDesc == nil {
		return []uint32{ExternalChain}
	}
	return []uint32{ExternalChain, InternalChain}
}

// signingKeys returns every key this wallet holds, across whichever
// descriptors it has, including public-only co-signer keys; matchSigningKey
// skips the ones that cannot sign.
func (w *Wallet) signingKeys() []*KeyWithPath {
	keys := append([]*KeyWithPath{}, w.extDesc.Keys...)
	if w.intDesc != nil {
		keys = append(keys, w.intDesc.Keys...)
	}
	return keys
}

// Balance returns the wallet's total tracked unspent value, in satoshis.
func (w *Wallet) Balance() (int64, error) {
	return w.store.Balance()
}

// Sync scans every chain up to lookAhead addresses past the last one with
// indexer activity, fetches their UTXOs, and persists anything new. It
// mirrors the gap-limit convention plumbed in from Open's
// Config.AddressLookAhead (spec Open Question #3).
func (w *Wallet) Sync(ctx context.Context) error {
	if w.indexer == nil {
		return fmt.Errorf("wallet: no indexer configured")
	}

	height, err := w.indexer.FetchHeight(ctx)
	if err == nil {
		_ = w.store.SetSyncHeight(height)
		metrics.WalletSyncHeight.WithLabelValues(w.name).Set(float64(height))
	}

	for _, chain := range w.syncChains() {
		if err := w.syncChain(ctx, chain); err != nil {
			return err
		}
	}

	utxos, err := w.store.ListUnspent()
	if err == nil {
		metrics.WalletUtxoCount.WithLabelValues(w.name).Set(float64(len(utxos)))
	}

	return nil
}

func (w *Wallet) syncChain(ctx context.Context, chain uint32) error {
	desc := w.chainDescriptor(chain)

	gap := uint32(0)
	var index uint32
	for gap < w.lookAhead {
		addr, err := desc.Derive(w.net, index)
		if err != nil {
			return err
		}

		utxos, err := w.indexer.FetchUTXOs(ctx, []string{addr.Address.String()})
		if err != nil {
			return err
		}

		if len(utxos) == 0 {
			gap++
		} else {
			gap = 0
			for _, u := range utxos {
				if err := w.store.PutUTXO(UTXORecord{
					TxID:          u.TxID,
					Vout:          u.Vout,
					Value:         u.Value,
					PkScript:      addr.PkScript,
					Address:       addr.Address.String(),
					DerivationIdx: index,
					Chain:         chain,
				}); err != nil {
					return err
				}
			}
		}

		index++
	}

	w.SyncProgress.Emit(fmt.Sprintf(`{"chain":%d,"scanned":%d}`, chain, index))
	return nil
}

// spendableUTXOs reassembles every tracked unspent output into a
// SpendableUTXO carrying the descriptor it was derived from.
func (w *Wallet) spendableUTXOs() ([]SpendableUTXO, error) {
	unspent, err := w.store.ListUnspent()
	if err != nil {
		return nil, err
	}

	spendable := make([]SpendableUTXO, len(unspent))
	for i, u := range unspent {
		spendable[i] = SpendableUTXO{
			UTXORecord: u,
			Descriptor: w.chainDescriptor(u.Chain),
			Index:      u.DerivationIdx,
		}
	}
	return spendable, nil
}

// SendToAddress builds, signs, and broadcasts a transaction paying amount
// satoshis to pkScript, selecting from tracked UTXOs and returning change
// to a freshly derived change address, then marks the spent inputs. It
// performs the same build/sign/broadcast steps as CreateTx/Sign/Broadcast
// in one call (calling BuildPSBT, SignWithKeys and the indexer directly)
// for the common single-wallet, fully-signing case; a multi-sig co-signer that can't finalize alone should use
// CreateTx/Sign/Broadcast directly instead, per the multi-sig signing flow.
func (w *Wallet) SendToAddress(ctx context.Context, pkScript []byte, amount int64) (string, error) {
	spendable, err := w.spendableUTXOs()
	if err != nil {
		return "", err
	}

	change, err := w.NewChangeAddress()
	if err != nil {
		return "", err
	}

	pkt, selected, _, err := BuildPSBT(
		w.net, spendable, []TxOutput{{PkScript: pkScript, Value: amount}},
		change.PkScript, FeeSpec{Kind: FeeRate}, ChangeAllow,
	)
	if err != nil {
		return "", err
	}

	finalized, err := SignWithKeys(pkt, w.signingKeys())
	if err != nil {
		return "", err
	}
	if !finalized {
		return "", ErrNotFinalized
	}

	tx, err := ExtractTx(pkt)
	if err != nil {
		return "", err
	}
	raw, err := SerializeTx(tx)
	if err != nil {
		return "", err
	}

	txid, err := w.indexer.BroadcastTx(ctx, raw)
	if err != nil {
		return "", err
	}

	for _, u := range selected {
		_ = w.store.MarkUTXOSpent(u.TxID, u.Vout)
	}

	return txid, nil
}
