package wallet

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
)

// DerivedAddress is one concrete address produced from a Descriptor at a
// given index: the chain address, the output script that pays to it, and
// (for multisig) the redeem/witness script needed to spend it.
type DerivedAddress struct {
	Index         uint32
	Address       btcutil.Address
	PkScript      []byte
	WitnessScript []byte // non-nil only for KindWSHSortedMulti
	// Pubkeys, in BIP67 sorted order, for multisig descriptors.
	Pubkeys [][]byte
}

// Derive produces the address at index for any supported descriptor kind.
func (d *Descriptor) Derive(net *chaincfg.Params, index uint32) (*DerivedAddress, error) {
	switch d.Kind {
	case KindWPKH:
		return deriveWPKH(d.Keys[0], net, index)
	case KindPKH:
		return derivePKH(d.Keys[0], net, index)
	case KindWSHSortedMulti:
		return deriveSortedMultisig(d.Keys, d.Threshold, net, index)
	default:
		return nil, ErrUnknownDescriptorKind
	}
}

func leafPubKey(k *KeyWithPath, index uint32) (*btcec.PublicKey, error) {
	child, err := k.ExtendedKey.Derive(index)
	if err != nil {
		return nil, wrap(err)
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return nil, wrap(err)
	}
	return pub, nil
}

func deriveWPKH(k *KeyWithPath, net *chaincfg.Params, index uint32) (*DerivedAddress, error) {
	pub, err := leafPubKey(k, index)
	if err != nil {
		return nil, err
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())

	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, net)
	if err != nil {
		return nil, wrap(err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, wrap(err)
	}
	return &DerivedAddress{Index: index, Address: addr, PkScript: script}, nil
}

func derivePKH(k *KeyWithPath, net *chaincfg.Params, index uint32) (*DerivedAddress, error) {
	pub, err := leafPubKey(k, index)
	if err != nil {
		return nil, err
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())

	addr, err := btcutil.NewAddressPubKeyHash(hash, net)
	if err != nil {
		return nil, wrap(err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, wrap(err)
	}
	return &DerivedAddress{Index: index, Address: addr, PkScript: script}, nil
}

// deriveSortedMultisig derives each participant's pubkey at index, orders
// them per BIP67 (SortedMultisigPubkeys), and builds the corresponding
// wsh(sortedmulti(...)) witness script and P2WSH address. Every participant
// deriving the same index independently arrives at the identical address,
// since BIP67 order depends only on the pubkey bytes, not on the order
// participants were listed in the descriptor.
func deriveSortedMultisig(keys []*KeyWithPath, threshold int, net *chaincfg.Params, index uint32) (*DerivedAddress, error) {
	pubkeys := make([][]byte, len(keys))
	for i, k := range keys {
		pub, err := leafPubKey(k, index)
		if err != nil {
			return nil, err
		}
		pubkeys[i] = pub.SerializeCompressed()
	}

	sorted := SortedMultisigPubkeys(pubkeys)

	witnessScript, err := multisigScript(threshold, sorted)
	if err != nil {
		return nil, err
	}

	scriptHash := sha256.Sum256(witnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
	if err != nil {
		return nil, wrap(err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, wrap(err)
	}

	return &DerivedAddress{
		Index:         index,
		Address:       addr,
		PkScript:      pkScript,
		WitnessScript: witnessScript,
		Pubkeys:       sorted,
	}, nil
}

// SortedMultisigPubkeys returns pubkeys ordered per BIP67: ascending
// lexicographic order of the compressed serialization. This is the
// canonicalization a descriptor interpreter's sortedmulti() performs; the
// core never needs its own multisig-key-ordering convention because this
// is the one every compliant wallet already agrees on.
func SortedMultisigPubkeys(pubkeys [][]byte) [][]byte {
	sorted := make([][]byte, len(pubkeys))
	copy(sorted, pubkeys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// multisigScript builds a bare CHECKMULTISIG script for threshold-of-len(pubkeys).
func multisigScript(threshold int, pubkeys [][]byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(threshold))
	for _, pk := range pubkeys {
		builder.AddData(pk)
	}
	builder.AddInt64(int64(len(pubkeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}
