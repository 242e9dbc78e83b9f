package wallet

import (
	"fmt"

	"github.com/btcsuite/btcutil/hdkeychain"
)

// DescriptorKind selects which output descriptor a Descriptor wraps.
type DescriptorKind int

const (
	// KindWPKH is a single-key native segwit descriptor: wpkh(key).
	KindWPKH DescriptorKind = iota
	// KindPKH is the legacy single-key descriptor: pkh(key). Kept for
	// wallets that need legacy P2PKH addresses; new wallets should prefer
	// KindWPKH.
	KindPKH
	// KindWSHSortedMulti is a segwit multisig descriptor:
	// wsh(sortedmulti(threshold, key...)). Key order in the descriptor
	// string is irrelevant; sortedmulti re-sorts participant pubkeys at
	// each derived index per BIP67 (see SortedMultisigPubkeys).
	KindWSHSortedMulti
)

// Descriptor is an output descriptor bound to one or more account-level
// extended keys. It records enough information to both render the
// descriptor string and to later derive concrete addresses/scripts for a
// given index (see Descriptor.Derive in address.go).
type Descriptor struct {
	Kind      DescriptorKind
	Keys      []*KeyWithPath
	Threshold int // only meaningful for KindWSHSortedMulti
}

// NewWPKHDescriptor builds a wpkh(...) descriptor for a single account-level
// chain key (external or internal, as returned by MasterKey.Account).
func NewWPKHDescriptor(key *KeyWithPath) *Descriptor {
	return &Descriptor{Kind: KindWPKH, Keys: []*KeyWithPath{key}}
}

// NewPKHDescriptor builds a legacy pkh(...) descriptor for a single
// account-level chain key. The original Rust SDK's legacy builder swapped
// the external/internal hardened indices; this SDK always uses the
// canonical BIP44 m/44'/0'/account'/{0,1} convention regardless of
// descriptor kind (spec Open Question #1).
func NewPKHDescriptor(key *KeyWithPath) *Descriptor {
	return &Descriptor{Kind: KindPKH, Keys: []*KeyWithPath{key}}
}

// NewSortedMultisigDescriptor builds a wsh(sortedmulti(threshold, ...))
// descriptor from a set of participants' account-level chain keys. keys may
// be given in any order: sortedmulti canonicalizes per BIP67 at derivation
// time, so every participant builds byte-identical addresses regardless of
// the order they listed each other's keys in.
func NewSortedMultisigDescriptor(threshold int, keys []*KeyWithPath) (*Descriptor, error) {
	if threshold < 1 || threshold > len(keys) {
		return nil, ErrThresholdOutOfRange
	}
	return &Descriptor{Kind: KindWSHSortedMulti, Keys: keys, Threshold: threshold}, nil
}

// String renders the descriptor in the standard output-descriptor syntax,
// e.g. "wpkh([c6a5a5e8/44'/0'/0'/0]xpub6.../*)".
func (d *Descriptor) String() string {
	switch d.Kind {
	case KindWPKH:
		return fmt.Sprintf("wpkh(%s)", keyExpr(d.Keys[0]))
	case KindPKH:
		return fmt.Sprintf("pkh(%s)", keyExpr(d.Keys[0]))
	case KindWSHSortedMulti:
		exprs := make([]string, len(d.Keys))
		for i, k := range d.Keys {
			exprs[i] = keyExpr(k)
		}
		inner := fmt.Sprintf("sortedmulti(%d", d.Threshold)
		for _, e := range exprs {
			inner += "," + e
		}
		inner += ")"
		return fmt.Sprintf("wsh(%s)", inner)
	default:
		return ""
	}
}

// keyExpr renders a single key-origin-qualified extended public key
// expression: [fingerprint/path]xpub.../*
func keyExpr(k *KeyWithPath) string {
	pub, err := k.ExtendedKey.Neuter()
	if err != nil {
		// Neuter only fails on a malformed extended key, which would mean
		// this KeyWithPath was never validly derived; surface it loudly
		// rather than emit a descriptor that silently can't be parsed.
		panic(fmt.Sprintf("wallet: key at path %v has no valid public form: %v", k.Path, err))
	}
	return fmt.Sprintf("[%s]%s/*", formatOrigin(k.MasterFingerprint, k.Path), pub.String())
}

// formatOrigin renders a key-origin fingerprint/path pair in descriptor
// syntax, e.g. "c6a5a5e8/44'/0'/0'/0".
func formatOrigin(fp [4]byte, path DerivationPath) string {
	s := fmt.Sprintf("%02x%02x%02x%02x", fp[0], fp[1], fp[2], fp[3])
	for _, idx := range path {
		s += "/" + formatIndex(idx)
	}
	return s
}

func formatIndex(idx uint32) string {
	if idx >= hdkeychain.HardenedKeyStart {
		return fmt.Sprintf("%d'", idx-hdkeychain.HardenedKeyStart)
	}
	return fmt.Sprintf("%d", idx)
}
