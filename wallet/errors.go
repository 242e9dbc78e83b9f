package wallet

import "github.com/go-errors/errors"

var (
	// ErrInvalidMnemonic is returned when a supplied BIP39 mnemonic fails
	// its checksum.
	ErrInvalidMnemonic = errors.Errorf("wallet: invalid mnemonic")

	// ErrUnknownDescriptorKind is returned by Descriptor.Derive for a
	// Descriptor with an unrecognized DescriptorKind.
	ErrUnknownDescriptorKind = errors.Errorf("wallet: unknown descriptor kind")

	// ErrThresholdOutOfRange is returned when a multisig threshold is <1 or
	// exceeds the number of participant keys.
	ErrThresholdOutOfRange = errors.Errorf("wallet: multisig threshold out of range")

	// ErrNoUtxos is returned when a PSBT build has no spendable UTXOs to
	// cover the requested output value.
	ErrNoUtxos = errors.Errorf("wallet: no spendable utxos")

	// ErrInsufficientFunds is returned when tracked UTXOs can't cover the
	// requested output value plus fee.
	ErrInsufficientFunds = errors.Errorf("wallet: insufficient funds")

	// ErrNotFinalized is returned when ExtractTx is called on a PSBT that
	// is missing a signature for one or more inputs.
	ErrNotFinalized = errors.Errorf("wallet: psbt is not fully signed")

	// ErrClosed names use of a closed wallet. Wallet methods do not check
	// for Close themselves and do not return it; an operation after Close
	// fails with the underlying store's own error instead.
	ErrClosed = errors.Errorf("wallet: use of closed wallet")
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, 1)
}
