package tor

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base32"
	"strings"

	"github.com/go-errors/errors"
	"golang.org/x/crypto/sha3"
)

// onionVersion is the single version byte tor v3 onion addresses encode,
// per rend-spec-v3.txt section 6.
const onionVersion byte = 0x03

// onionChecksumPrefix is prepended to the checksum input, per spec.
const onionChecksumPrefix = ".onion checksum"

var onionB32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// OnionKey is a generated v3 hidden-service identity: an ed25519 keypair
// plus its derived .onion address (without the ".onion" suffix).
type OnionKey struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Address    string
}

// GenerateOnionKey creates a fresh ed25519 keypair and derives its v3
// .onion address. This is the Go-native replacement for the zbase32-based
// address encoder in the original SDK: tor v3 addresses use standard
// RFC4648 base32, not the z-base-32 alphabet, so the addresses this
// produces are what a running tor daemon actually expects from ADD_ONION's
// own keypair-less (NEW:BEST) mode, and what it echoes back when Daemon
// instead supplies an explicit ED25519-V3 key.
func GenerateOnionKey() (*OnionKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, wrap(err)
	}
	return keyToOnion(pub, priv), nil
}

// OnionKeyFromSeed rebuilds an OnionKey from a previously generated 32-byte
// ed25519 seed, so a caller can persist just the seed and recompute the
// address and private key deterministically.
func OnionKeyFromSeed(seed []byte) (*OnionKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("onion: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return keyToOnion(pub, priv), nil
}

func keyToOnion(pub ed25519.PublicKey, priv ed25519.PrivateKey) *OnionKey {
	return &OnionKey{
		PublicKey:  pub,
		PrivateKey: priv,
		Address:    onionAddress(pub),
	}
}

// onionAddress implements rend-spec-v3.txt's address derivation:
//
//	checksum = H(".onion checksum" || pubkey || version)[:2]
//	onion_address = base32(pubkey || checksum || version)
//
// with H = SHA3-256.
func onionAddress(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write([]byte(onionChecksumPrefix))
	h.Write(pub)
	h.Write([]byte{onionVersion})
	checksum := h.Sum(nil)[:2]

	buf := make([]byte, 0, len(pub)+len(checksum)+1)
	buf = append(buf, pub...)
	buf = append(buf, checksum...)
	buf = append(buf, onionVersion)

	return strings.ToLower(onionB32.EncodeToString(buf))
}

// expandEd25519 derives the 64-byte expanded secret key (clamped scalar ||
// hash prefix) that tor's control protocol expects in ADD_ONION's
// ED25519-V3 key blob, per RFC 8032's key-expansion step. Go's
// ed25519.PrivateKey stores seed||pubkey, not this expanded form, so it
// must be recomputed from the seed.
func expandEd25519(priv ed25519.PrivateKey) []byte {
	seed := priv.Seed()
	h := sha512.Sum512(seed)

	a := make([]byte, 32)
	copy(a, h[:32])
	a[0] &= 248
	a[31] &= 127
	a[31] |= 64

	expanded := make([]byte, 64)
	copy(expanded[:32], a)
	copy(expanded[32:], h[32:])
	return expanded
}
