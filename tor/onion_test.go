package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOnionKeyProducesValidV3Address(t *testing.T) {
	key, err := GenerateOnionKey()
	require.NoError(t, err)
	require.Len(t, key.Address, 56, "v3 onion addresses are 56 base32 characters")

	decoded, err := onionB32.DecodeString(upper(key.Address))
	require.NoError(t, err)
	require.Len(t, decoded, 35)
	require.Equal(t, onionVersion, decoded[34])
}

func TestOnionKeyFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	k1, err := OnionKeyFromSeed(seed)
	require.NoError(t, err)
	k2, err := OnionKeyFromSeed(seed)
	require.NoError(t, err)

	require.Equal(t, k1.Address, k2.Address)
}

func TestOnionKeyFromSeedRejectsWrongLength(t *testing.T) {
	_, err := OnionKeyFromSeed([]byte{1, 2, 3})
	require.Error(t, err)
}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 32
		}
	}
	return string(out)
}
