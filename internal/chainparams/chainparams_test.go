package chainparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	cases := []struct {
		name string
		want Params
	}{
		{"mainnet", Mainnet},
		{"main", Mainnet},
		{"testnet", Testnet3},
		{"testnet3", Testnet3},
		{"signet", Signet},
		{"regtest", Regtest},
		{"regression", Regtest},
	}
	for _, c := range cases {
		got, err := ByName(c.name)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestByNameUnknown(t *testing.T) {
	_, err := ByName("nosuchnet")
	require.Error(t, err)
}

func TestMagicBytesAreDistinct(t *testing.T) {
	seen := map[[4]byte]string{}
	for _, p := range []Params{Mainnet, Testnet3, Signet, Regtest} {
		if other, ok := seen[p.Magic]; ok {
			t.Fatalf("%s and %s share magic bytes %x", p.Name, other, p.Magic)
		}
		seen[p.Magic] = p.Name
	}
}
