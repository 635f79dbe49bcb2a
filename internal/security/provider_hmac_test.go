package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHMACProvider(t *testing.T) {
	p := NewHMACProvider([]byte("test-key"))

	pvv, err := p.ComputePVV("411111111111111", 1234)
	require.NoError(t, err)
	require.Len(t, pvv, 4)

	again, err := p.ComputePVV("411111111111111", 1234)
	require.NoError(t, err)
	require.Equal(t, pvv, again)
	for _, c := range pvv {
		require.True(t, c >= '0' && c <= '9')
	}
}

func TestHMACProvider_InvalidInput(t *testing.T) {
	p := NewHMACProvider([]byte("test-key"))

	_, err := p.ComputePVV("4111", 1234)
	require.Error(t, err)
	_, err = p.ComputePVV("41111111111111a", 1234)
	require.Error(t, err)
	_, err = p.ComputePVV("411111111111111", -1)
	require.Error(t, err)

	_, err = NewHMACProvider(nil).ComputePVV("411111111111111", 1234)
	require.ErrorIs(t, err, ErrKeyMissing)
}

func TestWipe(t *testing.T) {
	key := []byte("secret")
	Wipe(key)
	require.Equal(t, make([]byte, 6), key)
}
