package cardgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePAN(t *testing.T) {
	for i := 0; i < 50; i++ {
		pan, err := GeneratePAN("421234", 16)
		require.NoError(t, err)
		require.Len(t, pan, 16)
		require.True(t, strings.HasPrefix(pan, "421234"))
		require.NoError(t, ValidatePAN(pan))
	}

	_, err := GeneratePAN("42", 16)
	require.Error(t, err)
	_, err = GeneratePAN("421234", 25)
	require.Error(t, err)
}

func TestValidatePAN(t *testing.T) {
	require.NoError(t, ValidatePAN("4111111111111111"))
	require.Error(t, ValidatePAN("4111111111111112"))
	require.Error(t, ValidatePAN("4111-1111"))
	require.Error(t, ValidatePAN(""))
}

func TestGenerateUniquePAN(t *testing.T) {
	seen := 0
	pan, err := GenerateUniquePAN("421234", 16, 3, func(string) (bool, error) {
		seen++
		return seen < 3, nil
	})
	require.NoError(t, err)
	require.NoError(t, ValidatePAN(pan))
	require.Equal(t, 3, seen)

	_, err = GenerateUniquePAN("421234", 16, 2, func(string) (bool, error) { return true, nil })
	require.Error(t, err)
}

func TestMaskPAN(t *testing.T) {
	require.Equal(t, "411111******1111", MaskPAN("4111 1111 1111 1111"))
	require.Equal(t, "****", MaskPAN("1234"))
	require.Equal(t, "***5678", MaskPAN("1235678"))
	require.Equal(t, "", MaskPAN(""))
}

func TestHashPAN(t *testing.T) {
	key := []byte("pepper")
	require.Equal(t, HashPAN("4111111111111111", key), HashPAN("4111 1111-1111 1111", key))
	require.NotEqual(t, HashPAN("4111111111111111", key), HashPAN("4111111111111111", []byte("other")))
}
