package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	master := bytes.Repeat([]byte{0x42}, 32)

	t.Run("deterministic per purpose", func(t *testing.T) {
		a, err := DeriveKey(master, "access-token-signing", 32)
		require.NoError(t, err)
		b, err := DeriveKey(master, "access-token-signing", 32)
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Len(t, a, 32)
	})

	t.Run("independent across purposes", func(t *testing.T) {
		a, err := DeriveKey(master, "access-token-signing", 32)
		require.NoError(t, err)
		b, err := DeriveKey(master, "something-else", 32)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("rejects short master keys", func(t *testing.T) {
		_, err := DeriveKey([]byte("short"), "x", 32)
		require.ErrorIs(t, err, ErrMasterKeyTooShort)
	})
}
