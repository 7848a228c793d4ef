package cryptofs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewAccessKey()
	require.NoError(t, err)

	plaintext := []byte("hello kitty")
	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(key, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	key1, err := NewAccessKey()
	require.NoError(t, err)
	key2, err := NewAccessKey()
	require.NoError(t, err)

	sealed, err := Seal(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(key2, sealed)
	require.Error(t, err)
}

func TestWrapUnwrapAccessKey(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	key, err := NewAccessKey()
	require.NoError(t, err)

	wrapped, err := WrapAccessKey(key, recipient.PublicKey())
	require.NoError(t, err)

	unwrapped, err := UnwrapAccessKey(wrapped, recipient)
	require.NoError(t, err)
	require.Equal(t, key, unwrapped)
}

func TestUnwrapFailsWithWrongRecipient(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	key, err := NewAccessKey()
	require.NoError(t, err)

	wrapped, err := WrapAccessKey(key, recipient.PublicKey())
	require.NoError(t, err)

	_, err = UnwrapAccessKey(wrapped, other)
	require.Error(t, err)
}

func TestFingerprintStableForSameKey(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	fp1 := Fingerprint(priv.PublicKey())
	fp2 := Fingerprint(priv.PublicKey())
	require.Equal(t, fp1, fp2)
}
