package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestMintValidateRoundTrip(t *testing.T) {
	priv := mustKey(t)
	userID := uuid.New()

	token, err := Mint(priv, userID, time.Minute)
	require.NoError(t, err)

	got, err := Validate(token, &priv.PublicKey)
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

func TestValidateFailsWithWrongKey(t *testing.T) {
	priv := mustKey(t)
	other := mustKey(t)
	token, err := Mint(priv, uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = Validate(token, &other.PublicKey)
	require.Error(t, err)
}

func TestValidateFailsWhenExpired(t *testing.T) {
	priv := mustKey(t)
	token, err := Mint(priv, uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = Validate(token, &priv.PublicKey)
	require.Error(t, err)
}

func TestMintDefaultsTTLWhenZero(t *testing.T) {
	priv := mustKey(t)
	token, err := Mint(priv, uuid.New(), 0)
	require.NoError(t, err)

	_, err = Validate(token, &priv.PublicKey)
	require.NoError(t, err)
}
