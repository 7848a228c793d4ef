package main

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banyancomputer/banyanfs/cryptofs"
)

const (
	identityKeyFile = "identity.key"
	signingKeyFile  = "signing.key"
	saltFile        = "salt"
)

// loadOrCreateIdentity returns the drive owner's ECDH key pair, generating
// and persisting one under dir if this is the first time the drive has
// been opened from this machine.
func loadOrCreateIdentity(dir string) (*ecdh.PrivateKey, error) {
	path := filepath.Join(dir, identityKeyFile)
	raw, err := os.ReadFile(path)
	if err == nil {
		priv, err := ecdh.P256().NewPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse identity key %q: %w", path, err)
		}
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity key %q: %w", path, err)
	}

	priv, err := cryptofs.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, priv.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("write identity key %q: %w", path, err)
	}
	return priv, nil
}

// loadOrCreateSigningKey returns the EC key this drive signs bearer tokens
// with, generating and persisting one on first use.
func loadOrCreateSigningKey(dir string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(dir, signingKeyFile)
	raw, err := os.ReadFile(path)
	if err == nil {
		priv, err := x509.ParseECPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse signing key %q: %w", path, err)
		}
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read signing key %q: %w", path, err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal signing key: %w", err)
	}
	if err := os.WriteFile(path, der, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key %q: %w", path, err)
	}
	return priv, nil
}

// loadOrCreateSalt returns the namefilter salt for this drive, generating
// one on first use. Unlike the key files, the salt is not secret, but it
// must be identical across every Init/Unlock pair or name filters stop
// matching.
func loadOrCreateSalt(dir string) (string, error) {
	path := filepath.Join(dir, saltFile)
	raw, err := os.ReadFile(path)
	if err == nil {
		return string(raw), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read salt %q: %w", path, err)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := fmt.Sprintf("%x", buf)
	if err := os.WriteFile(path, []byte(salt), 0o600); err != nil {
		return "", fmt.Errorf("write salt %q: %w", path, err)
	}
	return salt, nil
}
