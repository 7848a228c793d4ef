// Package cryptofs seals private forest node content and wraps per-node
// access keys for authorized recipients. It adapts the key-sealing pipeline
// of the original tomb-crypt key_seal module (ECDH key agreement, HKDF key
// derivation, AEAD wrapping) from WebCrypto/P-384 to Go's stdlib
// crypto/ecdh on P-256, the curve already used by the auth package's
// signing keys so a deployment manages one EC key family.
package cryptofs

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/banyancomputer/banyanfs/errs"
)

// AccessKeySize is the width in bytes of a node's random content key.
const AccessKeySize = 32

// FingerprintSize matches the original's SHA-1-based compressed-point
// fingerprint length, used to index Share Manager entries by recipient.
const FingerprintSize = 20

// AccessKey is the symmetric key sealing one node's content.
type AccessKey [AccessKeySize]byte

// NewAccessKey generates a fresh random access key.
func NewAccessKey() (AccessKey, error) {
	var k AccessKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("generate access key: %w", err)
	}
	return k, nil
}

// curve is fixed at P-256 across the module.
func curve() ecdh.Curve {
	return ecdh.P256()
}

// GenerateKeyPair creates a new ECDH key pair used to wrap and unwrap
// access keys for a share manager recipient.
func GenerateKeyPair() (*ecdh.PrivateKey, error) {
	priv, err := curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ec key pair: %w", err)
	}
	return priv, nil
}

// ParsePublicKey decodes a recipient's public key from its uncompressed
// point encoding (the "raw" export format the original key_seal module
// uses for ECDH public keys).
func ParsePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := curve().NewPublicKey(raw)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("parse public key: %w", err))
	}
	return pub, nil
}

// Fingerprint derives a stable identifier for a public key, used as the
// share manager's recipient index. It is not security sensitive (a
// lookup key, not a MAC), so a plain SHA-256 prefix replaces the
// original's SHA-1-over-compressed-point scheme without losing its role.
func Fingerprint(pub *ecdh.PublicKey) [FingerprintSize]byte {
	return fingerprintBytes(pub.Bytes())
}
