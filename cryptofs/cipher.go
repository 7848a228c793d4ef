package cryptofs

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/banyancomputer/banyanfs/errs"
)

// saltSize matches the original's SALT_SIZE constant for HKDF salts.
const saltSize = 16

func fingerprintBytes(raw []byte) [FingerprintSize]byte {
	sum := sha256.Sum256(raw)
	var fp [FingerprintSize]byte
	copy(fp[:], sum[:FingerprintSize])
	return fp
}

// Seal encrypts plaintext under key with AES-256-GCM, returning
// nonce||ciphertext||tag. A fresh random nonce is drawn on every call, since
// one AccessKey seals many plaintexts: every revision of its node and, for a
// file, each of its payload chunks.
func Seal(key AccessKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("generate nonce: %w", err))
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal, returning BadCrypto on any authentication failure.
func Open(key AccessKey, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("sealed content shorter than nonce"))
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("decrypt: %w", err))
	}
	return plaintext, nil
}

// WrappedKey is an AccessKey wrapped for one recipient: the ephemeral
// public key used in the ECDH exchange, the HKDF salt, and the sealed key
// bytes.
type WrappedKey struct {
	EphemeralPublicKey []byte
	Salt               []byte
	Sealed             []byte
}

// WrapAccessKey wraps key for recipientPub: an ephemeral key pair performs
// ECDH with recipientPub, the shared secret is run through HKDF-SHA256 to
// derive a per-wrap AES-256 key, and key is sealed under it. This mirrors
// the original's generate-ephemeral / ecdh / hkdf_derive_aes_key /
// aes_wrap_key pipeline, substituting AES-GCM for AES-KW since Go's stdlib
// does not expose RFC 3394 key wrap directly and GCM gives the same
// confidentiality-plus-integrity guarantee.
func WrapAccessKey(key AccessKey, recipientPub *ecdh.PublicKey) (*WrappedKey, error) {
	return WrapBytes(key[:], recipientPub)
}

// WrapBytes is the general form of WrapAccessKey for arbitrary-length
// plaintext, used by the share manager to wrap a recipient's private
// reference (root CID + root key), not just a bare access key.
func WrapBytes(plaintext []byte, recipientPub *ecdh.PublicKey) (*WrappedKey, error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	secret, err := ephemeral.ECDH(recipientPub)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("ecdh: %w", err))
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("generate salt: %w", err))
	}

	wrapKey, err := deriveWrapKey(secret, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := Seal(wrapKey, plaintext)
	if err != nil {
		return nil, err
	}

	return &WrappedKey{
		EphemeralPublicKey: ephemeral.PublicKey().Bytes(),
		Salt:               salt,
		Sealed:             sealed,
	}, nil
}

// UnwrapAccessKey reverses WrapAccessKey using the recipient's private key.
func UnwrapAccessKey(w *WrappedKey, recipientPriv *ecdh.PrivateKey) (AccessKey, error) {
	var out AccessKey
	plaintext, err := UnwrapBytes(w, recipientPriv)
	if err != nil {
		return out, err
	}
	if len(plaintext) != AccessKeySize {
		return out, errs.New(errs.KindBadCrypto, fmt.Errorf("unwrapped key has wrong length %d", len(plaintext)))
	}
	copy(out[:], plaintext)
	return out, nil
}

// UnwrapBytes reverses WrapBytes using the recipient's private key.
func UnwrapBytes(w *WrappedKey, recipientPriv *ecdh.PrivateKey) ([]byte, error) {
	ephemeralPub, err := ParsePublicKey(w.EphemeralPublicKey)
	if err != nil {
		return nil, err
	}
	secret, err := recipientPriv.ECDH(ephemeralPub)
	if err != nil {
		return nil, errs.New(errs.KindBadCrypto, fmt.Errorf("ecdh: %w", err))
	}

	wrapKey, err := deriveWrapKey(secret, w.Salt)
	if err != nil {
		return nil, err
	}

	return Open(wrapKey, w.Sealed)
}

func deriveWrapKey(secret, salt []byte) (AccessKey, error) {
	var out AccessKey
	r := hkdf.New(sha256.New, secret, salt, []byte("banyanfs-access-key-wrap"))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, errs.New(errs.KindBadCrypto, fmt.Errorf("hkdf derive: %w", err))
	}
	return out, nil
}
