package fs

import (
	"crypto/ecdh"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/errs"
)

// PrivateRef is everything needed to unlock a root directory revision: its
// sealed-node CID and the AccessKey it was sealed under.
type PrivateRef struct {
	CID cid.Cid
	Key cryptofs.AccessKey
}

func (r PrivateRef) marshal() []byte {
	out := make([]byte, 0, len(r.CID.Bytes())+cryptofs.AccessKeySize)
	out = append(out, byte(len(r.CID.Bytes())))
	out = append(out, r.CID.Bytes()...)
	out = append(out, r.Key[:]...)
	return out
}

func unmarshalPrivateRef(b []byte) (PrivateRef, error) {
	var ref PrivateRef
	if len(b) < 1 {
		return ref, errs.New(errs.KindBadCrypto, fmt.Errorf("private ref too short"))
	}
	n := int(b[0])
	if len(b) != 1+n+cryptofs.AccessKeySize {
		return ref, errs.New(errs.KindBadCrypto, fmt.Errorf("private ref has unexpected length"))
	}
	c, err := cid.Cast(b[1 : 1+n])
	if err != nil {
		return ref, errs.New(errs.KindBadCrypto, fmt.Errorf("private ref cid: %w", err))
	}
	ref.CID = c
	copy(ref.Key[:], b[1+n:])
	return ref, nil
}

// recipient is one authorized reader of this drive's private tree: their
// public key, and their wrapped copies of the current and original root
// references. At least one recipient always carries a non-nil
// OriginalRef — dropping the last one would make history traversal
// impossible for every remaining recipient.
type recipient struct {
	Fingerprint [cryptofs.FingerprintSize]byte
	PublicKey   []byte
	CurrentRef  *cryptofs.WrappedKey
	OriginalRef *cryptofs.WrappedKey
}

// ShareManager holds, per authorized recipient, encrypted copies of the
// current and original private reference to the root directory.
type ShareManager struct {
	Recipients []recipient
}

// NewShareManager seeds a share manager with a single recipient: the
// wrapping key of whoever calls Filesystem.Init.
func NewShareManager(initialRecipient *ecdh.PublicKey, ref PrivateRef) (*ShareManager, error) {
	sm := &ShareManager{}
	if err := sm.addRecipient(initialRecipient, ref, true); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *ShareManager) addRecipient(pub *ecdh.PublicKey, ref PrivateRef, isOriginal bool) error {
	wrapped, err := cryptofs.WrapBytes(ref.marshal(), pub)
	if err != nil {
		return err
	}
	fp := cryptofs.Fingerprint(pub)
	r := recipient{Fingerprint: fp, PublicKey: pub.Bytes(), CurrentRef: wrapped}
	if isOriginal {
		r.OriginalRef = wrapped
	}
	sm.Recipients = append(sm.Recipients, r)
	return nil
}

// ShareWith grants pub access by wrapping the current ref for them. Their
// OriginalRef is also set to the current ref: a newly added recipient's
// history starts from the point they were granted access, not from the
// tree's true genesis.
func (sm *ShareManager) ShareWith(pub *ecdh.PublicKey, current PrivateRef) error {
	return sm.addRecipient(pub, current, true)
}

// UpdateCurrentRef rewraps the new current ref for every existing
// recipient, called after every Filesystem.Save.
func (sm *ShareManager) UpdateCurrentRef(current PrivateRef) error {
	for i, r := range sm.Recipients {
		pub, err := cryptofs.ParsePublicKey(r.PublicKey)
		if err != nil {
			return err
		}
		wrapped, err := cryptofs.WrapBytes(current.marshal(), pub)
		if err != nil {
			return err
		}
		sm.Recipients[i].CurrentRef = wrapped
	}
	return nil
}

// Unwrap recovers recipientPriv's view of the current private ref.
func (sm *ShareManager) Unwrap(recipientPriv *ecdh.PrivateKey) (PrivateRef, error) {
	fp := cryptofs.Fingerprint(recipientPriv.PublicKey())
	for _, r := range sm.Recipients {
		if r.Fingerprint != fp {
			continue
		}
		raw, err := cryptofs.UnwrapBytes(r.CurrentRef, recipientPriv)
		if err != nil {
			return PrivateRef{}, err
		}
		return unmarshalPrivateRef(raw)
	}
	return PrivateRef{}, errs.New(errs.KindBadAuth, fmt.Errorf("no share manager entry for this key"))
}

// UnwrapOriginal recovers recipientPriv's view of the original private ref,
// the starting point for history traversal.
func (sm *ShareManager) UnwrapOriginal(recipientPriv *ecdh.PrivateKey) (PrivateRef, error) {
	fp := cryptofs.Fingerprint(recipientPriv.PublicKey())
	for _, r := range sm.Recipients {
		if r.Fingerprint != fp {
			continue
		}
		raw, err := cryptofs.UnwrapBytes(r.OriginalRef, recipientPriv)
		if err != nil {
			return PrivateRef{}, err
		}
		return unmarshalPrivateRef(raw)
	}
	return PrivateRef{}, errs.New(errs.KindBadAuth, fmt.Errorf("no share manager entry for this key"))
}
