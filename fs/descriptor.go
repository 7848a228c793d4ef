package fs

import (
	"context"
	"encoding/base64"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	bstore "github.com/ipfs/go-ipfs-blockstore"

	"github.com/banyancomputer/banyanfs/errs"
)

func init() {
	cbor.RegisterCborType(Descriptor{})
}

// Descriptor is the compact shareable bundle produced by ShareFile: enough
// to fetch and decrypt one file from a content-only store, without needing
// to unlock the whole filesystem.
type Descriptor struct {
	Payload   PrivateRef
	ForestCID cid.Cid
	FileName  string
	MimeType  string
	Size      uint64
}

// ShareFile produces a Descriptor for the file at p, bundling its private
// reference, the current forest root CID, and minimal display metadata.
func (f *Filesystem) ShareFile(ctx context.Context, p Path) (*Descriptor, error) {
	if p.IsRoot() {
		return nil, errs.NodeNotFound(p.String())
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return nil, err
	}
	ref, ok := chain[len(chain)-1].node.Children[leaf]
	if !ok || !ref.IsFile {
		return nil, errs.NodeNotFound(p.String())
	}

	var fn fileNode
	if err := openAndDecode(ctx, f.structureBS, ref.Key, ref.CID, &fn); err != nil {
		return nil, err
	}

	return &Descriptor{
		Payload:   PrivateRef{CID: ref.CID, Key: ref.Key},
		ForestCID: f.forestRoot,
		FileName:  leaf,
		MimeType:  fn.Mime,
		Size:      fn.Size,
	}, nil
}

// EncodeDescriptor renders d as base64url-over-dag-cbor, the user-visible
// transport form a shared-file link carries.
func EncodeDescriptor(d *Descriptor) (string, error) {
	raw, err := cbor.DumpObject(d)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodeDescriptor reverses EncodeDescriptor.
func DecodeDescriptor(s string) (*Descriptor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.New(errs.KindCorruptFrame, err)
	}
	var d Descriptor
	if err := cbor.DecodeInto(raw, &d); err != nil {
		return nil, errs.New(errs.KindCorruptFrame, err)
	}
	return &d, nil
}

// Receive fetches and decrypts the file a Descriptor points to from bs,
// without needing a full Filesystem unlock — the path a recipient who was
// only ever handed a share link takes.
func Receive(ctx context.Context, bs bstore.Blockstore, d *Descriptor) ([]byte, error) {
	var fn fileNode
	if err := openAndDecode(ctx, bs, d.Payload.Key, d.Payload.CID, &fn); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, fn.Size)
	for _, c := range fn.Chunks {
		chunk, err := openChunk(ctx, bs, d.Payload.Key, c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
	if uint64(len(buf)) < fn.Size {
		return nil, errs.New(errs.KindIncompleteData, nil)
	}
	return buf[:fn.Size], nil
}
