package fs

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	mh "github.com/multiformats/go-multihash"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/errs"
)

func init() {
	cbor.RegisterCborType(dirNode{})
	cbor.RegisterCborType(fileNode{})
	cbor.RegisterCborType(childRef{})
	cbor.RegisterCborType(recipient{})
	cbor.RegisterCborType(ShareManager{})
	cbor.RegisterCborType(cryptofs.WrappedKey{})
	cbor.RegisterCborType(metadataLabels{})
}

// childRef is a directory entry: the sealed CID of the child's current
// revision, plus the AccessKey needed to open it. The key never changes
// across a node's revisions in this implementation (key rotation on share
// revocation is listed as an open follow-up in the project's design notes),
// so only CID needs updating when a child's content changes.
type childRef struct {
	CID    cid.Cid
	Key    [cryptofs.AccessKeySize]byte
	IsFile bool
}

// dirNode is the plaintext shape of a directory revision before sealing.
type dirNode struct {
	Children map[string]childRef
}

// fileNode is the plaintext shape of a file revision before sealing: the
// payload itself lives in chunk blocks, addressed here by CID and sealed
// under the same AccessKey as this node.
type fileNode struct {
	Mime   string
	Size   uint64
	Chunks []cid.Cid
}

// sealAndStore dag-cbor encodes v, seals it under key, hashes the
// ciphertext as a raw block, and stores it in bs. The returned CID
// addresses ciphertext, not plaintext — a private forest invariant that
// keeps content-addressing meaningful without revealing structure.
func sealAndStore(ctx context.Context, bs bstore.Blockstore, key cryptofs.AccessKey, v interface{}) (cid.Cid, error) {
	plain, err := cbor.DumpObject(v)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode node: %w", err)
	}
	sealed, err := cryptofs.Seal(key, plain)
	if err != nil {
		return cid.Undef, err
	}
	sum, err := mh.Sum(sealed, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash sealed node: %w", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)
	blk, err := blocks.NewBlockWithCid(sealed, c)
	if err != nil {
		return cid.Undef, err
	}
	if err := bs.Put(ctx, blk); err != nil {
		return cid.Undef, fmt.Errorf("store sealed node %s: %w", c, err)
	}
	return c, nil
}

// openAndDecode fetches the sealed block at c, opens it under key, and
// decodes it into out.
func openAndDecode(ctx context.Context, bs bstore.Blockstore, key cryptofs.AccessKey, c cid.Cid, out interface{}) error {
	blk, err := bs.Get(ctx, c)
	if err != nil {
		return errs.MissingBlock(c)
	}
	plain, err := cryptofs.Open(key, blk.RawData())
	if err != nil {
		return err
	}
	if err := cbor.DecodeInto(plain, out); err != nil {
		return errs.WithCID(errs.KindCorruptFrame, c, fmt.Errorf("decode node: %w", err))
	}
	return nil
}
