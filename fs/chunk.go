package fs

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	mh "github.com/multiformats/go-multihash"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/errs"
)

// ChunkSize is the fixed boundary a file's payload is split on. Content-
// defined chunking (rolling-hash boundaries) would dedupe better across
// similar files, but fixed-size chunking keeps chunk-offset bookkeeping
// trivial and matches this project's decision to favor the simpler scheme
// for its first implementation (see the design notes on chunk size).
const ChunkSize = 256 * 1024

// splitChunks divides data into ChunkSize pieces, the last possibly shorter.
func splitChunks(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(data) > 0 {
		n := ChunkSize
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// sealChunkAndStore seals a raw chunk (not dag-cbor encoded, since it's
// already the unit of payload) under key and stores it as a raw block.
func sealChunkAndStore(ctx context.Context, bs bstore.Blockstore, key cryptofs.AccessKey, chunk []byte) (cid.Cid, error) {
	sealed, err := cryptofs.Seal(key, chunk)
	if err != nil {
		return cid.Undef, err
	}
	sum, err := mh.Sum(sealed, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash sealed chunk: %w", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)
	blk, err := blocks.NewBlockWithCid(sealed, c)
	if err != nil {
		return cid.Undef, err
	}
	if err := bs.Put(ctx, blk); err != nil {
		return cid.Undef, fmt.Errorf("store sealed chunk %s: %w", c, err)
	}
	return c, nil
}

// openChunk fetches and opens a sealed chunk.
func openChunk(ctx context.Context, bs bstore.Blockstore, key cryptofs.AccessKey, c cid.Cid) ([]byte, error) {
	blk, err := bs.Get(ctx, c)
	if err != nil {
		return nil, errs.MissingBlock(c)
	}
	return cryptofs.Open(key, blk.RawData())
}
