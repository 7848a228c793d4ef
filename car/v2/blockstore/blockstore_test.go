package blockstore

import (
	"context"
	"path/filepath"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func mustBlock(t *testing.T, data []byte) blocks.Block {
	t.Helper()
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, sum)
	blk, err := blocks.NewBlockWithCid(data, c)
	require.NoError(t, err)
	return blk
}

func TestReadWritePutGetFinalizeReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "container.car")

	b1 := mustBlock(t, []byte("root block"))
	b2 := mustBlock(t, []byte("child block"))

	rw, err := OpenReadWrite(path, []cid.Cid{b1.Cid()})
	require.NoError(t, err)
	require.NoError(t, rw.Put(ctx, b1))
	require.NoError(t, rw.Put(ctx, b2))

	has, err := rw.Has(ctx, b1.Cid())
	require.NoError(t, err)
	require.True(t, has)

	got, err := rw.Get(ctx, b2.Cid())
	require.NoError(t, err)
	require.Equal(t, b2.RawData(), got.RawData())

	require.NoError(t, rw.Finalize())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	got2, err := ro.Get(ctx, b1.Cid())
	require.NoError(t, err)
	require.Equal(t, b1.RawData(), got2.RawData())

	has2, err := ro.Has(ctx, b2.Cid())
	require.NoError(t, err)
	require.True(t, has2)
}

func TestReadWriteResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "resume.car")

	b1 := mustBlock(t, []byte("first"))
	rw, err := OpenReadWrite(path, []cid.Cid{b1.Cid()})
	require.NoError(t, err)
	require.NoError(t, rw.Put(ctx, b1))
	require.NoError(t, rw.f.Close())

	rw2, err := OpenReadWrite(path, []cid.Cid{b1.Cid()})
	require.NoError(t, err)
	has, err := rw2.Has(ctx, b1.Cid())
	require.NoError(t, err)
	require.True(t, has)
}
