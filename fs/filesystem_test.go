package fs

import (
	"context"
	"testing"

	bstore "github.com/ipfs/go-ipfs-blockstore"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	"github.com/banyancomputer/banyanfs/cryptofs"
)

func newMemStore() bstore.Blockstore {
	return bstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
}

func TestInitSaveUnlockWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()

	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, metaRoot, err := Init(ctx, SingleStore{BS: bs}, "test-salt", owner.PublicKey())
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, ParsePath("cat.txt"), []byte("hello kitty"), "text/plain"))
	metaRoot, err = f.Save(ctx)
	require.NoError(t, err)

	reloaded, err := Unlock(ctx, SingleStore{BS: bs}, "test-salt", metaRoot, owner)
	require.NoError(t, err)

	data, err := reloaded.Read(ctx, ParsePath("cat.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello kitty", string(data))
}

func TestMkdirWriteLs(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)

	require.NoError(t, f.Mkdir(ctx, ParsePath("docs")))
	require.NoError(t, f.Write(ctx, ParsePath("docs/readme.md"), []byte("hi"), "text/markdown"))

	entries, err := f.Ls(ctx, ParsePath(""))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "docs", entries[0].Name)
	require.False(t, entries[0].IsFile)

	docEntries, err := f.Ls(ctx, ParsePath("docs"))
	require.NoError(t, err)
	require.Len(t, docEntries, 1)
	require.Equal(t, "readme.md", docEntries[0].Name)
	require.True(t, docEntries[0].IsFile)
}

func TestRmCollectsRemovedCIDs(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, ParsePath("a.txt"), []byte("content"), "text/plain"))

	removed, err := f.Rm(ctx, ParsePath("a.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, removed)

	_, err = f.Read(ctx, ParsePath("a.txt"))
	require.Error(t, err)
}

func TestMvMovesFile(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, ParsePath("a.txt"), []byte("content"), "text/plain"))
	require.NoError(t, f.Mv(ctx, ParsePath("a.txt"), ParsePath("b.txt")))

	_, err = f.Read(ctx, ParsePath("a.txt"))
	require.Error(t, err)

	data, err := f.Read(ctx, ParsePath("b.txt"))
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}

func TestShareFileDescriptorRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, ParsePath("cat.txt"), []byte("hello kitty"), "text/plain"))

	desc, err := f.ShareFile(ctx, ParsePath("cat.txt"))
	require.NoError(t, err)

	encoded, err := EncodeDescriptor(desc)
	require.NoError(t, err)

	decoded, err := DecodeDescriptor(encoded)
	require.NoError(t, err)

	data, err := Receive(ctx, bs, decoded)
	require.NoError(t, err)
	require.Equal(t, "hello kitty", string(data))
}

func TestWriteChunksLargeFile(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)

	big := make([]byte, ChunkSize*2+17)
	for i := range big {
		big[i] = byte(i % 251)
	}
	require.NoError(t, f.Write(ctx, ParsePath("big.bin"), big, "application/octet-stream"))

	got, err := f.Read(ctx, ParsePath("big.bin"))
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestHistoryAccumulatesAcrossSaves(t *testing.T) {
	ctx := context.Background()
	bs := newMemStore()
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	f, _, err := Init(ctx, SingleStore{BS: bs}, "salt", owner.PublicKey())
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, ParsePath("a.txt"), []byte("v1"), "text/plain"))
	_, err = f.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, ParsePath("a.txt"), []byte("v2"), "text/plain"))
	_, err = f.Save(ctx)
	require.NoError(t, err)

	history := f.History(ctx)
	require.GreaterOrEqual(t, len(history), 2)
}
