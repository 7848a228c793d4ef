package forest

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/banyancomputer/banyanfs/graph"
	"github.com/banyancomputer/banyanfs/namefilter"
)

func newMemGraph() *graph.Graph {
	bs := bstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	return graph.New(bs)
}

func randCID(t *testing.T, seed byte) cid.Cid {
	t.Helper()
	data := make([]byte, 8)
	data[0] = seed
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newMemGraph()
	f := Empty(g)

	var name namefilter.Filter
	name.Add("salt", "cat.txt")
	rev := randCID(t, 1)

	root, err := f.Put(ctx, name, rev)
	require.NoError(t, err)
	require.True(t, root.Defined())

	got, err := f.Get(name)
	require.NoError(t, err)
	require.Equal(t, rev, got)
}

func TestGetMissingNameReturnsNodeNotFound(t *testing.T) {
	g := newMemGraph()
	f := Empty(g)

	var name namefilter.Filter
	name.Add("salt", "missing.txt")

	_, err := f.Get(name)
	require.Error(t, err)
}

func TestLoadReconstructsForest(t *testing.T) {
	ctx := context.Background()
	g := newMemGraph()
	f := Empty(g)

	var name namefilter.Filter
	name.Add("salt", "cat.txt")
	rev := randCID(t, 2)

	root, err := f.Put(ctx, name, rev)
	require.NoError(t, err)

	reloaded, err := Load(ctx, g, root)
	require.NoError(t, err)

	got, err := reloaded.Get(name)
	require.NoError(t, err)
	require.Equal(t, rev, got)
}

func TestHistoryAccumulatesRevisions(t *testing.T) {
	ctx := context.Background()
	g := newMemGraph()
	f := Empty(g)

	var name namefilter.Filter
	name.Add("salt", "cat.txt")

	rev1 := randCID(t, 3)
	rev2 := randCID(t, 4)

	_, err := f.Put(ctx, name, rev1)
	require.NoError(t, err)
	_, err = f.Put(ctx, name, rev2)
	require.NoError(t, err)

	history := f.History(name)
	require.Equal(t, []cid.Cid{rev1, rev2}, history)
}
