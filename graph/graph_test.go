package graph

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	Value string
	Next  []cid.Cid
}

func (n testNode) Links() []cid.Cid { return n.Next }

func newMemGraph() *Graph {
	bs := bstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	return New(bs)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newMemGraph()

	c, err := Put(ctx, g, testNode{Value: "leaf"})
	require.NoError(t, err)

	var out testNode
	require.NoError(t, Get(ctx, g, c, &out))
	require.Equal(t, "leaf", out.Value)
}

func TestWalkVisitsReachableNodesOnce(t *testing.T) {
	ctx := context.Background()
	g := newMemGraph()

	leaf1, err := Put(ctx, g, testNode{Value: "leaf1"})
	require.NoError(t, err)
	leaf2, err := Put(ctx, g, testNode{Value: "leaf2"})
	require.NoError(t, err)
	root, err := Put(ctx, g, testNode{Value: "root", Next: []cid.Cid{leaf1, leaf2, leaf1}})
	require.NoError(t, err)

	links := func(ctx context.Context, c cid.Cid) ([]cid.Cid, error) {
		var n testNode
		if err := Get(ctx, g, c, &n); err != nil {
			return nil, err
		}
		return n.Links(), nil
	}

	var visited []cid.Cid
	err = Walk(ctx, []cid.Cid{root}, links, func(c cid.Cid) error {
		visited = append(visited, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, visited, 3)
}
