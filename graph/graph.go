// Package graph stores and walks the content-addressed block graph backing
// a drive's content container: dag-cbor nodes linked by CID, put and
// fetched through a blockstore, and walked for reachability the way the
// teacher's WriteCarWithWalker enumerates a DAG before serializing it.
package graph

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	mh "github.com/multiformats/go-multihash"

	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/internal/banyanlog"
)

var logger = banyanlog.New("graph")

// Node is anything that can be dag-cbor encoded and that knows the CIDs of
// the other nodes it links to, the graph-level analogue of format.Node's
// Links() in the teacher's WalkFunc.
type Node interface {
	Links() []cid.Cid
}

// Graph is a content-addressed store of dag-cbor nodes layered over a
// blockstore; forest nodes, the share manager, and the filesystem's label
// map are stored through it. Sealed directory and file nodes are written to
// the same blockstore directly, as raw blocks.
type Graph struct {
	bs bstore.Blockstore
}

// New wraps an existing blockstore as a Graph.
func New(bs bstore.Blockstore) *Graph {
	return &Graph{bs: bs}
}

// Put dag-cbor encodes v, computes its CID, stores it, and returns the CID.
func Put(ctx context.Context, g *Graph, v interface{}) (cid.Cid, error) {
	raw, err := cbor.DumpObject(v)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode node: %w", err)
	}
	sum, err := mh.Sum(raw, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash node: %w", err)
	}
	c := cid.NewCidV1(cid.DagCBOR, sum)

	blk, err := blocks.NewBlockWithCid(raw, c)
	if err != nil {
		return cid.Undef, err
	}
	if err := g.bs.Put(ctx, blk); err != nil {
		return cid.Undef, fmt.Errorf("store node %s: %w", c, err)
	}
	return c, nil
}

// Get fetches and decodes the node at c into out, a pointer to a struct
// registered with cbor.RegisterCborType.
func Get(ctx context.Context, g *Graph, c cid.Cid, out interface{}) error {
	blk, err := g.bs.Get(ctx, c)
	if err != nil {
		return errs.MissingBlock(c)
	}
	if err := cbor.DecodeInto(blk.RawData(), out); err != nil {
		return errs.WithCID(errs.KindCorruptFrame, c, fmt.Errorf("decode node: %w", err))
	}
	return nil
}

// LinksFunc resolves a CID's outgoing links, the Graph-level counterpart of
// the teacher's WalkFunc/enumGetLinks pair.
type LinksFunc func(ctx context.Context, c cid.Cid) ([]cid.Cid, error)

// Walk visits every CID reachable from roots exactly once, in the order
// encountered, calling visit for each. It mirrors car.go's
// dag.Walk(ctx, cw.enumGetLinks, r, seen.Visit) loop over cid.NewSet().
func Walk(ctx context.Context, roots []cid.Cid, links LinksFunc, visit func(cid.Cid) error) error {
	seen := cid.NewSet()
	var stack []cid.Cid
	stack = append(stack, roots...)

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen.Has(c) {
			continue
		}
		seen.Add(c)

		if err := visit(c); err != nil {
			return fmt.Errorf("visit %s: %w", c, err)
		}

		next, err := links(ctx, c)
		if err != nil {
			return fmt.Errorf("resolve links of %s: %w", c, err)
		}
		for _, n := range next {
			if !seen.Has(n) {
				stack = append(stack, n)
			}
		}
	}
	return nil
}

// Reachable collects every CID reachable from roots into a set, the
// primitive behind a drive's "what content is still referenced" GC pass.
func Reachable(ctx context.Context, roots []cid.Cid, links LinksFunc) (*cid.Set, error) {
	set := cid.NewSet()
	err := Walk(ctx, roots, links, func(c cid.Cid) error {
		set.Add(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debugf("reachability walk visited %d nodes from %d roots", set.Len(), len(roots))
	return set, nil
}
