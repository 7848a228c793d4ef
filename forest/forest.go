// Package forest implements the private forest: the authoritative,
// content-addressed store for all encrypted filesystem structure. It holds
// no plaintext structure of its own — only a map from an opaque name
// filter to the CIDs of the sealed node revisions accumulated under that
// name, the same content-addressed-map shape tomb-common's metadata.rs
// layers the "FOREST" label over.
package forest

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/graph"
	"github.com/banyancomputer/banyanfs/namefilter"
)

func init() {
	cbor.RegisterCborType(node{})
}

// node is the forest's own dag-cbor representation: for each name filter, the
// CIDs of every sealed revision ever accumulated under it. Entries are never
// removed, only appended to — the same accumulate-only discipline as the
// name filter itself, so every forest root carries all earlier entries. A
// node holds no link to the root it was derived from.
type node struct {
	Entries []entry
}

type entry struct {
	Name     [namefilter.Size]byte
	Revision cid.Cid
}

// Forest is a content-addressed map. Put stores a new root node, updates
// the Forest value in place to that node, and returns its CID; the caller
// installs the new CID wherever it tracks "current forest root" (the
// drive's metadata root, the share manager's current_ref).
type Forest struct {
	g    *graph.Graph
	root node
}

// Empty returns a forest with no entries, the starting point for
// Filesystem.Init.
func Empty(g *graph.Graph) *Forest {
	return &Forest{g: g}
}

// Load reads an existing forest from its root CID.
func Load(ctx context.Context, g *graph.Graph, root cid.Cid) (*Forest, error) {
	var n node
	if err := graph.Get(ctx, g, root, &n); err != nil {
		return nil, fmt.Errorf("load forest %s: %w", root, err)
	}
	return &Forest{g: g, root: n}, nil
}

// Put accumulates a new sealed revision under name, returning the forest's
// new root CID. The previous root's block stays in the store unchanged; the
// new node copies its entries rather than linking to it.
func (f *Forest) Put(ctx context.Context, name namefilter.Filter, revision cid.Cid) (cid.Cid, error) {
	next := node{Entries: append(append([]entry{}, f.root.Entries...), entry{Name: name, Revision: revision})}
	c, err := graph.Put(ctx, f.g, next)
	if err != nil {
		return cid.Undef, fmt.Errorf("store forest node: %w", err)
	}
	f.root = next
	return c, nil
}

// Get returns the most recently accumulated revision CID under name, or
// NodeNotFound if name has never been used.
func (f *Forest) Get(name namefilter.Filter) (cid.Cid, error) {
	for i := len(f.root.Entries) - 1; i >= 0; i-- {
		if f.root.Entries[i].Name == name {
			return f.root.Entries[i].Revision, nil
		}
	}
	return cid.Undef, errs.NodeNotFound(fmt.Sprintf("namefilter %x", name))
}

// History returns every revision CID ever accumulated under name, oldest
// first, the per-label analogue of Filesystem's private-reference history
// traversal.
func (f *Forest) History(name namefilter.Filter) []cid.Cid {
	var out []cid.Cid
	for _, e := range f.root.Entries {
		if e.Name == name {
			out = append(out, e.Revision)
		}
	}
	return out
}

// Contains reports whether any accumulated name filter is a superset match
// for candidate — the bloom-subset lookup a directory uses to confirm a
// derived child name filter could resolve against this forest.
func (f *Forest) Contains(candidate namefilter.Filter) bool {
	for _, e := range f.root.Entries {
		filter := namefilter.Filter(e.Name)
		if filter.Contains(candidate) {
			return true
		}
	}
	return false
}
