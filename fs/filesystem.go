package fs

import (
	"context"
	"crypto/ecdh"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/forest"
	"github.com/banyancomputer/banyanfs/graph"
	"github.com/banyancomputer/banyanfs/internal/banyanlog"
	"github.com/banyancomputer/banyanfs/namefilter"
)

var logger = banyanlog.New("fs")

// buildTag identifies the metadata shape this filesystem writes, so a
// future incompatible revision of the label map can refuse to Unlock
// instead of silently misreading it.
const buildTag = "banyanfs-fs/v1"

// metadataLabels is the root object Init/Save/Unlock read and write: a
// small labeled map naming the forest and share manager nodes, mirroring
// the FOREST/SHARE_MANAGER/build-tag keys spec's Unlock requires.
type metadataLabels struct {
	BuildTag     string
	ForestRoot   cid.Cid
	ShareManager cid.Cid
}

// Filesystem is an encrypted private directory tree: a root directory
// reached through the share manager's current ref, backed by a forest that
// accumulates every saved revision of the root directory under the root's
// name filter. Nodes below the root are not entered into the forest.
type Filesystem struct {
	structureBS bstore.Blockstore
	payloadBS   bstore.Blockstore
	g           *graph.Graph
	salt        string
	forest      *forest.Forest
	forestRoot  cid.Cid
	share       *ShareManager
	rootRef     PrivateRef
	rootName    namefilter.Filter
}

// Salt is the namefilter salt; a fresh one is generated at Init and
// persisted by the caller alongside the drive (it is not secret, but must
// be stable across Unlock calls for name filters to match).
func (f *Filesystem) Salt() string { return f.salt }

// RootRef returns the filesystem's own current root ref — the directory
// reference, not a recipient's wrapped view of it.
func (f *Filesystem) RootRef() PrivateRef { return f.rootRef }

// Init creates a fresh, empty private filesystem: a new forest, a new root
// directory under a fresh name filter, and a share manager seeded with
// ownerPub as its sole recipient. It returns the filesystem and the CID to
// persist as the container's root.
func Init(ctx context.Context, store Store, salt string, ownerPub *ecdh.PublicKey) (*Filesystem, cid.Cid, error) {
	structureBS, payloadBS := store.Structure(), store.Payload()
	g := graph.New(structureBS)

	rootKey, err := cryptofs.NewAccessKey()
	if err != nil {
		return nil, cid.Undef, err
	}
	rootDirCID, err := sealAndStore(ctx, structureBS, rootKey, dirNode{})
	if err != nil {
		return nil, cid.Undef, err
	}
	rootRef := PrivateRef{CID: rootDirCID, Key: rootKey}

	var rootName namefilter.Filter
	rootName.Add(salt, "")

	fr := forest.Empty(g)
	forestRoot, err := fr.Put(ctx, rootName, rootDirCID)
	if err != nil {
		return nil, cid.Undef, err
	}

	share, err := NewShareManager(ownerPub, rootRef)
	if err != nil {
		return nil, cid.Undef, err
	}
	smCID, err := graph.Put(ctx, g, *share)
	if err != nil {
		return nil, cid.Undef, err
	}

	labels := metadataLabels{BuildTag: buildTag, ForestRoot: forestRoot, ShareManager: smCID}
	metaRoot, err := graph.Put(ctx, g, labels)
	if err != nil {
		return nil, cid.Undef, err
	}

	f := &Filesystem{
		structureBS: structureBS, payloadBS: payloadBS, g: g, salt: salt,
		forest: fr, forestRoot: forestRoot,
		share: share, rootRef: rootRef, rootName: rootName,
	}
	logger.Debugf("initialized filesystem, root %s", metaRoot)
	return f, metaRoot, nil
}

// Unlock reads metaRoot as a label map, decrypts the share manager's
// current ref with recipientPriv and adopts it as the root ref, and loads
// the forest from the label map's ForestRoot. The root directory itself is
// not read until a later operation resolves a path.
func Unlock(ctx context.Context, store Store, salt string, metaRoot cid.Cid, recipientPriv *ecdh.PrivateKey) (*Filesystem, error) {
	structureBS, payloadBS := store.Structure(), store.Payload()
	g := graph.New(structureBS)

	var labels metadataLabels
	if err := graph.Get(ctx, g, metaRoot, &labels); err != nil {
		return nil, err
	}
	if labels.BuildTag == "" {
		return nil, errs.MissingMetadata("BUILD_TAG")
	}
	if !labels.ForestRoot.Defined() {
		return nil, errs.MissingMetadata("FOREST")
	}
	if !labels.ShareManager.Defined() {
		return nil, errs.MissingMetadata("SHARE_MANAGER")
	}

	var share ShareManager
	if err := graph.Get(ctx, g, labels.ShareManager, &share); err != nil {
		return nil, err
	}

	rootRef, err := share.Unwrap(recipientPriv)
	if err != nil {
		return nil, err
	}

	fr, err := forest.Load(ctx, g, labels.ForestRoot)
	if err != nil {
		return nil, err
	}

	var rootName namefilter.Filter
	rootName.Add(salt, "")

	f := &Filesystem{
		structureBS: structureBS, payloadBS: payloadBS, g: g, salt: salt,
		forest: fr, forestRoot: labels.ForestRoot,
		share: &share, rootRef: rootRef, rootName: rootName,
	}
	return f, nil
}

// Save installs the current root ref as the forest and share manager's
// current state and returns the new metadata root CID. It is the only
// operation that must be called after a batch of mutations for them to
// become durable and shareable.
func (f *Filesystem) Save(ctx context.Context) (cid.Cid, error) {
	forestRoot, err := f.forest.Put(ctx, f.rootName, f.rootRef.CID)
	if err != nil {
		return cid.Undef, err
	}
	f.forestRoot = forestRoot

	if err := f.share.UpdateCurrentRef(f.rootRef); err != nil {
		return cid.Undef, err
	}
	smCID, err := graph.Put(ctx, f.g, *f.share)
	if err != nil {
		return cid.Undef, err
	}

	labels := metadataLabels{BuildTag: buildTag, ForestRoot: forestRoot, ShareManager: smCID}
	metaRoot, err := graph.Put(ctx, f.g, labels)
	if err != nil {
		return cid.Undef, err
	}
	return metaRoot, nil
}

// navStep is one level of a root-to-leaf directory traversal: the name it
// was reached by (empty for the root), its ref, and its decoded content.
type navStep struct {
	name string
	ref  PrivateRef
	node dirNode
}

func (f *Filesystem) loadDir(ctx context.Context, ref PrivateRef) (dirNode, error) {
	var n dirNode
	if err := openAndDecode(ctx, f.structureBS, ref.Key, ref.CID, &n); err != nil {
		return dirNode{}, err
	}
	return n, nil
}

// resolveParent walks every directory segment of p but the last, returning
// the chain from root to p's parent directory and the leaf segment name.
func (f *Filesystem) resolveParent(ctx context.Context, p Path) ([]navStep, string, error) {
	parentSegs, leaf := p.Parent()
	rootNode, err := f.loadDir(ctx, f.rootRef)
	if err != nil {
		return nil, "", err
	}
	chain := []navStep{{ref: f.rootRef, node: rootNode}}
	for _, seg := range parentSegs {
		last := chain[len(chain)-1]
		child, ok := last.node.Children[seg]
		if !ok || child.IsFile {
			return nil, "", errs.NodeNotFound(p.String())
		}
		ref := PrivateRef{CID: child.CID, Key: child.Key}
		node, err := f.loadDir(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		chain = append(chain, navStep{name: seg, ref: ref, node: node})
	}
	return chain, leaf, nil
}

// resolveDir walks every segment of p, requiring the result to be a
// directory.
func (f *Filesystem) resolveDir(ctx context.Context, p Path) (dirNode, error) {
	if p.IsRoot() {
		return f.loadDir(ctx, f.rootRef)
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return dirNode{}, err
	}
	ref, ok := chain[len(chain)-1].node.Children[leaf]
	if !ok || ref.IsFile {
		return dirNode{}, errs.NodeNotFound(p.String())
	}
	return f.loadDir(ctx, PrivateRef{CID: ref.CID, Key: ref.Key})
}

// commitChain applies mutateLeaf to the parent directory at the bottom of
// chain, then re-seals every directory from there back up to the root,
// installing the new root ref. Each ancestor keeps its original AccessKey
// across revisions; only its CID changes.
func (f *Filesystem) commitChain(ctx context.Context, chain []navStep, mutateLeaf func(*dirNode)) error {
	deepest := &chain[len(chain)-1]
	if deepest.node.Children == nil {
		deepest.node.Children = map[string]childRef{}
	}
	mutateLeaf(&deepest.node)

	for i := len(chain) - 1; i > 0; i-- {
		newCID, err := sealAndStore(ctx, f.structureBS, chain[i].ref.Key, chain[i].node)
		if err != nil {
			return err
		}
		parent := &chain[i-1]
		if parent.node.Children == nil {
			parent.node.Children = map[string]childRef{}
		}
		parent.node.Children[chain[i].name] = childRef{CID: newCID, Key: chain[i].ref.Key, IsFile: false}
	}

	rootCID, err := sealAndStore(ctx, f.structureBS, f.rootRef.Key, chain[0].node)
	if err != nil {
		return err
	}
	f.rootRef.CID = rootCID
	return nil
}

// Mkdir creates an empty directory at p. It is a no-op if a directory
// already exists there.
func (f *Filesystem) Mkdir(ctx context.Context, p Path) error {
	if p.IsRoot() {
		return nil
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return err
	}
	if existing, ok := chain[len(chain)-1].node.Children[leaf]; ok {
		if existing.IsFile {
			return fmt.Errorf("mkdir %s: a file already exists there", p)
		}
		return nil
	}

	key, err := cryptofs.NewAccessKey()
	if err != nil {
		return err
	}
	dirCID, err := sealAndStore(ctx, f.structureBS, key, dirNode{})
	if err != nil {
		return err
	}
	return f.commitChain(ctx, chain, func(n *dirNode) {
		n.Children[leaf] = childRef{CID: dirCID, Key: key, IsFile: false}
	})
}

// Write stores data as the file at p, creating or replacing it, and
// updates its MIME type and size. A replaced file's AccessKey is reused so
// Save's history entries chain from the same root identity.
func (f *Filesystem) Write(ctx context.Context, p Path, data []byte, mime string) error {
	if p.IsRoot() {
		return fmt.Errorf("write %s: cannot write to the root", p)
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return err
	}

	key := cryptofs.AccessKey{}
	if existing, ok := chain[len(chain)-1].node.Children[leaf]; ok && existing.IsFile {
		key = existing.Key
	} else {
		key, err = cryptofs.NewAccessKey()
		if err != nil {
			return err
		}
	}

	chunks := splitChunks(data)
	chunkCIDs := make([]cid.Cid, len(chunks))
	for i, chunk := range chunks {
		c, err := sealChunkAndStore(ctx, f.payloadBS, key, chunk)
		if err != nil {
			return err
		}
		chunkCIDs[i] = c
	}

	fileCID, err := sealAndStore(ctx, f.structureBS, key, fileNode{Mime: mime, Size: uint64(len(data)), Chunks: chunkCIDs})
	if err != nil {
		return err
	}
	return f.commitChain(ctx, chain, func(n *dirNode) {
		n.Children[leaf] = childRef{CID: fileCID, Key: key, IsFile: true}
	})
}

// Read returns the bytes of the file at p.
func (f *Filesystem) Read(ctx context.Context, p Path) ([]byte, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("read %s: is a directory", p)
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
	buf := make([]byte, 0, fn.Size)
	for _, c := range fn.Chunks {
		chunk, err := openChunk(ctx, f.payloadBS, ref.Key, c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
	if uint64(len(buf)) < fn.Size {
		return nil, errs.New(errs.KindIncompleteData, fmt.Errorf("read %s: expected %d bytes, got %d", p, fn.Size, len(buf)))
	}
	return buf[:fn.Size], nil
}

// Rm removes the node at p and returns CIDs for the caller to fold into the
// drive's deleted_block_cids set: for a file, its content chunk CIDs plus
// the CID of its sealed file node; for a directory, only the directory
// node's own CID. Content blocks of files beneath a removed directory are
// not collected.
func (f *Filesystem) Rm(ctx context.Context, p Path) ([]cid.Cid, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("rm %s: cannot remove the root", p)
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return nil, err
	}
	ref, ok := chain[len(chain)-1].node.Children[leaf]
	if !ok {
		return nil, errs.NodeNotFound(p.String())
	}

	var removed []cid.Cid
	if ref.IsFile {
		var fn fileNode
		if err := openAndDecode(ctx, f.structureBS, ref.Key, ref.CID, &fn); err == nil {
			removed = append(removed, fn.Chunks...)
		}
	}
	removed = append(removed, ref.CID)

	if err := f.commitChain(ctx, chain, func(n *dirNode) {
		delete(n.Children, leaf)
	}); err != nil {
		return nil, err
	}
	return removed, nil
}

// Mv moves the node at src to dst.
func (f *Filesystem) Mv(ctx context.Context, src, dst Path) error {
	srcChain, srcLeaf, err := f.resolveParent(ctx, src)
	if err != nil {
		return err
	}
	ref, ok := srcChain[len(srcChain)-1].node.Children[srcLeaf]
	if !ok {
		return errs.NodeNotFound(src.String())
	}
	if err := f.commitChain(ctx, srcChain, func(n *dirNode) {
		delete(n.Children, srcLeaf)
	}); err != nil {
		return err
	}

	dstChain, dstLeaf, err := f.resolveParent(ctx, dst)
	if err != nil {
		return err
	}
	return f.commitChain(ctx, dstChain, func(n *dirNode) {
		n.Children[dstLeaf] = ref
	})
}

// Cp copies the node at src to dst; the copy shares the same sealed blocks
// and AccessKey as the original. A later Write to either replaces that
// node's blocks but keeps the shared AccessKey.
func (f *Filesystem) Cp(ctx context.Context, src, dst Path) error {
	srcChain, srcLeaf, err := f.resolveParent(ctx, src)
	if err != nil {
		return err
	}
	ref, ok := srcChain[len(srcChain)-1].node.Children[srcLeaf]
	if !ok {
		return errs.NodeNotFound(src.String())
	}

	dstChain, dstLeaf, err := f.resolveParent(ctx, dst)
	if err != nil {
		return err
	}
	return f.commitChain(ctx, dstChain, func(n *dirNode) {
		n.Children[dstLeaf] = ref
	})
}

const symlinkMime = "inode/symlink"

// Symlink writes a symbolic-link-like file at p whose content is the
// target path string.
func (f *Filesystem) Symlink(ctx context.Context, p Path, target string) error {
	return f.Write(ctx, p, []byte(target), symlinkMime)
}

// EntryInfo describes one child of a listed directory.
type EntryInfo struct {
	Name   string
	IsFile bool
}

// Ls lists the children of the directory at p, sorted by name.
func (f *Filesystem) Ls(ctx context.Context, p Path) ([]EntryInfo, error) {
	n, err := f.resolveDir(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(n.Children))
	for name, ref := range n.Children {
		out = append(out, EntryInfo{Name: name, IsFile: ref.IsFile})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// NodeInfo describes the node at a path, whichever kind it is.
type NodeInfo struct {
	Path   Path
	IsFile bool
	Mime   string
	Size   uint64
}

// GetNode reports metadata about the node at p.
func (f *Filesystem) GetNode(ctx context.Context, p Path) (NodeInfo, error) {
	if p.IsRoot() {
		return NodeInfo{Path: p, IsFile: false}, nil
	}
	chain, leaf, err := f.resolveParent(ctx, p)
	if err != nil {
		return NodeInfo{}, err
	}
	ref, ok := chain[len(chain)-1].node.Children[leaf]
	if !ok {
		return NodeInfo{}, errs.NodeNotFound(p.String())
	}
	if !ref.IsFile {
		return NodeInfo{Path: p, IsFile: false}, nil
	}
	var fn fileNode
	if err := openAndDecode(ctx, f.structureBS, ref.Key, ref.CID, &fn); err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{Path: p, IsFile: true, Mime: fn.Mime, Size: fn.Size}, nil
}

// ShareWith grants pub access to the filesystem's current root.
func (f *Filesystem) ShareWith(pub *ecdh.PublicKey) error {
	return f.share.ShareWith(pub, f.rootRef)
}
