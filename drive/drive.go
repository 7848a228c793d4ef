package drive

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"

	"github.com/banyancomputer/banyanfs/car/v2/blockstore"
	"github.com/banyancomputer/banyanfs/fs"
)

var _ fs.Store = (*Drive)(nil)

// Drive owns the two CARv2 containers that back one local encrypted
// filesystem: a metadata container holding structure only, and a content
// container holding structure plus every file payload chunk. Their roots
// are kept equal, so the content container alone is always a superset of
// what the metadata container reconstructs.
//
// All drive-level mutation goes through the header lock: a single
// sync.RWMutex guarding previousRoot and deletedBlockCIDs, the in-memory
// header state a concurrent push/pull and local write must not race on.
type Drive struct {
	mu sync.RWMutex

	metadata *blockstore.ReadWrite
	content  *blockstore.ReadWrite

	metadataPath string
	contentPath  string

	delta            *Delta
	deletedBlockCIDs map[cid.Cid]struct{}
	previousRoot     cid.Cid

	originPath string
}

// Option configures Create/Open.
type Option func(*Drive)

// WithOriginPath records the host filesystem path this drive mirrors, for
// display and re-pairing purposes only; it plays no part in content
// addressing.
func WithOriginPath(path string) Option {
	return func(d *Drive) { d.originPath = path }
}

// Create opens (creating if absent) a drive's metadata and content CARv2
// containers at the given paths.
func Create(metadataPath, contentPath string, opts ...Option) (*Drive, error) {
	metadata, err := blockstore.OpenReadWrite(metadataPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open metadata container %q: %w", metadataPath, err)
	}
	content, err := blockstore.OpenReadWrite(contentPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open content container %q: %w", contentPath, err)
	}

	d := &Drive{
		metadata:         metadata,
		content:          content,
		metadataPath:     metadataPath,
		contentPath:      contentPath,
		delta:            &Delta{},
		deletedBlockCIDs: map[cid.Cid]struct{}{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// OriginPath returns the host path this drive mirrors, if any.
func (d *Drive) OriginPath() string { return d.originPath }

// MetadataPath and ContentPath return the on-disk locations of this
// drive's two containers, so a sync push can open and stream their
// finalized bytes.
func (d *Drive) MetadataPath() string { return d.metadataPath }
func (d *Drive) ContentPath() string  { return d.contentPath }

// CurrentRoot returns the drive's current metadata container root — the
// root installed by the most recent SetRoots call, typically right after a
// Filesystem.Save. This is distinct from PreviousRoot, which tracks the
// root as of the last successful sync.
func (d *Drive) CurrentRoot() cid.Cid {
	roots := d.metadata.Roots()
	if len(roots) == 0 {
		return cid.Undef
	}
	return roots[0]
}

// CurrentContentRoot returns the content container's own root, which a
// metadata-only pull leaves stale relative to CurrentRoot — the gap
// Classify reports as MetadataSynced.
func (d *Drive) CurrentContentRoot() cid.Cid {
	roots := d.content.Roots()
	if len(roots) == 0 {
		return cid.Undef
	}
	return roots[0]
}

// PreviousRoot returns the root CID as of the last successful sync.
func (d *Drive) PreviousRoot() cid.Cid {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.previousRoot
}

// SetPreviousRoot records the root most recently confirmed synced.
func (d *Drive) SetPreviousRoot(c cid.Cid) {
	d.mu.Lock()
	d.previousRoot = c
	d.mu.Unlock()
}

// Delta exposes the content container's append tracker.
func (d *Drive) Delta() *Delta { return d.delta }

// MarkDeleted folds cids into the set of content blocks removed locally
// since the last push; the server takes ownership of actually deleting them
// once a metadata push acknowledging the removal succeeds.
func (d *Drive) MarkDeleted(cids ...cid.Cid) {
	d.mu.Lock()
	for _, c := range cids {
		d.deletedBlockCIDs[c] = struct{}{}
	}
	d.mu.Unlock()
}

// DeletedBlockCIDs returns a snapshot of the blocks deleted locally since
// the last successful metadata push.
func (d *Drive) DeletedBlockCIDs() []cid.Cid {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]cid.Cid, 0, len(d.deletedBlockCIDs))
	for c := range d.deletedBlockCIDs {
		out = append(out, c)
	}
	return out
}

// ClearDeletedBlockCIDs empties the deleted set, called once a metadata
// push that reported them has been acknowledged.
func (d *Drive) ClearDeletedBlockCIDs() {
	d.mu.Lock()
	d.deletedBlockCIDs = map[cid.Cid]struct{}{}
	d.mu.Unlock()
}

// Structure implements fs.Store: directory, file, forest, and share
// manager nodes replicate into both containers.
func (d *Drive) Structure() bstore.Blockstore {
	return &fanoutBlockstore{metadata: d.metadata, content: d.content, delta: d.delta}
}

// Payload implements fs.Store: file content chunks are written only to the
// content container.
func (d *Drive) Payload() bstore.Blockstore {
	return &contentOnlyBlockstore{content: d.content, delta: d.delta}
}

// SetRoots updates both containers' roots to c, keeping them in lockstep as
// required by this drive's duplicated-metadata invariant.
func (d *Drive) SetRoots(c cid.Cid) error {
	if err := d.metadata.SetRoots([]cid.Cid{c}); err != nil {
		return fmt.Errorf("set metadata root: %w", err)
	}
	if err := d.content.SetRoots([]cid.Cid{c}); err != nil {
		return fmt.Errorf("set content root: %w", err)
	}
	return nil
}

// Finalize writes both containers' CARv2 headers and indexes, the step
// that must run before a drive's files are safe to read back after the
// process exits.
func (d *Drive) Finalize(_ context.Context) error {
	if err := d.metadata.Finalize(); err != nil {
		return fmt.Errorf("finalize metadata container: %w", err)
	}
	if err := d.content.Finalize(); err != nil {
		return fmt.Errorf("finalize content container: %w", err)
	}
	return nil
}

// Close finalizes both containers and releases their file handles. Callers
// that want an unfinalized container to remain resumable should call
// Finalize themselves on their own schedule instead.
func (d *Drive) Close(ctx context.Context) error {
	if err := d.Finalize(ctx); err != nil {
		return err
	}
	if err := d.metadata.Close(); err != nil {
		return fmt.Errorf("close metadata container: %w", err)
	}
	if err := d.content.Close(); err != nil {
		return fmt.Errorf("close content container: %w", err)
	}
	return nil
}
