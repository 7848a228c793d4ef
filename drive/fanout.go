package drive

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"
)

// fanoutBlockstore is the drive's fs.Store.Structure() blockstore: every Put
// lands in both the metadata and content containers, so a metadata-only
// pull still reconstructs a complete, browsable filesystem. Reads are
// served from metadata, since every structure node always lives there.
type fanoutBlockstore struct {
	metadata bstore.Blockstore
	content  bstore.Blockstore
	delta    *Delta
}

var _ bstore.Blockstore = (*fanoutBlockstore)(nil)

func (f *fanoutBlockstore) Put(ctx context.Context, blk blocks.Block) error {
	already, err := f.metadata.Has(ctx, blk.Cid())
	if err != nil {
		return err
	}
	if err := f.metadata.Put(ctx, blk); err != nil {
		return err
	}
	if err := f.content.Put(ctx, blk); err != nil {
		return err
	}
	if !already {
		f.delta.track(len(blk.RawData()))
	}
	return nil
}

func (f *fanoutBlockstore) PutMany(ctx context.Context, blks []blocks.Block) error {
	for _, blk := range blks {
		if err := f.Put(ctx, blk); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutBlockstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	return f.metadata.Get(ctx, c)
}

func (f *fanoutBlockstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return f.metadata.Has(ctx, c)
}

func (f *fanoutBlockstore) GetSize(ctx context.Context, c cid.Cid) (int, error) {
	return f.metadata.GetSize(ctx, c)
}

func (f *fanoutBlockstore) DeleteBlock(ctx context.Context, c cid.Cid) error {
	return f.metadata.DeleteBlock(ctx, c)
}

func (f *fanoutBlockstore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return f.metadata.AllKeysChan(ctx)
}

func (f *fanoutBlockstore) HashOnRead(bool) {}

// contentOnlyBlockstore is the drive's fs.Store.Payload() blockstore: file
// chunks are never duplicated into metadata, so it just tracks delta size
// on top of the content container directly.
type contentOnlyBlockstore struct {
	content bstore.Blockstore
	delta   *Delta
}

var _ bstore.Blockstore = (*contentOnlyBlockstore)(nil)

func (c *contentOnlyBlockstore) Put(ctx context.Context, blk blocks.Block) error {
	already, err := c.content.Has(ctx, blk.Cid())
	if err != nil {
		return err
	}
	if err := c.content.Put(ctx, blk); err != nil {
		return err
	}
	if !already {
		c.delta.track(len(blk.RawData()))
	}
	return nil
}

func (c *contentOnlyBlockstore) PutMany(ctx context.Context, blks []blocks.Block) error {
	for _, blk := range blks {
		if err := c.Put(ctx, blk); err != nil {
			return err
		}
	}
	return nil
}

func (c *contentOnlyBlockstore) Get(ctx context.Context, cc cid.Cid) (blocks.Block, error) {
	return c.content.Get(ctx, cc)
}

func (c *contentOnlyBlockstore) Has(ctx context.Context, cc cid.Cid) (bool, error) {
	return c.content.Has(ctx, cc)
}

func (c *contentOnlyBlockstore) GetSize(ctx context.Context, cc cid.Cid) (int, error) {
	return c.content.GetSize(ctx, cc)
}

func (c *contentOnlyBlockstore) DeleteBlock(ctx context.Context, cc cid.Cid) error {
	return c.content.DeleteBlock(ctx, cc)
}

func (c *contentOnlyBlockstore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return c.content.AllKeysChan(ctx)
}

func (c *contentOnlyBlockstore) HashOnRead(bool) {}
