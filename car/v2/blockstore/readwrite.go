package blockstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	bstore "github.com/ipfs/go-ipfs-blockstore"

	bf "github.com/banyancomputer/banyanfs/block"
	carv1 "github.com/banyancomputer/banyanfs/car/v1"
	carv2 "github.com/banyancomputer/banyanfs/car/v2"
	"github.com/banyancomputer/banyanfs/car/v2/index"
	"github.com/banyancomputer/banyanfs/errs"
)

// offsetSeeker adapts a region of f starting at base to a self-contained
// io.ReadWriteSeeker, so callers like carv1.RewriteRoots can operate on a
// v2 container's embedded v1 body without knowing about its surrounding
// pragma and header.
type offsetSeeker struct {
	f    *os.File
	base int64
	pos  int64
}

func (s *offsetSeeker) Read(p []byte) (int, error) {
	n, err := s.f.ReadAt(p, s.base+s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *offsetSeeker) Write(p []byte) (int, error) {
	n, err := s.f.WriteAt(p, s.base+s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *offsetSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		end, err := s.f.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		s.pos = end - s.base + offset
	}
	return s.pos, nil
}

// Truncate cuts the region to size bytes, measured from base, so a header
// shrink in carv1.RewriteRoots drops the stale tail left after the shift.
func (s *offsetSeeker) Truncate(size int64) error {
	return s.f.Truncate(s.base + size)
}

var _ bstore.Blockstore = (*ReadWrite)(nil)

// ReadWrite is the write path of a v2 container: blocks are appended and
// made immediately readable, while the index is tracked in memory and only
// flattened to bytes on Finalize.
type ReadWrite struct {
	ReadOnly

	mu     sync.Mutex
	f      *os.File
	header carv2.Header
	roots  []cid.Cid
	seen      map[string]seenEntry // multihash -> (cid, offset), the in-memory insertion index
	finalized bool
}

// OpenReadWrite creates, or resumes, a v2 container at path with the given
// roots. Resuming with nil roots adopts the roots already stored in the
// container; any other roots must match them.
func OpenReadWrite(path string, roots []cid.Cid) (*ReadWrite, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open v2 container %q: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	rw := &ReadWrite{
		f:      f,
		header: carv2.NewHeader(0),
		roots:  roots,
		seen:   make(map[string]seenEntry),
	}
	rw.ReadOnly.backing = f

	if stat.Size() == 0 {
		if err := rw.initWithRoots(); err != nil {
			f.Close()
			return nil, err
		}
		return rw, nil
	}

	if err := rw.resumeWithRoots(); err != nil {
		f.Close()
		return nil, err
	}
	return rw, nil
}

func (rw *ReadWrite) initWithRoots() error {
	if _, err := rw.f.WriteAt(carv2.Pragma, 0); err != nil {
		return err
	}
	if _, err := rw.f.Seek(int64(rw.header.DataOffset), 0); err != nil {
		return err
	}
	return carv1.WriteHeader(carv1.NewHeader(rw.roots), rw.f)
}

// resumeWithRoots re-derives the in-memory index by linear scan, the same
// fallback the teacher's resumeWithRoots takes for a finalized or
// partially-written file: the flattened on-disk index cannot be turned back
// into an insertion index, so it is simpler and always correct to rebuild.
func (rw *ReadWrite) resumeWithRoots() error {
	version, err := carv2.ReadVersion(io.NewSectionReader(rw.f, 0, carv2.PragmaSize))
	if err != nil {
		return fmt.Errorf("resume: read container version: %w", err)
	}
	if version != 2 {
		return errs.ProtocolMismatch(2, version)
	}

	var onFile carv2.Header
	if _, err := onFile.ReadFrom(io.NewSectionReader(rw.f, carv2.PragmaSize, carv2.HeaderSize)); err == nil && onFile.DataOffset != 0 {
		// Previously finalized: truncate away the index so the data region
		// is exactly the v1 body again.
		if onFile.DataSize != 0 {
			if err := rw.f.Truncate(int64(onFile.DataOffset + onFile.DataSize)); err != nil {
				return err
			}
		}
		rw.header = onFile.WithDataSize(onFile.DataSize)
	}

	v1r, err := carv1.NewReader(io.NewSectionReader(rw.f, int64(rw.header.DataOffset), 1<<62))
	if err != nil {
		return fmt.Errorf("resume: read carv1 header: %w", err)
	}
	if rw.roots == nil {
		rw.roots = v1r.Header.Roots
	} else if !v1r.Header.Matches(rw.roots) {
		return errs.New(errs.KindProtocolMismatch, fmt.Errorf("resume root mismatch"))
	}

	for {
		blk, offset, err := v1r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("resume: re-index at offset %d: %w", offset, err)
		}
		// v1r's offsets are relative to the data payload section, but
		// ReadOnly.backing here is the raw file, so store absolute offsets.
		rw.index(blk.CID, rw.header.DataOffset+offset)
	}
	return nil
}

// seenEntry remembers both the full CID and its frame offset, so that
// enumeration (AllKeysChan) can hand back real CIDs, not just digests.
type seenEntry struct {
	cid    cid.Cid
	offset uint64
}

func (rw *ReadWrite) index(c cid.Cid, offset uint64) {
	rw.seen[string(c.Hash())] = seenEntry{cid: c, offset: offset}
}

// Has, Get, and GetSize shadow ReadOnly's versions: a ReadWrite's index is
// the in-memory insertion map, not a flattened on-disk index.Index, so
// lookups are served directly from rw.seen instead of going through
// ReadOnly.idx.

func (rw *ReadWrite) Has(ctx context.Context, key cid.Cid) (bool, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	_, ok := rw.seen[string(key.Hash())]
	return ok, nil
}

func (rw *ReadWrite) Get(ctx context.Context, key cid.Cid) (blocks.Block, error) {
	rw.mu.Lock()
	entry, ok := rw.seen[string(key.Hash())]
	rw.mu.Unlock()
	if !ok {
		return nil, errs.MissingBlock(key)
	}
	_, data, err := rw.readBlockAt(int64(entry.offset))
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, key)
}

func (rw *ReadWrite) GetSize(ctx context.Context, key cid.Cid) (int, error) {
	blk, err := rw.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(blk.RawData()), nil
}

// AllKeysChan streams every CID currently indexed in memory.
func (rw *ReadWrite) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	rw.mu.Lock()
	keys := make([]cid.Cid, 0, len(rw.seen))
	for _, e := range rw.seen {
		keys = append(keys, e.cid)
	}
	rw.mu.Unlock()

	ch := make(chan cid.Cid)
	go func() {
		defer close(ch)
		for _, c := range keys {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Put appends one block and records its offset, skipping it if a block with
// the same digest is already present.
func (rw *ReadWrite) Put(_ context.Context, blk blocks.Block) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.finalized {
		return errs.New(errs.KindFinalized, nil)
	}
	if _, ok := rw.seen[string(blk.Cid().Hash())]; ok {
		return nil
	}

	offset, err := rw.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if err := bf.Write(rw.f, blk.Cid(), blk.RawData()); err != nil {
		return err
	}
	rw.index(blk.Cid(), uint64(offset))
	return nil
}

// PutMany puts each block in order.
func (rw *ReadWrite) PutMany(ctx context.Context, blks []blocks.Block) error {
	for _, blk := range blks {
		if err := rw.Put(ctx, blk); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes the index and the v2 header, closing the container to
// further writes. The header is written last, after the data and index
// payloads, so a crash mid-finalize never leaves a header pointing at
// incomplete data.
func (rw *ReadWrite) Finalize() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.finalized {
		return nil
	}

	dataEnd, err := rw.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	dataSize := uint64(dataEnd) - rw.header.DataOffset

	idx := index.New()
	records := make([]index.Record, 0, len(rw.seen))
	// rw.seen holds absolute file offsets, while the on-disk index stores
	// offsets relative to the data payload, so Finalize re-derives the
	// records by re-scanning the v1 body instead of converting the map.
	v1r, err := carv1.NewReader(io.NewSectionReader(rw.f, int64(rw.header.DataOffset), 1<<62))
	if err != nil {
		return fmt.Errorf("finalize: reopen carv1 body: %w", err)
	}
	for {
		blk, offset, err := v1r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("finalize: scan at offset %d: %w", offset, err)
		}
		records = append(records, index.Record{Cid: blk.CID, Offset: offset})
	}
	if err := idx.Load(records); err != nil {
		return err
	}

	indexOffset := uint64(dataEnd)
	if _, err := rw.f.Seek(int64(indexOffset), 0); err != nil {
		return err
	}
	if _, err := idx.Marshal(rw.f); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	finalHeader := carv2.NewHeader(dataSize).WithDataPadding(rw.header.DataOffset - carv2.PragmaSize - carv2.HeaderSize)
	finalHeader.IndexOffset = indexOffset
	if _, err := rw.f.Seek(carv2.PragmaSize, 0); err != nil {
		return err
	}
	if _, err := finalHeader.WriteTo(rw.f); err != nil {
		return fmt.Errorf("write v2 header: %w", err)
	}

	rw.header = finalHeader
	rw.finalized = true
	return rw.f.Close()
}

// Roots returns the container's root set.
func (rw *ReadWrite) Roots() []cid.Cid { return rw.roots }

// SetRoots rewrites the roots of an unfinalized container, shifting the
// block stream to compensate for any header size change. Per spec §4.2,
// every already-recorded block offset in rw.seen is shifted by the same
// delta, so Get/Has/GetSize issued on this live handle afterward still
// resolve to the right frame instead of stale, pre-shift offsets.
func (rw *ReadWrite) SetRoots(roots []cid.Cid) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.finalized {
		return errs.New(errs.KindFinalized, nil)
	}
	region := &offsetSeeker{f: rw.f, base: int64(rw.header.DataOffset)}
	delta, err := carv1.RewriteRoots(region, roots)
	if err != nil {
		return err
	}
	if delta != 0 {
		for digest, entry := range rw.seen {
			entry.offset = uint64(int64(entry.offset) + delta)
			rw.seen[digest] = entry
		}
	}
	rw.roots = roots
	return nil
}
