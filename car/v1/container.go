package carv1

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	bf "github.com/banyancomputer/banyanfs/block"
	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/internal/banyanlog"
)

var logger = banyanlog.New("car/v1")

// Writer appends blocks to an open v1 body after its header has already
// been written, mirroring the teacher's carWriter/writeNode pair.
type Writer struct {
	w io.Writer
}

// NewWriter writes h and returns a Writer ready to append blocks.
func NewWriter(w io.Writer, h *Header) (*Writer, error) {
	if err := WriteHeader(h, w); err != nil {
		return nil, fmt.Errorf("write carv1 header: %w", err)
	}
	return &Writer{w: w}, nil
}

// Put appends one block frame.
func (cw *Writer) Put(blk bf.Block) error {
	return bf.Write(cw.w, blk.CID, blk.Bytes)
}

// Reader streams blocks out of a v1 body, tracking byte offsets the way the
// teacher's CarReader does, so callers needing offset-addressed reads (the
// index builder) can record them.
type Reader struct {
	br     *bufio.Reader
	offset uint64
	Header *Header
}

// NewReader reads the header off r and returns a Reader positioned at the
// first block.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	h, n, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{br: br, offset: n, Header: h}, nil
}

// Next returns the next block and its starting byte offset within the body
// (header included), or io.EOF when the stream is exhausted. On any error the
// returned offset is where the failing frame starts.
func (cr *Reader) Next() (bf.Block, uint64, error) {
	start := cr.offset
	c, data, err := bf.Read(cr.br)
	if err != nil {
		return bf.Block{}, start, err
	}

	hashed, err := c.Prefix().Sum(data)
	if err != nil {
		return bf.Block{}, start, errs.WithCID(errs.KindCorruptFrame, c, err)
	}
	if !hashed.Equals(c) {
		return bf.Block{}, start, errs.WithCID(errs.KindCidMismatch, c, nil)
	}

	cr.offset = start + bf.FrameSize(c, data) + uint64(varintLen(bf.FrameSize(c, data)))
	return bf.Block{CID: c, Bytes: data}, start, nil
}

func varintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// RewriteRoots replaces the root set of an existing body in place, shifting
// the block stream to compensate for any change in header frame size. This
// is the one piece of container surgery a v1 body must support: a drive's
// local container gains a new content root on every save, and the header,
// being length-prefixed dag-cbor, does not generally stay the same size
// when the root set does.
//
// rws must be positioned so offset 0 is the start of the v1 body (a v2
// container calls this with its data-payload sub-region, not the whole
// file). On return the body has the new header followed by the unchanged
// block stream, and rws's offset is unspecified.
// RewriteRoots returns the signed byte delta the block region was shifted
// by (new header size minus old), zero if the header didn't change size.
// Callers that track block offsets into the body (e.g. an unfinalized
// ReadWrite's in-memory index) must add this delta to every
// already-recorded offset.
func RewriteRoots(rws io.ReadWriteSeeker, newRoots []cid.Cid) (int64, error) {
	if _, err := rws.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	br := bufio.NewReader(rws)
	oldHeader, oldHeaderSize, err := ReadHeader(br)
	if err != nil {
		return 0, fmt.Errorf("read existing carv1 header: %w", err)
	}
	_ = oldHeader

	newHeader := NewHeader(newRoots)
	newHeaderSize, err := Size(newHeader)
	if err != nil {
		return 0, err
	}

	if newHeaderSize == oldHeaderSize {
		if _, err := rws.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return 0, WriteHeader(newHeader, rws)
	}

	delta := int64(newHeaderSize) - int64(oldHeaderSize)
	logger.Debugf("carv1 header resize: old=%d new=%d delta=%d", oldHeaderSize, newHeaderSize, delta)

	end, err := rws.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	blockRegionLen := end - int64(oldHeaderSize)

	const chunkSize = 1 << 20 // 1 MiB working set for the shift, regardless of container size
	buf := make([]byte, chunkSize)

	if delta > 0 {
		// Header grows: shift the block region forward, back to front, so a
		// later chunk is never overwritten before it has been read.
		for copied := int64(0); copied < blockRegionLen; {
			remaining := blockRegionLen - copied
			n := int64(chunkSize)
			if remaining < n {
				n = remaining
			}
			srcOff := int64(oldHeaderSize) + blockRegionLen - copied - n
			dstOff := srcOff + delta

			if _, err := rws.Seek(srcOff, io.SeekStart); err != nil {
				return 0, err
			}
			if _, err := io.ReadFull(rws, buf[:n]); err != nil {
				return 0, fmt.Errorf("shift-read at %d: %w", srcOff, err)
			}
			if _, err := rws.Seek(dstOff, io.SeekStart); err != nil {
				return 0, err
			}
			if _, err := rws.Write(buf[:n]); err != nil {
				return 0, fmt.Errorf("shift-write at %d: %w", dstOff, err)
			}
			copied += n
		}
	} else if delta < 0 {
		// Header shrinks: shift front to back instead, same reasoning
		// reversed.
		shrink := -delta
		for copied := int64(0); copied < blockRegionLen; {
			remaining := blockRegionLen - copied
			n := int64(chunkSize)
			if remaining < n {
				n = remaining
			}
			srcOff := int64(oldHeaderSize) + copied
			dstOff := srcOff - shrink

			if _, err := rws.Seek(srcOff, io.SeekStart); err != nil {
				return 0, err
			}
			if _, err := io.ReadFull(rws, buf[:n]); err != nil {
				return 0, fmt.Errorf("shift-read at %d: %w", srcOff, err)
			}
			if _, err := rws.Seek(dstOff, io.SeekStart); err != nil {
				return 0, err
			}
			if _, err := rws.Write(buf[:n]); err != nil {
				return 0, fmt.Errorf("shift-write at %d: %w", dstOff, err)
			}
			copied += n
		}
	}

	if _, err := rws.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if err := WriteHeader(newHeader, rws); err != nil {
		return 0, err
	}

	if f, ok := rws.(interface{ Truncate(int64) error }); ok && delta < 0 {
		if err := f.Truncate(end + delta); err != nil {
			return 0, fmt.Errorf("truncate after header shrink: %w", err)
		}
	}
	return delta, nil
}
