// Package index implements the sorted, multi-bucket CID index stored in the
// optional index payload of a v2 container (spec §4.4). Digests are grouped
// into buckets by byte length (every digest produced by a given hash
// function is the same length), and each bucket is a flat table sorted by
// digest bytes that supports a fast binary-search lookup.
package index

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// ErrNotFound is returned by GetFirst when a CID has no entry.
var ErrNotFound = errors.New("cid not found in index")

// Record pairs a CID with the byte offset of its frame within a v1 body.
type Record struct {
	Cid    cid.Cid
	Offset uint64
}

// Index is a CID-to-offset lookup table, read from or written to the index
// section of a container.
type Index interface {
	Codec() multicodec.Code
	Load(records []Record) error
	GetAll(c cid.Cid, fn func(uint64) bool) error
	Marshal(w io.Writer) (int64, error)
	Unmarshal(r io.Reader) error
}

// GetFirst returns the first recorded offset for c, or ErrNotFound.
func GetFirst(idx Index, c cid.Cid) (uint64, error) {
	var first uint64
	var found bool
	err := idx.GetAll(c, func(offset uint64) bool {
		first = offset
		found = true
		return false
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return first, nil
}

func digestOf(c cid.Cid) ([]byte, error) {
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, fmt.Errorf("decode multihash: %w", err)
	}
	return decoded.Digest, nil
}

// sortedIndex buckets records by digest length, one singleWidthIndex per
// bucket, keyed by the bucket's digest width.
type sortedIndex struct {
	buckets map[int]*singleWidthIndex
}

func newSorted() *sortedIndex {
	return &sortedIndex{buckets: make(map[int]*singleWidthIndex)}
}

// New returns the standard sorted-bucket index implementation.
func New() Index { return newSorted() }

func (s *sortedIndex) Codec() multicodec.Code { return multicodec.CarIndexSorted }

func (s *sortedIndex) Load(records []Record) error {
	byWidth := make(map[int][]entry)
	for _, rec := range records {
		digest, err := digestOf(rec.Cid)
		if err != nil {
			return err
		}
		byWidth[len(digest)] = append(byWidth[len(digest)], entry{key: digest, offset: rec.Offset})
	}
	for width, entries := range byWidth {
		s.buckets[width] = newSingleWidthIndex(width, entries)
	}
	return nil
}

func (s *sortedIndex) GetAll(c cid.Cid, fn func(uint64) bool) error {
	digest, err := digestOf(c)
	if err != nil {
		return err
	}
	b, ok := s.buckets[len(digest)]
	if !ok {
		return nil
	}
	return b.getAll(digest, fn)
}

// Marshal writes the leading multicodec tag followed by each bucket (fixed
// u32 entry_width, fixed u64 entry_count, then the records), by ascending
// width. There is no bucket-count prefix: the payload runs to the end of
// the index section, and Unmarshal reads buckets until it hits that end.
func (s *sortedIndex) Marshal(w io.Writer) (int64, error) {
	var written int64
	codecBuf := varint.ToUvarint(uint64(s.Codec()))
	n, err := w.Write(codecBuf)
	written += int64(n)
	if err != nil {
		return written, err
	}

	widths := make([]int, 0, len(s.buckets))
	for width := range s.buckets {
		widths = append(widths, width)
	}
	sort.Ints(widths)

	for _, width := range widths {
		b := s.buckets[width]
		wn, err := b.writeTo(w)
		written += wn
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *sortedIndex) Unmarshal(r io.Reader) error {
	br := toByteReader(r)
	codec, err := varint.ReadUvarint(br)
	if err != nil {
		return fmt.Errorf("read index codec: %w", err)
	}
	if multicodec.Code(codec) != multicodec.CarIndexSorted {
		return fmt.Errorf("unsupported index codec: %#x", codec)
	}

	s.buckets = make(map[int]*singleWidthIndex)
	for {
		b, err := readSingleWidthIndex(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.buckets[b.width-8] = b
	}
	return nil
}

type byteReaderAdapter struct{ io.Reader }

func (b byteReaderAdapter) ReadByte() (byte, error) {
	var p [1]byte
	if _, err := io.ReadFull(b.Reader, p[:]); err != nil {
		return 0, err
	}
	return p[0], nil
}

func toByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return byteReaderAdapter{r}
}
