package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// entry is one (digest, offset) pair before flattening into a bucket's byte
// table.
type entry struct {
	key    []byte
	offset uint64
}

// singleWidthIndex is a flat, sorted table of fixed-width records: digest
// bytes (the bucket's key width) followed by an 8-byte little-endian
// offset. width is len(key)+8.
type singleWidthIndex struct {
	width int
	len   uint64
	index []byte
}

func newSingleWidthIndex(keyWidth int, entries []entry) *singleWidthIndex {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	width := keyWidth + 8
	buf := make([]byte, width*len(entries))
	for i, e := range entries {
		off := i * width
		copy(buf[off:off+keyWidth], e.key)
		binary.LittleEndian.PutUint64(buf[off+keyWidth:off+width], e.offset)
	}
	return &singleWidthIndex{width: width, len: uint64(len(entries)), index: buf}
}

// getAll scans the bucket for every record whose key equals the lookup key
// and invokes fn with its offset, stopping early if fn returns false.
func (s *singleWidthIndex) getAll(key []byte, fn func(uint64) bool) error {
	keyWidth := s.width - 8
	if len(key) != keyWidth {
		return nil
	}

	n := int(s.len)
	// First match via binary search on the sorted key prefix, then scan
	// forward across any duplicate keys (distinct CIDs whose multihash
	// digest collides, or genuinely repeated blocks); the search lands on
	// the first of them, so no backward scan is needed.
	idx := sort.Search(n, func(i int) bool {
		off := i * s.width
		return bytes.Compare(s.index[off:off+keyWidth], key) >= 0
	})
	for i := idx; i < n; i++ {
		off := i * s.width
		if !bytes.Equal(s.index[off:off+keyWidth], key) {
			break
		}
		offset := binary.LittleEndian.Uint64(s.index[off+keyWidth : off+s.width])
		if !fn(offset) {
			return nil
		}
	}
	return nil
}

// writeTo writes the bucket header as a fixed u32 LE entry_width followed by
// a fixed u64 LE entry_count, then the raw fixed-width records — the bit-exact
// layout spec §6 prescribes, with no length-prefixing of either field.
func (s *singleWidthIndex) writeTo(w io.Writer) (int64, error) {
	var written int64
	if err := binary.Write(w, binary.LittleEndian, uint32(s.width)); err != nil {
		return written, err
	}
	written += 4
	if err := binary.Write(w, binary.LittleEndian, s.len); err != nil {
		return written, err
	}
	written += 8
	n, err := w.Write(s.index)
	written += int64(n)
	return written, err
}

// readSingleWidthIndex reads one bucket in the format writeTo produces. A
// clean io.EOF on the entry_width read is propagated as-is so a caller
// reading a sequence of buckets with no trailing count can use it as the
// end-of-payload signal.
func readSingleWidthIndex(r io.Reader) (*singleWidthIndex, error) {
	var width uint32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read bucket entry count: %w", err)
	}
	buf := make([]byte, int(width)*int(count))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read bucket body: %w", err)
	}
	return &singleWidthIndex{width: int(width), len: count, index: buf}, nil
}
