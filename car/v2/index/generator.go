package index

import (
	"fmt"
	"io"

	carv1 "github.com/banyancomputer/banyanfs/car/v1"
)

// Generate scans a v1 body start-to-end and builds a sorted index mapping
// every block CID to its frame offset, the fallback path used when a
// container was resumed without a trustworthy existing index (mirroring the
// teacher's linear-scan Generate/GenerateFromFile).
func Generate(v1 io.Reader) (Index, error) {
	r, err := carv1.NewReader(v1)
	if err != nil {
		return nil, fmt.Errorf("read carv1 header while generating index: %w", err)
	}

	var records []Record
	for {
		blk, offset, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan block at offset %d: %w", offset, err)
		}
		records = append(records, Record{Cid: blk.CID, Offset: offset})
	}

	idx := newSorted()
	if err := idx.Load(records); err != nil {
		return nil, err
	}
	return idx, nil
}
