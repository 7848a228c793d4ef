package carv2

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	carv1 "github.com/banyancomputer/banyanfs/car/v1"
	"github.com/banyancomputer/banyanfs/errs"
)

// PayloadReader is satisfied by an io.SectionReader over either the data or
// index region of a container.
type PayloadReader interface {
	io.Reader
	io.Seeker
	io.ReaderAt
}

// Reader inspects a v1-or-v2 container and exposes its data and index
// sub-regions, the way the teacher's V2Reader does.
type Reader struct {
	Header  Header
	Version uint64
	r       io.ReaderAt
}

// ReadVersion peeks the version field out of a v1-shaped header without
// consuming more of r than necessary.
func ReadVersion(r io.Reader) (uint64, error) {
	br := bufio.NewReader(r)
	h, _, err := carv1.ReadHeaderLoose(br)
	if err != nil {
		return 0, err
	}
	return h.Version, nil
}

// NewReader constructs a Reader over r, which may hold a v1 or v2 container.
func NewReader(r io.ReaderAt) (*Reader, error) {
	cr := &Reader{r: r}

	version, err := ReadVersion(io.NewSectionReader(r, 0, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read container version: %w", err)
	}
	cr.Version = version

	switch version {
	case 1:
		return cr, nil
	case 2:
		headerSection := io.NewSectionReader(r, PragmaSize, HeaderSize)
		if _, err := cr.Header.ReadFrom(headerSection); err != nil {
			return nil, fmt.Errorf("read v2 header: %w", err)
		}
		return cr, nil
	default:
		return nil, errs.ProtocolMismatch(carv1.Version, version)
	}
}

// DataReader returns a reader over the embedded v1 body.
func (r *Reader) DataReader() PayloadReader {
	if r.Version == 2 {
		return io.NewSectionReader(r.r, int64(r.Header.DataOffset), int64(r.Header.DataSize))
	}
	return io.NewSectionReader(r.r, 0, 1<<62)
}

// IndexReader returns a reader over the index payload, or nil if absent.
func (r *Reader) IndexReader() io.Reader {
	if r.Version == 1 || !r.Header.HasIndex() {
		return nil
	}
	return io.NewSectionReader(r.r, int64(r.Header.IndexOffset), 1<<62)
}

// Roots extracts the root set from the embedded v1 header.
func (r *Reader) Roots() ([]cid.Cid, error) {
	v1r, err := carv1.NewReader(r.DataReader())
	if err != nil {
		return nil, err
	}
	return v1r.Header.Roots, nil
}
