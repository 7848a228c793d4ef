// Package block implements the on-wire block codec of spec §4.1: a
// varint-framed (digest, payload) pair, `varint(len) || cid_bytes ||
// block_bytes` with `len = |cid_bytes| + |block_bytes|`. It is grounded on
// the teacher's util/util.go (LdRead/LdWrite/ReadNode) and car.go's use of
// blocks.NewBlockWithCid.
package block

import (
	"encoding/binary"
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/internal/banyanlog"
)

var logger = banyanlog.New("block")

// MaxVarintLen bounds a varint to the 10 bytes needed to hold a u64, per
// spec §4.1: "Varints are bounded to 10 bytes (u64)."
const MaxVarintLen = binary.MaxVarintLen64

// Block is a content-addressed chunk of bytes. Invariant: CID is the hash
// of Bytes under CID's hash function; a Block is produced by hashing and
// never mutated. Two blocks with equal CID are interchangeable.
type Block struct {
	CID   cid.Cid
	Bytes []byte
}

// New wraps bytes and a CID into a Block, matching the shape produced by
// blocks.NewBlockWithCid in the teacher's reader path.
func New(c cid.Cid, data []byte) Block {
	return Block{CID: c, Bytes: data}
}

// ToIPFSBlock adapts a Block to the go-block-format.Block interface used by
// go-ipfs-blockstore and go-merkledag across the pack.
func (b Block) ToIPFSBlock() (blocks.Block, error) {
	return blocks.NewBlockWithCid(b.Bytes, b.CID)
}

// FrameSize returns the size in bytes of the CID plus the payload, the exact
// value written to the length prefix itself; the prefix's own bytes are not
// included.
func FrameSize(c cid.Cid, data []byte) uint64 {
	return uint64(c.ByteLen() + len(data))
}

// Write serializes a block frame: varint(len(cid)+len(data)) || cid || data.
func Write(w io.Writer, c cid.Cid, data []byte) error {
	sum := FrameSize(c, data)
	buf := make([]byte, MaxVarintLen)
	n := varint.PutUvarint(buf, sum)
	if _, err := w.Write(buf[:n]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(c.Bytes()); err != nil {
		return fmt.Errorf("write frame cid: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// byteReader adapts an io.Reader to io.ByteReader, as varint.ReadUvarint
// requires, the same shape as the teacher's readSeekerPlusByte helper.
type byteReader struct {
	io.Reader
}

func (r byteReader) ReadByte() (byte, error) {
	var p [1]byte
	if _, err := io.ReadFull(r.Reader, p[:]); err != nil {
		return 0, err
	}
	return p[0], nil
}

// ToByteReader wraps r for varint reading unless it already implements
// io.ByteReader.
func ToByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return byteReader{r}
}

// Read decodes one block frame from r: a varint length, the CID and payload
// it bounds. CID is self-delimiting so it is parsed from the leading bytes
// of the length-bounded slice; the remainder is the payload.
//
// Read fails with errs.KindCorruptFrame on varint overflow, a truncated CID,
// or a truncated payload, per spec §4.1.
func Read(r io.Reader) (cid.Cid, []byte, error) {
	length, err := varint.ReadUvarint(ToByteReader(r))
	if err != nil {
		if err == io.EOF {
			return cid.Undef, nil, io.EOF
		}
		return cid.Undef, nil, errs.New(errs.KindCorruptFrame, fmt.Errorf("read frame length: %w", err))
	}
	if length == 0 {
		return cid.Undef, nil, errs.New(errs.KindCorruptFrame, fmt.Errorf("zero-length frame"))
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return cid.Undef, nil, errs.New(errs.KindCorruptFrame, fmt.Errorf("read frame body: %w", err))
	}

	n, c, err := cid.CidFromBytes(buf)
	if err != nil {
		return cid.Undef, nil, errs.New(errs.KindCorruptFrame, fmt.Errorf("parse cid: %w", err))
	}
	return c, buf[n:], nil
}

// ReadBlock reads a frame and verifies the payload hashes to the CID,
// returning errs.KindCidMismatch otherwise.
func ReadBlock(r io.Reader) (Block, error) {
	c, data, err := Read(r)
	if err != nil {
		return Block{}, err
	}
	hashed, err := c.Prefix().Sum(data)
	if err != nil {
		return Block{}, errs.WithCID(errs.KindCorruptFrame, c, err)
	}
	if !hashed.Equals(c) {
		logger.Debugf("content integrity mismatch: want=%s got=%s", c, hashed)
		return Block{}, errs.WithCID(errs.KindCidMismatch, c, nil)
	}
	return Block{CID: c, Bytes: data}, nil
}
