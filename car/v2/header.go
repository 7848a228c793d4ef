// Package carv2 implements the version-2 container format used for every
// on-disk container in the system (spec §4.3): an 11-byte pragma, a fixed
// 40-byte header, an embedded v1 data payload, and an optional index.
package carv2

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// PragmaSize is the size in bytes of the fixed v2 pragma.
	PragmaSize = 11
	// HeaderSize is the fixed size in bytes of the v2 header.
	HeaderSize = 40
	// CharacteristicsSize is the size in bytes of the Characteristics bitfield.
	CharacteristicsSize = 16
)

// Pragma is a valid v1 header declaring version 2 with no roots; every v2
// container begins with these exact 11 bytes.
var Pragma = []byte{
	0x0a,
	0xa1,
	0x67,
	0x76, 0x65, 0x72, 0x73, 0x69, 0x6f, 0x6e,
	0x02,
}

// Characteristics is a 128-bit reserved bitfield. Only the fully-indexed
// flag is assigned a meaning here: bit 127 of the field read as a
// little-endian u128, i.e. the top bit of its last byte, which WriteTo
// fills from Lo.
type Characteristics struct {
	Hi uint64
	Lo uint64
}

const fullyIndexedBit = 63

func (c Characteristics) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, CharacteristicsSize)
	binary.LittleEndian.PutUint64(buf[:8], c.Hi)
	binary.LittleEndian.PutUint64(buf[8:], c.Lo)
	n, err := w.Write(buf)
	return int64(n), err
}

func (c *Characteristics) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, CharacteristicsSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}
	c.Hi = binary.LittleEndian.Uint64(buf[:8])
	c.Lo = binary.LittleEndian.Uint64(buf[8:])
	return int64(n), nil
}

// IsFullyIndexed reports whether the index catalogs every CID segment,
// including those nested inside identity-hash blocks.
func (c Characteristics) IsFullyIndexed() bool {
	return c.Lo&(1<<fullyIndexedBit) != 0
}

// SetFullyIndexed toggles the fully-indexed flag.
func (c *Characteristics) SetFullyIndexed(v bool) {
	if v {
		c.Lo |= 1 << fullyIndexedBit
	} else {
		c.Lo &^= 1 << fullyIndexedBit
	}
}

// Header is the fixed 40-byte v2 header following the pragma.
type Header struct {
	Characteristics Characteristics
	DataOffset      uint64
	DataSize        uint64
	IndexOffset     uint64
}

// NewHeader lays out a header for a data payload of dataSize bytes
// immediately after the pragma and header, with no index.
func NewHeader(dataSize uint64) Header {
	h := Header{DataSize: dataSize}
	h.DataOffset = PragmaSize + HeaderSize
	h.IndexOffset = h.DataOffset + dataSize
	return h
}

// WithDataPadding shifts the data payload (and therefore the index) forward
// by padding bytes past the pragma and header.
func (h Header) WithDataPadding(padding uint64) Header {
	h.DataOffset = PragmaSize + HeaderSize + padding
	h.IndexOffset += padding
	return h
}

// WithIndexPadding shifts the index offset forward by padding bytes.
func (h Header) WithIndexPadding(padding uint64) Header {
	h.IndexOffset += padding
	return h
}

// WithDataSize updates DataSize and shifts IndexOffset to immediately
// follow the resized data payload.
func (h Header) WithDataSize(size uint64) Header {
	indexStart := h.DataOffset + size
	h.DataSize = size
	h.IndexOffset = indexStart
	return h
}

// HasIndex reports whether an index payload is present.
func (h Header) HasIndex() bool { return h.IndexOffset != 0 }

func (h Header) WriteTo(w io.Writer) (int64, error) {
	n, err := h.Characteristics.WriteTo(w)
	if err != nil {
		return n, err
	}
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[:8], h.DataOffset)
	binary.LittleEndian.PutUint64(buf[8:16], h.DataSize)
	binary.LittleEndian.PutUint64(buf[16:], h.IndexOffset)
	wn, err := w.Write(buf)
	return n + int64(wn), err
}

func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	n, err := h.Characteristics.ReadFrom(r)
	if err != nil {
		return n, err
	}
	buf := make([]byte, 24)
	rn, err := io.ReadFull(r, buf)
	n += int64(rn)
	if err != nil {
		return n, err
	}
	dataOffset := binary.LittleEndian.Uint64(buf[:8])
	dataSize := binary.LittleEndian.Uint64(buf[8:16])
	indexOffset := binary.LittleEndian.Uint64(buf[16:])
	if dataOffset < PragmaSize+HeaderSize {
		return n, fmt.Errorf("invalid data payload offset: %d", dataOffset)
	}
	h.DataOffset = dataOffset
	h.DataSize = dataSize
	h.IndexOffset = indexOffset
	return n, nil
}
