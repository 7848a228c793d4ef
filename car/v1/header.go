// Package carv1 implements the version-1 container body embedded inside
// every version-2 container (spec §4.2): a dag-cbor header naming the root
// set, followed by an append-only stream of length-prefixed blocks.
package carv1

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/banyancomputer/banyanfs/errs"
)

// Version is the only version this package accepts or writes.
const Version = uint64(1)

func init() {
	cbor.RegisterCborType(Header{})
}

// Header is the CBOR-encoded preamble of a v1 body: the set of roots the
// block stream is reachable from, and a version tag.
//
// Header is mutable only through RewriteRoots on an existing container; a
// freshly written container's header is fixed at construction.
type Header struct {
	Roots   []cid.Cid
	Version uint64
}

// NewHeader builds a Header for the given roots at the current Version.
func NewHeader(roots []cid.Cid) *Header {
	return &Header{Roots: roots, Version: Version}
}

// Matches reports whether the root set matches, order-insensitive.
func (h *Header) Matches(other []cid.Cid) bool {
	if len(h.Roots) != len(other) {
		return false
	}
	seen := make(map[string]int, len(h.Roots))
	for _, c := range h.Roots {
		seen[c.KeyString()]++
	}
	for _, c := range other {
		if seen[c.KeyString()] == 0 {
			return false
		}
		seen[c.KeyString()]--
	}
	return true
}

// Encode returns the dag-cbor encoding of h.
func Encode(h *Header) ([]byte, error) {
	b, err := cbor.DumpObject(h)
	if err != nil {
		return nil, fmt.Errorf("encode carv1 header: %w", err)
	}
	return b, nil
}

// Size returns the full on-wire size of h's frame, length prefix included.
func Size(h *Header) (uint64, error) {
	hb, err := Encode(h)
	if err != nil {
		return 0, err
	}
	return ldSize(hb), nil
}

// WriteHeader writes h to w as a varint-length-prefixed dag-cbor blob,
// mirroring the teacher's util.LdWrite(w, cborBytes) call in WriteHeader.
func WriteHeader(h *Header, w io.Writer) error {
	hb, err := Encode(h)
	if err != nil {
		return err
	}
	return ldWrite(w, hb)
}

// ReadHeader reads and decodes a Header, returning the number of bytes
// consumed (the length prefix plus the payload), for offset bookkeeping.
func ReadHeader(br *bufio.Reader) (*Header, uint64, error) {
	h, n, err := ReadHeaderLoose(br)
	if err != nil {
		return nil, 0, err
	}
	if h.Version != Version {
		return nil, 0, errs.ProtocolMismatch(Version, h.Version)
	}
	return h, n, nil
}

// ReadHeaderLoose decodes a Header without enforcing Version == 1, so a
// caller distinguishing a v1 body from an embedded v2 pragma (whose header
// also decodes as a valid v1-shaped header, with Version == 2 and no roots)
// can inspect Version itself before deciding how to proceed.
func ReadHeaderLoose(br *bufio.Reader) (*Header, uint64, error) {
	hb, n, err := ldRead(br)
	if err != nil {
		return nil, 0, err
	}
	var h Header
	if err := cbor.DecodeInto(hb, &h); err != nil {
		return nil, 0, errs.New(errs.KindCorruptFrame, fmt.Errorf("decode carv1 header: %w", err))
	}
	return &h, n, nil
}
