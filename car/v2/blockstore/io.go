package blockstore

import (
	"io"

	"github.com/ipfs/go-cid"
	"golang.org/x/exp/mmap"

	bf "github.com/banyancomputer/banyanfs/block"
)

// mmapOpen opens path as a memory-mapped io.ReaderAt, the same zero-copy
// path the teacher uses for read-only containers.
func mmapOpen(path string) (*mmap.ReaderAt, error) {
	return mmap.Open(path)
}

// readFrame reads one length-prefixed (cid, payload) frame starting at the
// reader's current position, without verifying the digest — callers that
// need integrity checking compare against an already-known key (Has/Get do,
// via the index lookup key).
func readFrame(r io.Reader) (cid.Cid, []byte, error) {
	return bf.Read(r)
}
