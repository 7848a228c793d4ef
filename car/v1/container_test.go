package carv1

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	bf "github.com/banyancomputer/banyanfs/block"
)

func mustCID(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	b1 := []byte("first block")
	b2 := []byte("second block, a bit longer than the first one")
	c1, c2 := mustCID(t, b1), mustCID(t, b2)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, NewHeader([]cid.Cid{c1}))
	require.NoError(t, err)
	require.NoError(t, w.Put(bf.New(c1, b1)))
	require.NoError(t, w.Put(bf.New(c2, b2)))

	r, err := NewReader(&buf)
	require.NoError(t, err)
	require.True(t, r.Header.Matches([]cid.Cid{c1}))

	got1, _, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, b1, got1.Bytes)

	got2, _, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, b2, got2.Bytes)

	_, _, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestRewriteRootsGrowAndShrink(t *testing.T) {
	b1 := []byte("payload block one")
	c1 := mustCID(t, b1)

	f, err := os.CreateTemp(t.TempDir(), "carv1-*.bin")
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, NewHeader([]cid.Cid{c1}))
	require.NoError(t, err)
	require.NoError(t, w.Put(bf.New(c1, b1)))

	// Grow: add more roots than before, which grows the cbor-encoded header.
	manyRoots := []cid.Cid{c1}
	for i := 0; i < 8; i++ {
		manyRoots = append(manyRoots, mustCID(t, []byte{byte(i)}))
	}
	grown, err := RewriteRoots(f, manyRoots)
	require.NoError(t, err)
	require.Greater(t, grown, int64(0))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	r, err := NewReader(f)
	require.NoError(t, err)
	require.True(t, r.Header.Matches(manyRoots))
	got, _, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, b1, got.Bytes)
	_, _, err = r.Next()
	require.ErrorIs(t, err, io.EOF)

	// Shrink: back down to the single original root.
	shrunk, err := RewriteRoots(f, []cid.Cid{c1})
	require.NoError(t, err)
	require.Less(t, shrunk, int64(0))
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	r2, err := NewReader(f)
	require.NoError(t, err)
	require.True(t, r2.Header.Matches([]cid.Cid{c1}))
	got2, _, err := r2.Next()
	require.NoError(t, err)
	require.Equal(t, b1, got2.Bytes)
}
