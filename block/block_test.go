package block

import (
	"bytes"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func sampleCID(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func TestWriteReadRoundTrip(t *testing.T) {
	data := []byte("hello banyanfs")
	c := sampleCID(t, data)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c, data))

	got, err := ReadBlock(&buf)
	require.NoError(t, err)
	require.True(t, got.CID.Equals(c))
	require.Equal(t, data, got.Bytes)
}

func TestReadEOF(t *testing.T) {
	_, _, err := Read(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadBlockCorruptFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01})

	_, err := ReadBlock(&buf)
	require.Error(t, err)
}

func TestReadBlockCIDMismatch(t *testing.T) {
	data := []byte("hello banyanfs")
	other := []byte("tampered payload")
	c := sampleCID(t, data)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c, other))

	_, err := ReadBlock(&buf)
	require.Error(t, err)
}
