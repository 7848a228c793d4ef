package index

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func randCID(t *testing.T) cid.Cid {
	t.Helper()
	b := make([]byte, 32)
	_, err := rand.Read(b)
	require.NoError(t, err)
	sum, err := mh.Encode(b, mh.SHA2_256)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func TestSortedIndexCodec(t *testing.T) {
	require.Equal(t, multicodec.CarIndexSorted, newSorted().Codec())
}

func TestGetFirstNotFound(t *testing.T) {
	idx := newSorted()
	require.NoError(t, idx.Load(nil))
	_, err := GetFirst(idx, randCID(t))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadAndGetAll(t *testing.T) {
	c1, c2, c3 := randCID(t), randCID(t), randCID(t)
	idx := newSorted()
	require.NoError(t, idx.Load([]Record{
		{Cid: c1, Offset: 10},
		{Cid: c2, Offset: 20},
		{Cid: c3, Offset: 30},
	}))

	off, err := GetFirst(idx, c2)
	require.NoError(t, err)
	require.Equal(t, uint64(20), off)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	c1, c2 := randCID(t), randCID(t)
	idx := newSorted()
	require.NoError(t, idx.Load([]Record{
		{Cid: c1, Offset: 100},
		{Cid: c2, Offset: 200},
	}))

	var buf bytes.Buffer
	_, err := idx.Marshal(&buf)
	require.NoError(t, err)

	other := newSorted()
	require.NoError(t, other.Unmarshal(&buf))

	off, err := GetFirst(other, c1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), off)

	off, err = GetFirst(other, c2)
	require.NoError(t, err)
	require.Equal(t, uint64(200), off)
}
