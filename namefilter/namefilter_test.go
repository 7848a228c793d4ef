package namefilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSetsContainedBits(t *testing.T) {
	var f Filter
	f.Add("salt", "cat.txt")

	var empty Filter
	require.True(t, f.Contains(empty))
	require.False(t, empty.Contains(f))
}

func TestContainsIsSubsetTest(t *testing.T) {
	var parent Filter
	parent.Add("salt", "documents")

	child := parent.Clone()
	child.Add("salt", "cat.txt")

	require.True(t, child.Contains(parent))
	require.False(t, parent.Contains(child))
}

func TestAddIsDeterministic(t *testing.T) {
	var a, b Filter
	a.Add("salt", "cat.txt")
	b.Add("salt", "cat.txt")
	require.Equal(t, a, b)
}

func TestDifferentLabelsDifferentBits(t *testing.T) {
	var a, b Filter
	a.Add("salt", "cat.txt")
	b.Add("salt", "dog.txt")
	require.NotEqual(t, a, b)
}

func TestBytesRoundTrip(t *testing.T) {
	var f Filter
	f.Add("salt", "cat.txt")

	raw := f.Bytes()
	restored, ok := FromBytes(raw)
	require.True(t, ok)
	require.Equal(t, f, restored)

	_, ok = FromBytes(raw[:16])
	require.False(t, ok)
}

func TestSaturatedFalseForSparseFilter(t *testing.T) {
	var f Filter
	f.Add("salt", "cat.txt")
	require.False(t, f.Saturated())
}
