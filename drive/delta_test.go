package drive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaAccumulatesAndResets(t *testing.T) {
	var d Delta
	require.Equal(t, uint64(0), d.DataSize())

	d.track(10)
	d.track(5)
	require.Equal(t, uint64(15), d.DataSize())

	d.Reset()
	require.Equal(t, uint64(0), d.DataSize())
}

func TestDeltaIgnoresNonPositiveTracks(t *testing.T) {
	var d Delta
	d.track(0)
	d.track(-3)
	require.Equal(t, uint64(0), d.DataSize())
}
