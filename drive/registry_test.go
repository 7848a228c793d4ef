package drive

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "registry"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegistryPutGetRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)

	rec := Record{
		Name:       "laptop-docs",
		OriginPath: "/home/user/Documents",
		LocalID:    uuid.New(),
		RemoteID:   "drive-remote-1",
	}
	require.NoError(t, reg.Put(rec))

	got, err := reg.Get(rec.LocalID)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRegistryGetMissingErrors(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Get(uuid.New())
	require.Error(t, err)
}

func TestRegistryDeleteRemovesRecord(t *testing.T) {
	reg := newTestRegistry(t)
	rec := Record{Name: "temp", LocalID: uuid.New()}
	require.NoError(t, reg.Put(rec))
	require.NoError(t, reg.Delete(rec.LocalID))

	_, err := reg.Get(rec.LocalID)
	require.Error(t, err)
}

func TestRegistryListReturnsAllRecords(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Put(Record{Name: "drive", LocalID: uuid.New()}))
	}

	recs, err := reg.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)
}
