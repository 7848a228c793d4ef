package drive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/fs"
)

func newTestDrive(t *testing.T) *Drive {
	t.Helper()
	dir := t.TempDir()
	d, err := Create(
		filepath.Join(dir, "metadata.car"),
		filepath.Join(dir, "content.car"),
		WithOriginPath("/home/user/Documents"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func TestDriveMetadataOnlyReadsStructureNotPayload(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t)

	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	filesystem, metaRoot, err := fs.Init(ctx, d, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, filesystem.Write(ctx, fs.ParsePath("cat.txt"), []byte("hello kitty"), "text/plain"))
	metaRoot, err = filesystem.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetRoots(metaRoot))

	reloaded, err := fs.Unlock(ctx, d, "salt", metaRoot, owner)
	require.NoError(t, err)
	data, err := reloaded.Read(ctx, fs.ParsePath("cat.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello kitty", string(data))

	require.Greater(t, d.Delta().DataSize(), uint64(0))
}

func TestDriveDeletedBlockCIDsAccumulateAndClear(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t)

	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	filesystem, _, err := fs.Init(ctx, d, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, filesystem.Write(ctx, fs.ParsePath("a.txt"), []byte("content"), "text/plain"))

	removed, err := filesystem.Rm(ctx, fs.ParsePath("a.txt"))
	require.NoError(t, err)
	d.MarkDeleted(removed...)

	require.NotEmpty(t, d.DeletedBlockCIDs())
	d.ClearDeletedBlockCIDs()
	require.Empty(t, d.DeletedBlockCIDs())
}

func TestDriveSetRootsKeepsBothContainersInLockstep(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t)

	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	_, metaRoot, err := fs.Init(ctx, d, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, d.SetRoots(metaRoot))

	require.Contains(t, d.metadata.Roots(), metaRoot)
	require.Contains(t, d.content.Roots(), metaRoot)
}
