package syncengine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banyancomputer/banyanfs/cryptofs"
	"github.com/banyancomputer/banyanfs/drive"
	"github.com/banyancomputer/banyanfs/fs"
)

func newTestDrive(t *testing.T, name string) *drive.Drive {
	t.Helper()
	dir := t.TempDir()
	d, err := drive.Create(
		filepath.Join(dir, "metadata.car"),
		filepath.Join(dir, "content.car"),
		drive.WithOriginPath(filepath.Join(dir, "origin")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func TestEnginePushReachesAllSynced(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t, "laptop")
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	filesystem, metaRoot, err := fs.Init(ctx, d, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, filesystem.Write(ctx, fs.ParsePath("cat.txt"), []byte("hello kitty"), "text/plain"))
	metaRoot, err = filesystem.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetRoots(metaRoot))
	require.NoError(t, d.Finalize(ctx))

	client := newFakeClient()
	eng := &Engine{Client: client, Drive: d, Record: drive.Record{Name: "laptop"}}

	result, err := eng.Reconcile(ctx, Unpublished)
	require.NoError(t, err)
	require.Equal(t, AllSynced, result.State)
	require.False(t, result.Partial)
	require.NotEmpty(t, eng.Record.RemoteID)
}

func TestEnginePullWritesMetadataLocally(t *testing.T) {
	ctx := context.Background()
	pushDrive := newTestDrive(t, "origin-machine")
	owner, err := cryptofs.GenerateKeyPair()
	require.NoError(t, err)

	filesystem, metaRoot, err := fs.Init(ctx, pushDrive, "salt", owner.PublicKey())
	require.NoError(t, err)
	require.NoError(t, filesystem.Write(ctx, fs.ParsePath("note.txt"), []byte("remember me"), "text/plain"))
	metaRoot, err = filesystem.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, pushDrive.SetRoots(metaRoot))
	require.NoError(t, pushDrive.Finalize(ctx))

	client := newFakeClient()
	pushEngine := &Engine{Client: client, Drive: pushDrive, Record: drive.Record{Name: "origin-machine"}}
	_, err = pushEngine.Reconcile(ctx, Unpublished)
	require.NoError(t, err)

	newMachineDrive := newTestDrive(t, "new-machine")
	pullEngine := &Engine{
		Client: client,
		Drive:  newMachineDrive,
		Record: drive.Record{Name: "new-machine", RemoteID: pushEngine.Record.RemoteID},
	}
	result, err := pullEngine.Reconcile(ctx, Unlocalized)
	require.NoError(t, err)
	require.Equal(t, MetadataSynced, result.State)
}
