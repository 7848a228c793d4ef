package syncengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyUnpublishedWhenNoRemoteID(t *testing.T) {
	s := Classify("", true, LocalView{Localized: true}, RemoteView{}, false)
	require.Equal(t, Unpublished, s)
}

func TestClassifyUnpublishedWhenRemoteUnreachable(t *testing.T) {
	s := Classify("remote-1", false, LocalView{Localized: true}, RemoteView{}, false)
	require.Equal(t, Unpublished, s)
}

func TestClassifyUnlocalizedWhenNoLocalDrive(t *testing.T) {
	s := Classify("remote-1", true, LocalView{Localized: false}, RemoteView{MetadataRoot: "r1"}, false)
	require.Equal(t, Unlocalized, s)
}

func TestClassifyAllSyncedWhenRootsMatch(t *testing.T) {
	local := LocalView{Localized: true, MetadataRoot: "r1", ContentRoot: "r1"}
	remote := RemoteView{MetadataRoot: "r1", ContentRoot: "r1"}
	require.Equal(t, AllSynced, Classify("remote-1", true, local, remote, false))
}

func TestClassifyMetadataSyncedWhenContentLags(t *testing.T) {
	local := LocalView{Localized: true, MetadataRoot: "r1", ContentRoot: "r0"}
	remote := RemoteView{MetadataRoot: "r1", ContentRoot: "r1"}
	require.Equal(t, MetadataSynced, Classify("remote-1", true, local, remote, false))
}

func TestClassifyBehindWhenLocalRootInHistory(t *testing.T) {
	local := LocalView{Localized: true, MetadataRoot: "r0", ContentRoot: "r0"}
	remote := RemoteView{MetadataRoot: "r1", ContentRoot: "r1"}
	require.Equal(t, Behind, Classify("remote-1", true, local, remote, true))
}

func TestClassifyAheadWhenLocalRootNotInHistory(t *testing.T) {
	local := LocalView{Localized: true, MetadataRoot: "r2", ContentRoot: "r2"}
	remote := RemoteView{MetadataRoot: "r1", ContentRoot: "r1"}
	require.Equal(t, Ahead, Classify("remote-1", true, local, remote, false))
}
