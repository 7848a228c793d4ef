// Package syncengine reconciles a local drive against its remote record: it
// classifies where the two have diverged, then pushes, pulls, or
// reconstructs content to bring them back into agreement.
package syncengine

// State is a drive's sync status relative to its remote record.
type State int

const (
	Unknown State = iota
	Unpublished
	Unlocalized
	Behind
	MetadataSynced
	AllSynced
	Ahead
)

func (s State) String() string {
	switch s {
	case Unpublished:
		return "Unpublished"
	case Unlocalized:
		return "Unlocalized"
	case Behind:
		return "Behind"
	case MetadataSynced:
		return "MetadataSynced"
	case AllSynced:
		return "AllSynced"
	case Ahead:
		return "Ahead"
	default:
		return "Unknown"
	}
}

// LocalView is the local half of classification: a drive's root CIDs as
// encoded strings, and whether a local drive exists at all.
type LocalView struct {
	Localized    bool
	MetadataRoot string
	ContentRoot  string
}

// RemoteView is the remote half of classification: the remote's root CIDs
// as encoded strings. Whether the remote read succeeded at all is passed to
// Classify separately, as remoteReachable.
type RemoteView struct {
	MetadataRoot string
	ContentRoot  string
}

// Classify implements the state table: given the local and (possibly
// unreachable) remote view, plus whether the local metadata root appears in
// the server's history for this drive, determine the sync state.
func Classify(remoteID string, remoteReachable bool, local LocalView, remote RemoteView, localRootInHistory bool) State {
	if remoteID == "" || !remoteReachable {
		return Unpublished
	}
	if !local.Localized {
		return Unlocalized
	}
	if local.MetadataRoot == remote.MetadataRoot && local.ContentRoot == remote.ContentRoot {
		return AllSynced
	}
	if local.MetadataRoot == remote.MetadataRoot {
		return MetadataSynced
	}
	if localRootInHistory {
		return Behind
	}
	return Ahead
}
