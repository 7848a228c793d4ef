package syncengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/banyancomputer/banyanfs/drive"
	"github.com/banyancomputer/banyanfs/errs"
	"github.com/banyancomputer/banyanfs/fs"
)

// Result is what Reconcile returns: the state reached, and a human-readable
// message describing what happened — success carries an advancement
// message, and partial success (metadata pushed, content upload failed)
// still reports success with a caution message, since the drive remains
// queryable even though it isn't yet fully durable.
type Result struct {
	State   State
	Message string
	Partial bool
}

// Engine ties a RemoteClient to one local drive and its registry record,
// and drives it through classification and reconciliation.
type Engine struct {
	Client     RemoteClient
	Drive      *drive.Drive
	Registry   *drive.Registry
	Record     drive.Record
	ValidKeys  []string // recipient fingerprints, base64 or hex as the server expects

	// Filesystem is the drive's unlocked private filesystem, needed only by
	// reconstruct to traverse and materialize files onto disk.
	Filesystem *fs.Filesystem
}

// Classify determines the drive's current sync state by asking the remote
// for its current metadata record. Any error from that call, a 404 included,
// classifies the drive as Unpublished.
func (e *Engine) Classify(ctx context.Context) (State, error) {
	if e.Record.RemoteID == "" {
		return Unpublished, nil
	}
	remote, err := e.Client.CurrentMetadata(ctx, e.Record.RemoteID)
	if err != nil {
		return Unpublished, nil
	}

	local := LocalView{
		Localized:    e.Drive != nil,
		MetadataRoot: e.Drive.CurrentRoot().String(),
		ContentRoot:  e.Drive.CurrentContentRoot().String(),
	}
	remoteView := RemoteView{MetadataRoot: remote.RootCID, ContentRoot: remote.ContentCID}

	return Classify(e.Record.RemoteID, true, local, remoteView, e.localRootInRemoteHistory(ctx, remoteView)), nil
}

// localRootInRemoteHistory answers Classify's "does the local root appear
// in the server's history for this drive" question. The server protocol
// (spec §6) has no endpoint that returns a drive's history, so this is
// approximated from the one history this process can actually see: the
// unlocked Filesystem's own forest chain. If remote's reported root shows
// up there, the local filesystem has provably moved past it, so local is
// Ahead. Whenever that can't be positively established — no Filesystem is
// attached yet, or the remote root simply isn't in the local chain — this
// defaults to true (Behind), because a spurious pull is wasted work but a
// spurious push can permanently overwrite newer remote state.
func (e *Engine) localRootInRemoteHistory(ctx context.Context, remote RemoteView) bool {
	if e.Filesystem == nil {
		return true
	}
	for _, ref := range e.Filesystem.History(ctx) {
		if ref.CID.String() == remote.MetadataRoot {
			return false
		}
	}
	return true
}

// Reconcile dispatches on state per the prescribed action table: pull for
// Unlocalized/Behind, push for Unpublished/Ahead, reconstruct for
// MetadataSynced, no-op for AllSynced, and a fresh classify-then-reconcile
// for Unknown.
func (e *Engine) Reconcile(ctx context.Context, state State) (Result, error) {
	switch state {
	case Unlocalized, Behind:
		return e.pull(ctx)
	case Unpublished, Ahead:
		return e.push(ctx)
	case MetadataSynced:
		return e.reconstruct(ctx)
	case AllSynced:
		return Result{State: AllSynced, Message: "drive already synced"}, nil
	default:
		classified, err := e.Classify(ctx)
		if err != nil {
			return Result{}, err
		}
		return e.Reconcile(ctx, classified)
	}
}

func (e *Engine) pull(ctx context.Context) (Result, error) {
	remote, err := e.Client.CurrentMetadata(ctx, e.Record.RemoteID)
	if err != nil {
		return Result{}, err
	}

	body, err := e.Client.PullMetadata(ctx, e.Record.RemoteID, remote.ID)
	if err != nil {
		return Result{}, err
	}
	defer body.Close()

	// Writes the pulled bytes to the metadata container's path directly;
	// the drive's in-memory ReadWrite handle must be reopened by the caller
	// afterward to pick up the new on-disk content (OpenReadWrite resumes
	// from whatever bytes are there).
	out, err := os.Create(e.Drive.MetadataPath())
	if err != nil {
		return Result{}, fmt.Errorf("open local metadata container for pull: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, body); err != nil {
		return Result{}, fmt.Errorf("write pulled metadata container: %w", err)
	}

	root, err := cid.Decode(remote.RootCID)
	if err != nil {
		return Result{}, errs.New(errs.KindCidMismatch, err)
	}
	e.Drive.SetPreviousRoot(root)

	return Result{State: MetadataSynced, Message: "content still not downloaded; sync again"}, nil
}

func (e *Engine) push(ctx context.Context) (Result, error) {
	if e.Record.RemoteID == "" {
		created, err := e.Client.CreateDrive(ctx, CreateDriveRequest{
			Name: e.Record.Name,
			Type: "private",
		})
		if err != nil {
			return Result{}, err
		}
		e.Record.RemoteID = created.ID
	}

	metaFile, err := os.Open(e.Drive.MetadataPath())
	if err != nil {
		return Result{}, fmt.Errorf("open local metadata container for push: %w", err)
	}
	defer metaFile.Close()

	localRoot := e.Drive.CurrentRoot()
	deleted := make([]string, 0, len(e.Drive.DeletedBlockCIDs()))
	for _, c := range e.Drive.DeletedBlockCIDs() {
		deleted = append(deleted, c.String())
	}

	record, err := e.Client.PushMetadata(ctx, PushMetadataRequest{
		BucketID:         e.Record.RemoteID,
		RootCID:          localRoot.String(),
		ContentCID:       e.Drive.CurrentContentRoot().String(),
		PreviousCID:      e.Record.PreviousRoot,
		ExpectedDataSize: e.Drive.Delta().DataSize(),
		ValidKeys:        e.ValidKeys,
		DeletedBlockCIDs: deleted,
		MetadataStream:   metaFile,
	})
	if err != nil {
		return Result{}, err
	}

	// Metadata accepted regardless of what follows: advance previous_cid and
	// clear the deleted set now, per the spec's partial-success semantics.
	e.Drive.ClearDeletedBlockCIDs()
	e.Drive.SetPreviousRoot(localRoot)
	e.Record.PreviousRoot = localRoot.String()

	switch {
	case record.StorageHost != "" && record.StorageToken != "":
		grant := Grant{Host: record.StorageHost, Token: record.StorageToken}
		if err := e.registerGrantAndUpload(ctx, grant, record.ID); err != nil {
			return Result{State: Ahead, Message: "metadata pushed, content upload failed: " + err.Error(), Partial: true}, nil
		}
	case record.StorageHost != "":
		grant := Grant{Host: record.StorageHost, Token: e.Record.StorageTicket}
		if err := e.uploadContent(ctx, grant, record.ID); err != nil {
			return Result{State: Ahead, Message: "metadata pushed, content upload failed: " + err.Error(), Partial: true}, nil
		}
	}

	e.Drive.Delta().Reset()
	return Result{State: AllSynced, Message: "drive fully synced"}, nil
}

func (e *Engine) registerGrantAndUpload(ctx context.Context, grant Grant, metadataID string) error {
	e.Record.StorageHost = grant.Host
	e.Record.StorageTicket = grant.Token
	return e.uploadContent(ctx, grant, metadataID)
}

func (e *Engine) uploadContent(ctx context.Context, grant Grant, metadataID string) error {
	contentFile, err := os.Open(e.Drive.ContentPath())
	if err != nil {
		return fmt.Errorf("open local content container for upload: %w", err)
	}
	defer contentFile.Close()
	return e.Client.UploadContent(ctx, grant, metadataID, contentFile, e.Drive.Delta().DataSize())
}

// reconstruct checks whether the content container already holds the
// metadata root's block (it won't, right after a metadata-only pull); if
// not, it registers a fresh read grant and returns a MissingBlock error
// asking the caller to sync again.
// Once the content container does have it, it traverses e.Filesystem and
// materializes every reachable file under the drive's origin path, then
// re-equalizes both containers' roots.
//
// Per spec §9's resolution of the source's open question, the newly
// reconstructed content root is re-verified against the remote's own
// ContentCID before this declares AllSynced — a previously-synced drive
// that silently drifted from the server during reconstruction is reported
// as still Behind rather than falsely advanced.
func (e *Engine) reconstruct(ctx context.Context) (Result, error) {
	root := e.Drive.PreviousRoot()
	has, err := e.Drive.Payload().Has(ctx, root)
	if err != nil {
		return Result{}, err
	}
	if !has {
		grant, err := e.Client.RegisterGrant(ctx, e.Record.RemoteID)
		if err != nil {
			return Result{}, err
		}
		e.Record.StorageHost = grant.Host
		e.Record.StorageTicket = grant.Token
		return Result{}, errs.New(errs.KindMissingBlock, fmt.Errorf("content download failed — sync again"))
	}
	if e.Filesystem == nil {
		return Result{}, fmt.Errorf("reconstruct: no unlocked Filesystem attached to Engine")
	}

	if err := materialize(ctx, e.Filesystem, fs.ParsePath(""), e.Drive.OriginPath()); err != nil {
		return Result{}, err
	}
	newContentRoot := e.Filesystem.RootRef().CID
	if err := e.Drive.SetRoots(newContentRoot); err != nil {
		return Result{}, err
	}

	remote, err := e.Client.CurrentMetadata(ctx, e.Record.RemoteID)
	if err != nil {
		return Result{}, err
	}
	if remote.ContentCID != "" && remote.ContentCID != newContentRoot.String() {
		return Result{State: Behind, Message: "content reconstructed but drifted from remote; sync again"}, nil
	}
	return Result{State: AllSynced, Message: "content reconstructed"}, nil
}

func materialize(ctx context.Context, fsys *fs.Filesystem, p fs.Path, diskDir string) error {
	entries, err := fsys.Ls(ctx, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(diskDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", diskDir, err)
	}
	for _, entry := range entries {
		childPath := append(append(fs.Path{}, p...), entry.Name)
		diskPath := filepath.Join(diskDir, entry.Name)
		if entry.IsFile {
			data, err := fsys.Read(ctx, childPath)
			if err != nil {
				return err
			}
			if err := os.WriteFile(diskPath, data, 0o644); err != nil {
				return fmt.Errorf("write file %s: %w", diskPath, err)
			}
			continue
		}
		if err := materialize(ctx, fsys, childPath, diskPath); err != nil {
			return err
		}
	}
	return nil
}
