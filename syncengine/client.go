package syncengine

import (
	"context"
	"io"

	"github.com/ipfs/go-cid"
)

// MetadataRecord is the server's view of a drive's current metadata state,
// returned by CreateDrive, PushMetadata, and CurrentMetadata. RootCID is
// R_meta and ContentCID is R_content in spec §4.7's state table — the wire
// field is literally named "metadata_cid", but it carries the content
// container's root, not a second metadata root.
type MetadataRecord struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	RootCID      string `json:"root_cid"`
	ContentCID   string `json:"metadata_cid"`
	StorageHost  string `json:"storage_host"`
	StorageToken string `json:"storage_authorization"`
}

// Grant is a server-issued authorization to read or write blocks on a
// specific storage host.
type Grant struct {
	Host  string
	Token string
}

// CreateDriveRequest is the body of POST /buckets.
type CreateDriveRequest struct {
	Name                string
	Type                string
	StorageClass        string
	InitialBucketKeyPEM string
}

// PushMetadataRequest is the multipart body of POST /buckets/{id}/metadata.
type PushMetadataRequest struct {
	BucketID         string
	RootCID          string
	ContentCID       string
	PreviousCID      string // empty if this is the drive's first push
	ExpectedDataSize uint64
	ValidKeys        []string
	DeletedBlockCIDs []string
	MetadataStream   io.Reader
}

// RemoteClient is the sync engine's view of the Banyan storage server. An
// HTTPClient below implements it against the real HTTP API; tests use a
// fake in-memory implementation.
type RemoteClient interface {
	CreateDrive(ctx context.Context, req CreateDriveRequest) (MetadataRecord, error)
	PushMetadata(ctx context.Context, req PushMetadataRequest) (MetadataRecord, error)
	CurrentMetadata(ctx context.Context, remoteID string) (MetadataRecord, error)
	PullMetadata(ctx context.Context, remoteID, metadataID string) (io.ReadCloser, error)
	CreateSnapshot(ctx context.Context, remoteID, metadataID string, activeCIDs []cid.Cid) (string, error)
	RegisterGrant(ctx context.Context, remoteID string) (Grant, error)
	UploadContent(ctx context.Context, grant Grant, metadataID string, body io.Reader, expectedSize uint64) error
}
