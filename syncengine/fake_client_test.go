package syncengine

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/ipfs/go-cid"
)

// fakeClient is an in-memory RemoteClient: good enough to drive push, pull,
// and grant flows through Engine without a real server.
type fakeClient struct {
	nextID     int
	drives     map[string]*fakeDrive
	grantHost  string
	grantToken string
}

type fakeDrive struct {
	current      MetadataRecord
	metadataBlob []byte
	contentBlob  []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{drives: map[string]*fakeDrive{}, grantHost: "https://storage.example", grantToken: "grant-token"}
}

func (f *fakeClient) CreateDrive(ctx context.Context, req CreateDriveRequest) (MetadataRecord, error) {
	f.nextID++
	id := "remote-drive"
	rec := MetadataRecord{ID: id, State: "active"}
	f.drives[id] = &fakeDrive{current: rec}
	return rec, nil
}

func (f *fakeClient) PushMetadata(ctx context.Context, req PushMetadataRequest) (MetadataRecord, error) {
	d, ok := f.drives[req.BucketID]
	if !ok {
		d = &fakeDrive{}
		f.drives[req.BucketID] = d
	}
	blob, err := io.ReadAll(req.MetadataStream)
	if err != nil {
		return MetadataRecord{}, err
	}
	d.metadataBlob = blob
	d.current = MetadataRecord{
		ID:         req.BucketID,
		State:      "active",
		RootCID:    req.RootCID,
		ContentCID: req.ContentCID,
	}
	if req.ExpectedDataSize > 0 {
		d.current.StorageHost = f.grantHost
		d.current.StorageToken = f.grantToken
	}
	return d.current, nil
}

func (f *fakeClient) CurrentMetadata(ctx context.Context, remoteID string) (MetadataRecord, error) {
	d, ok := f.drives[remoteID]
	if !ok {
		return MetadataRecord{}, os.ErrNotExist
	}
	return d.current, nil
}

func (f *fakeClient) PullMetadata(ctx context.Context, remoteID, metadataID string) (io.ReadCloser, error) {
	d, ok := f.drives[remoteID]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(d.metadataBlob)), nil
}

func (f *fakeClient) CreateSnapshot(ctx context.Context, remoteID, metadataID string, activeCIDs []cid.Cid) (string, error) {
	return "snapshot-1", nil
}

func (f *fakeClient) RegisterGrant(ctx context.Context, remoteID string) (Grant, error) {
	return Grant{Host: f.grantHost, Token: f.grantToken}, nil
}

func (f *fakeClient) UploadContent(ctx context.Context, grant Grant, metadataID string, body io.Reader, expectedSize uint64) error {
	blob, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	for _, d := range f.drives {
		if d.current.ID == metadataID {
			d.contentBlob = blob
		}
	}
	return nil
}

var _ RemoteClient = (*fakeClient)(nil)
