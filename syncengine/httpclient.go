package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"

	"github.com/banyancomputer/banyanfs/errs"
)

// HTTPClient implements RemoteClient against the Banyan storage server's
// real HTTPS API: every request carries a bearer JWT, and 5xx responses are
// retried with exponential backoff before surfacing as errs.KindTransport.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewHTTPClient builds an HTTPClient. token is the bearer JWT minted by
// auth.Mint, re-sent on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, token: token, hc: http.DefaultClient}
}

func (c *HTTPClient) retryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 5), ctx)
}

// doRetrying issues req, retrying on 5xx responses, and translates non-2xx
// statuses per this module's wire error taxonomy (404 → missing resource,
// 409 → stale classification, 422 → semantic error, 5xx → transient).
func (c *HTTPClient) doRetrying(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	var resp *http.Response
	attempt := 0
	op := func() error {
		// The first attempt consumed req.Body; rewind it for every retry.
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Body = body
		}
		attempt++
		r, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return errs.Transport(r.StatusCode)
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(op, c.retryBackoff(ctx)); err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		defer resp.Body.Close()
		return nil, errs.New(errs.KindMissingBlock, fmt.Errorf("remote resource not found"))
	case resp.StatusCode == http.StatusConflict:
		defer resp.Body.Close()
		return nil, errs.New(errs.KindProtocolMismatch, fmt.Errorf("sync conflict, reclassify"))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errs.New(errs.KindBadAuth, fmt.Errorf("semantic error: %s", body))
	case resp.StatusCode >= 400:
		defer resp.Body.Close()
		return nil, errs.Transport(resp.StatusCode)
	}
	return resp, nil
}

func (c *HTTPClient) CreateDrive(ctx context.Context, in CreateDriveRequest) (MetadataRecord, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return MetadataRecord{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/buckets", bytes.NewReader(body))
	if err != nil {
		return MetadataRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return MetadataRecord{}, err
	}
	defer resp.Body.Close()

	var out MetadataRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MetadataRecord{}, fmt.Errorf("decode create-drive response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) PushMetadata(ctx context.Context, in PushMetadataRequest) (MetadataRecord, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("bucket_id", in.BucketID)
	_ = w.WriteField("root_cid", in.RootCID)
	_ = w.WriteField("metadata_cid", in.ContentCID)
	_ = w.WriteField("previous_cid", in.PreviousCID)
	_ = w.WriteField("expected_data_size", strconv.FormatUint(in.ExpectedDataSize, 10))
	for _, k := range in.ValidKeys {
		_ = w.WriteField("valid_keys", k)
	}
	for _, d := range in.DeletedBlockCIDs {
		_ = w.WriteField("deleted_block_cids", d)
	}
	part, err := w.CreateFormFile("metadata_stream", "metadata.car")
	if err != nil {
		return MetadataRecord{}, err
	}
	if _, err := io.Copy(part, in.MetadataStream); err != nil {
		return MetadataRecord{}, fmt.Errorf("stream metadata container: %w", err)
	}
	if err := w.Close(); err != nil {
		return MetadataRecord{}, err
	}

	url := fmt.Sprintf("%s/buckets/%s/metadata", c.baseURL, in.BucketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return MetadataRecord{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return MetadataRecord{}, err
	}
	defer resp.Body.Close()

	var out MetadataRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MetadataRecord{}, fmt.Errorf("decode push-metadata response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) CurrentMetadata(ctx context.Context, remoteID string) (MetadataRecord, error) {
	url := fmt.Sprintf("%s/buckets/%s/metadata/current", c.baseURL, remoteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return MetadataRecord{}, err
	}

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return MetadataRecord{}, err
	}
	defer resp.Body.Close()

	var out MetadataRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MetadataRecord{}, fmt.Errorf("decode current-metadata response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) PullMetadata(ctx context.Context, remoteID, metadataID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/buckets/%s/metadata/%s/pull", c.baseURL, remoteID, metadataID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) CreateSnapshot(ctx context.Context, remoteID, metadataID string, activeCIDs []cid.Cid) (string, error) {
	active := make([]string, len(activeCIDs))
	for i, cc := range activeCIDs {
		active[i] = cc.String()
	}
	body, err := json.Marshal(struct {
		MetadataID string   `json:"metadata_id"`
		ActiveCIDs []string `json:"active_cids"`
	}{MetadataID: metadataID, ActiveCIDs: active})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/buckets/%s/snapshots", c.baseURL, remoteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create-snapshot response: %w", err)
	}
	return out.ID, nil
}

func (c *HTTPClient) RegisterGrant(ctx context.Context, remoteID string) (Grant, error) {
	body, err := json.Marshal(struct {
		BucketID string `json:"bucket_id"`
	}{BucketID: remoteID})
	if err != nil {
		return Grant{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/grants", bytes.NewReader(body))
	if err != nil {
		return Grant{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return Grant{}, err
	}
	defer resp.Body.Close()

	var out Grant
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Grant{}, fmt.Errorf("decode register-grant response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) UploadContent(ctx context.Context, grant Grant, metadataID string, body io.Reader, expectedSize uint64) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("content", "content.car")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("stream content container: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/upload/%s", grant.Host, metadataID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Storage-Authorization", grant.Token)

	resp, err := c.doRetrying(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
