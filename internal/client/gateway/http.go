package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avolkov/snapsync/internal/client/models"
	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/logging"
	"github.com/avolkov/snapsync/internal/netx"
)

// HTTPGateway talks to the metadata API over REST and uploads payloads to
// presigned object-storage URLs.
type HTTPGateway struct {
	baseURL     string
	accessToken string
	http        *http.Client
	timeout     time.Duration
	log         logging.Logger
}

// NewHTTPGateway returns a gateway for the metadata API at baseURL,
// authenticating every call with the given bearer token.
func NewHTTPGateway(baseURL, accessToken string, log logging.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        &http.Client{},
		timeout:     12 * time.Second,
		log:         log,
	}
}

// doJSON performs one API call: marshals body (if any), sets the auth
// header, applies the per-call timeout, maps transport and status failures
// onto sentinel errors and decodes the response into out (if non-nil).
func (g *HTTPGateway) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.accessToken != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+g.accessToken)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return common.ErrVersionConflict
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, resp.Status)
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Ping probes the server.
func (g *HTTPGateway) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := g.doJSON(ctx, http.MethodGet, "/ping", nil, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.ErrUnavailable
	}
	return nil
}

// ListSets returns the set overview: one representative file per set.
func (g *HTTPGateway) ListSets(ctx context.Context, p SetListParams) ([]models.SetOverview, error) {
	query := url.Values{}
	if p.Status != "" {
		query.Set("status", p.Status)
	}

	var dtos []setOverviewDTO
	if err := g.doJSON(ctx, http.MethodGet, "/imagesets", query, nil, &dtos); err != nil {
		return nil, err
	}

	result := make([]models.SetOverview, 0, len(dtos))
	for _, d := range dtos {
		o := models.SetOverview{Name: d.Name, Status: models.SetStatus(d.Status), UpdatedAt: d.UpdatedAt}
		if d.File != nil {
			rec := fromDTO(*d.File)
			o.File = &rec
		}
		result = append(result, o)
	}
	return result, nil
}

// ListFiles fetches metadata for a set and downloads payloads for undeleted
// records in one batched call, keyed by storageKey and returned in key
// order. Every returned record is stamped fetchedAt=now, shouldPush=false.
func (g *HTTPGateway) ListFiles(ctx context.Context, setName string, p ListParams) ([]models.FileRecord, error) {
	query := url.Values{"name": []string{setName}}
	if p.UpdatedAfter > 0 {
		query.Set("updated_after", strconv.FormatInt(p.UpdatedAfter, 10))
	}
	if p.IncludeDeleted {
		query.Set("include_deleted", "true")
	}

	var dtos []FileDTO
	if err := g.doJSON(ctx, http.MethodGet, "/files", query, nil, &dtos); err != nil {
		return nil, err
	}

	records := make([]models.FileRecord, 0, len(dtos))
	var keys []string
	var keyed []int
	for i, d := range dtos {
		rec := fromDTO(d)
		records = append(records, rec)
		if d.DeletedAt == 0 && d.StorageKey != "" {
			keys = append(keys, d.StorageKey)
			keyed = append(keyed, i)
		}
	}

	if len(keys) > 0 {
		var batch batchResponse
		if err := g.doJSON(ctx, http.MethodPost, "/storage/batch", nil, batchRequest{Keys: keys}, &batch); err != nil {
			return nil, err
		}
		if len(batch.Payloads) != len(keys) {
			return nil, fmt.Errorf("batch download returned %d payloads for %d keys", len(batch.Payloads), len(keys))
		}
		for n, i := range keyed {
			records[i].Payload = batch.Payloads[n]
		}
	}

	now := models.NowMillis()
	for i := range records {
		records[i].FetchedAt = now
		records[i].ShouldPush = false
	}
	return records, nil
}

// CreateFile registers a fresh record with the remote system.
func (g *HTTPGateway) CreateFile(ctx context.Context, setName string, rec *models.FileRecord) (string, string, error) {
	if rec.LocalID == "" || rec.ContentType == "" || len(rec.Payload) == 0 {
		return "", "", common.ErrInvalidRecord
	}

	var issued uploadURLResponse
	req := uploadURLRequest{Set: setName, LocalID: rec.LocalID, ContentType: rec.ContentType, Filename: rec.Filename}
	if err := g.doJSON(ctx, http.MethodPost, "/storage/uploads", nil, req, &issued); err != nil {
		return "", "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := netx.UploadToPresignedURL(uploadCtx, g.http, issued.URL, rec.Payload, rec.ContentType); err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	dto := toDTO(rec)
	dto.StorageKey = issued.Key

	var created createResponse
	query := url.Values{"name": []string{setName}}
	if err := g.doJSON(ctx, http.MethodPost, "/files", query, dto, &created); err != nil {
		return "", "", err
	}

	return created.RemoteID, issued.Key, nil
}

// UpdateFile pushes a metadata-only update. Guarded locally: without
// remoteId, version, createdAt and updatedAt all present, no network call is
// made.
func (g *HTTPGateway) UpdateFile(ctx context.Context, setName string, rec *models.FileRecord) error {
	if rec.RemoteID == "" || rec.Version == 0 || rec.CreatedAt == 0 || rec.UpdatedAt == 0 {
		g.log.Warn(ctx, "update skipped, record incomplete", "set", setName, "localId", rec.LocalID)
		return nil
	}

	query := url.Values{"name": []string{setName}}
	return g.doJSON(ctx, http.MethodPut, "/files/"+url.PathEscape(rec.RemoteID), query, toDTO(rec), nil)
}

// DeleteFile pushes a soft delete. Guarded locally like UpdateFile.
func (g *HTTPGateway) DeleteFile(ctx context.Context, setName string, rec *models.FileRecord) error {
	if rec.RemoteID == "" || rec.Version == 0 || rec.UpdatedAt == 0 || rec.DeletedAt == 0 {
		g.log.Warn(ctx, "delete skipped, record incomplete", "set", setName, "localId", rec.LocalID)
		return nil
	}

	body := tombstoneRequest{Version: rec.Version, UpdatedAt: rec.UpdatedAt, DeletedAt: rec.DeletedAt}
	query := url.Values{"name": []string{setName}}
	return g.doJSON(ctx, http.MethodDelete, "/files/"+url.PathEscape(rec.RemoteID)+"/s", query, body, nil)
}
