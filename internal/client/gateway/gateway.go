// Package gateway implements the client of the remote system: the metadata
// API and the object-storage subsystem behind it.
package gateway

import (
	"context"

	"github.com/avolkov/snapsync/internal/client/models"
)

// ListParams filter a remote file listing.
type ListParams struct {
	// UpdatedAfter requests only records with UpdatedAt at or after the
	// given watermark (epoch ms). Zero requests everything.
	UpdatedAfter int64

	// IncludeDeleted includes tombstoned records in the listing. Pull passes
	// set it so deletions propagate.
	IncludeDeleted bool
}

// SetListParams filter the set overview listing.
type SetListParams struct {
	// Status restricts the overview to sets in the given lifecycle status.
	// Empty requests every set.
	Status string
}

// Gateway hides the transport to the remote system.
type Gateway interface {
	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// ListSets returns one representative record per set for an overview.
	ListSets(ctx context.Context, p SetListParams) ([]models.SetOverview, error)

	// ListFiles fetches metadata for a set, downloads payloads for all
	// undeleted records in a single batched call, and stamps fetchedAt=now,
	// shouldPush=false on every returned record.
	ListFiles(ctx context.Context, setName string, p ListParams) ([]models.FileRecord, error)

	// CreateFile registers a fresh record: requests a time-limited upload
	// URL for the record's deterministic logical path, uploads the payload,
	// then registers the metadata. Returns the server-assigned remoteId and
	// the storage key. Fails with common.ErrInvalidRecord before any network
	// call when contentType, payload or localId is missing.
	CreateFile(ctx context.Context, setName string, rec *models.FileRecord) (remoteID, storageKey string, err error)

	// UpdateFile pushes a metadata-only update. A record missing remoteId,
	// version, createdAt or updatedAt makes the call a local no-op.
	UpdateFile(ctx context.Context, setName string, rec *models.FileRecord) error

	// DeleteFile pushes a soft delete. A record missing remoteId, version,
	// updatedAt or deletedAt makes the call a local no-op.
	DeleteFile(ctx context.Context, setName string, rec *models.FileRecord) error
}
