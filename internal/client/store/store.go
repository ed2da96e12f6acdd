// Package store implements the namespaced local persistent store for file
// records. Records are keyed by localId within an imageset; implementations
// are backed by a local SQLite database.
package store

import (
	"context"

	"github.com/avolkov/snapsync/internal/client/models"
)

// ResolveFunc decides the winner when a remote record meets its local
// counterpart during Merge. local is nil when no counterpart exists.
type ResolveFunc func(local, remote *models.FileRecord) *models.FileRecord

// Store describes the operations of the local persistent store.
type Store interface {
	// GetByID returns one record. Fails with common.ErrNotFound when the
	// record is absent from the set.
	GetByID(ctx context.Context, setName, localID string) (*models.FileRecord, error)

	// GetAll returns the full list for a set, ordered most-recent-first.
	// An unknown set yields an empty list, not an error.
	GetAll(ctx context.Context, setName string) ([]models.FileRecord, error)

	// Create inserts a new record. Fails with common.ErrAlreadyExists when
	// the localId is already present in the set. The set is created
	// implicitly on first reference.
	Create(ctx context.Context, setName string, rec *models.FileRecord) error

	// Update applies a partial update. localId, storageKey and payload are
	// immutable through this call; callers that need to change them go
	// through Create or MarkUploaded. As an invariant, the stored payload is
	// cleared when the update carries a tombstone. Fails with
	// common.ErrNotFound when the record is absent.
	Update(ctx context.Context, setName string, rec *models.FileRecord) error

	// Delete physically removes the record and its payload.
	Delete(ctx context.Context, setName, localID string) error

	// MarkUploaded records a successful push of a fresh record: assigns the
	// server id and the object-storage key. The pending flag is cleared only
	// when the stored version still equals version; an edit that landed while
	// the push was in flight keeps the record pending.
	MarkUploaded(ctx context.Context, setName, localID, remoteID, storageKey string, version int64) error

	// ClearPending clears the pending flag only when the stored version still
	// equals version. A concurrent edit leaves the flag set so the edit is
	// pushed on the next pass. Fails with common.ErrNotFound when the record
	// is absent.
	ClearPending(ctx context.Context, setName, localID string, version int64) error

	// Merge folds a batch of remote records into local state, one resolve
	// call per record. Remote records with no local counterpart are
	// inserted; local records absent from the batch are left untouched
	// (absence is never treated as deletion). Returns the merged list,
	// most-recent-first.
	Merge(ctx context.Context, setName string, remote []models.FileRecord, resolve ResolveFunc) ([]models.FileRecord, error)

	// Sets lists the locally known imagesets.
	Sets(ctx context.Context) ([]models.SetInfo, error)

	// SetSyncMarker advances the pull watermark persisted for a set.
	SetSyncMarker(ctx context.Context, setName string, marker int64) error
}
