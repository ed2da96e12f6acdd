// Package files implements the metadata store for registered media records.
package files

import (
	"context"

	"github.com/avolkov/snapsync/internal/server/models"
)

// Repository describes the persistence operations of the metadata API.
type Repository interface {
	// EnsureSet creates the imageset row on first reference.
	EnsureSet(ctx context.Context, owner, name string) error

	// Register upserts a file by (owner, set, localId) and returns the
	// server id. Re-registering after a partial failure is idempotent: the
	// existing row is updated and the same id comes back. A stale
	// registration (older updatedAt than stored) leaves the row untouched
	// and still returns the id.
	Register(ctx context.Context, f *models.File) (string, error)

	// Get returns one file by server id, scoped to owner and set.
	Get(ctx context.Context, owner, set, id string) (*models.File, error)

	// UpdateMeta overwrites metadata by server id when the incoming
	// updatedAt is not older than the stored one; a stale write is accepted
	// and ignored per last-write-wins.
	UpdateMeta(ctx context.Context, f *models.File) error

	// SoftDelete tombstones a file. Like UpdateMeta, a stale tombstone is
	// ignored.
	SoftDelete(ctx context.Context, owner, set, id string, version, updatedAt, deletedAt int64) error

	// SelectUpdated returns files of a set with updatedAt at or after
	// since, newest first. Tombstones are included only when requested.
	SelectUpdated(ctx context.Context, owner, set string, since int64, includeDeleted bool) ([]*models.File, error)

	// Representatives returns, per set of the owner, the most recently
	// updated undeleted file together with the set status.
	Representatives(ctx context.Context, owner string) ([]*models.SetOverview, error)

	// PurgeTombstones physically removes tombstones older than the cutoff
	// and returns how many rows went away.
	PurgeTombstones(ctx context.Context, cutoff int64) (int64, error)
}
