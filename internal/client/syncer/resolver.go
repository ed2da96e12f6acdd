// Package syncer contains the synchronization engine: the pure last-write-
// wins resolver and the coordinator that schedules push/pull passes between
// the local store and the remote gateway.
package syncer

import "github.com/avolkov/snapsync/internal/client/models"

// Resolve picks the winner between a local record and its remote
// counterpart. With no local counterpart the remote record wins. Otherwise
// the record with the greater UpdatedAt wins whole, not field-by-field;
// a tie keeps the local copy so an in-flight local edit is never discarded.
// Tombstones take part in the same comparison: a later tombstone overwrites
// an earlier edit and a later edit overwrites an earlier tombstone.
//
// The function is side-effect-free; it never mutates its arguments.
func Resolve(local, remote *models.FileRecord) *models.FileRecord {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.UpdatedAt > local.UpdatedAt {
		return remote
	}
	return local
}
