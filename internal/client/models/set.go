package models

// SetStatus is the lifecycle state of an imageset.
type SetStatus string

const (
	SetStatusDraft    SetStatus = "draft"
	SetStatusSent     SetStatus = "sent"
	SetStatusArchived SetStatus = "archived"
	SetStatusDeleted  SetStatus = "deleted"
)

// ImageSet is the in-memory projection of one named collection: its files
// ordered most-recent-first plus the pull watermark.
type ImageSet struct {
	Name   string
	Status SetStatus

	// Files is ordered by UpdatedAt descending.
	Files []FileRecord

	// SyncMarker is the timestamp of the most recent successfully pulled
	// remote change; zero if the set has never been pulled.
	SyncMarker int64
}

// SetInfo is the persisted per-set row of the local store.
type SetInfo struct {
	Name       string
	Status     SetStatus
	SyncMarker int64
}

// SetOverview is one row of the remote overview listing: a set with its
// representative (most recently updated, undeleted) file.
type SetOverview struct {
	Name      string
	Status    SetStatus
	File      *FileRecord
	UpdatedAt int64
}
