// Package models defines server-side rows of the metadata store.
package models

// File is one registered media record. Timestamps are epoch milliseconds as
// reported by the owning client; DeletedAt non-zero marks a tombstone kept
// so deletion propagates to other sessions instead of disappearing silently.
type File struct {
	// ID is the server-assigned identifier (what clients call remoteId).
	ID string

	Owner   string
	SetName string

	// LocalID is the client-generated identifier, unique per (owner, set).
	LocalID string

	StorageKey  string
	ContentType string
	Size        int64
	Filename    string

	Version   int64
	CreatedAt int64
	UpdatedAt int64
	DeletedAt int64
}

// SetOverview is one row of the overview listing: a set together with its
// most recently updated undeleted file.
type SetOverview struct {
	Owner  string
	Name   string
	Status string
	File   *File
}
