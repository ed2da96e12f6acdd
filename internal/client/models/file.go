// Package models defines client-side data models for captured media records
// and the imagesets that group them.
package models

import "time"

// FileRecord is a captured binary media record persisted locally and synced
// with the metadata API and object store.
//
// Timestamps are epoch milliseconds. Zero means unset.
type FileRecord struct {
	// LocalID is the client-generated identifier, stable across sync and the
	// primary local key.
	LocalID string

	// RemoteID is the server-assigned identifier. Empty until a create call
	// to the metadata API succeeds.
	RemoteID string

	// StorageKey addresses the payload in the object store. Empty until the
	// payload has been uploaded.
	StorageKey string

	// Payload holds the binary content. Nil before a local download and
	// always nil once the record is tombstoned.
	Payload []byte

	ContentType string
	Size        int64
	Filename    string

	// Version increases by exactly one on every local mutation. Never
	// decreases; starts at 1.
	Version int64

	CreatedAt int64
	UpdatedAt int64

	// DeletedAt is the tombstone timestamp; zero for live records.
	DeletedAt int64

	// ShouldPush marks local state not yet reflected remotely.
	ShouldPush bool

	// FetchedAt is the time of the last successful remote fetch this
	// session; zero if never fetched.
	FetchedAt int64
}

// Tombstoned reports whether the record is a logical delete marker.
func (f *FileRecord) Tombstoned() bool {
	return f.DeletedAt != 0
}

// Registered reports whether the record has been created on the remote side.
func (f *FileRecord) Registered() bool {
	return f.RemoteID != ""
}

// Touch bumps the version, refreshes UpdatedAt and flags the record for
// push. Every local mutation path goes through here.
func (f *FileRecord) Touch(now int64) {
	f.Version++
	f.UpdatedAt = now
	f.ShouldPush = true
}

// Tombstone marks the record deleted and clears its payload. The payload is
// dropped immediately; physical removal waits for the remote acknowledgement.
func (f *FileRecord) Tombstone(now int64) {
	f.DeletedAt = now
	f.Payload = nil
	f.Touch(now)
}

// Clone returns a deep copy, so merge results never alias a caller's slice.
func (f *FileRecord) Clone() *FileRecord {
	c := *f
	if f.Payload != nil {
		c.Payload = make([]byte, len(f.Payload))
		copy(c.Payload, f.Payload)
	}
	return &c
}

// NowMillis returns the current wall clock in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
