package gateway

import "github.com/avolkov/snapsync/internal/client/models"

// FileDTO is the wire representation of a file record on the metadata API.
// Timestamps are epoch milliseconds; zero means unset.
type FileDTO struct {
	LocalID     string `json:"localId"`
	RemoteID    string `json:"remoteId,omitempty"`
	StorageKey  string `json:"storageKey,omitempty"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Filename    string `json:"filename"`
	Version     int64  `json:"version"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	DeletedAt   int64  `json:"deletedAt,omitempty"`
	ShouldPush  bool   `json:"shouldPush,omitempty"`
}

func toDTO(f *models.FileRecord) FileDTO {
	return FileDTO{
		LocalID:     f.LocalID,
		RemoteID:    f.RemoteID,
		StorageKey:  f.StorageKey,
		ContentType: f.ContentType,
		Size:        f.Size,
		Filename:    f.Filename,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		DeletedAt:   f.DeletedAt,
	}
}

func fromDTO(d FileDTO) models.FileRecord {
	return models.FileRecord{
		LocalID:     d.LocalID,
		RemoteID:    d.RemoteID,
		StorageKey:  d.StorageKey,
		ContentType: d.ContentType,
		Size:        d.Size,
		Filename:    d.Filename,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		DeletedAt:   d.DeletedAt,
	}
}

type setOverviewDTO struct {
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	File      *FileDTO `json:"file,omitempty"`
	UpdatedAt int64    `json:"updatedAt"`
}

type uploadURLRequest struct {
	Set         string `json:"set"`
	LocalID     string `json:"localId"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

type uploadURLResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type createResponse struct {
	RemoteID string `json:"remoteId"`
}

type batchRequest struct {
	Keys []string `json:"keys"`
}

type batchResponse struct {
	Payloads [][]byte `json:"payloads"`
}

type tombstoneRequest struct {
	Version   int64 `json:"version"`
	UpdatedAt int64 `json:"updatedAt"`
	DeletedAt int64 `json:"deletedAt"`
}
