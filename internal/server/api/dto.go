package api

import "github.com/avolkov/snapsync/internal/server/models"

// fileDTO mirrors the wire representation the client uses. Timestamps are
// epoch milliseconds; zero means unset.
type fileDTO struct {
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
}

func toDTO(f *models.File) fileDTO {
	return fileDTO{
		LocalID:     f.LocalID,
		RemoteID:    f.ID,
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

func fromDTO(d fileDTO) models.File {
	return models.File{
		ID:          d.RemoteID,
		LocalID:     d.LocalID,
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
	File      *fileDTO `json:"file,omitempty"`
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
