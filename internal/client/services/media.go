// Package services contains the client-side application services sitting
// between the presentation layer and the sync engine.
package services

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/avolkov/snapsync/internal/client/models"
	"github.com/avolkov/snapsync/internal/client/store"
	"github.com/google/uuid"
)

// Scheduler is the slice of the sync coordinator the service needs: a way to
// request a (debounced) pass after a local mutation.
type Scheduler interface {
	Schedule(setName string)
}

// MediaService implements local capture, edit and delete of media records.
// It is the only place local mutations happen, so version monotonicity is
// enforced here: every mutation bumps the version by one and refreshes
// updatedAt.
type MediaService struct {
	store store.Store
	sched Scheduler
}

func NewMediaService(st store.Store, sched Scheduler) *MediaService {
	return &MediaService{store: st, sched: sched}
}

// detectContentType prefers the filename extension and falls back to
// sniffing the payload bytes.
func detectContentType(filename string, payload []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return http.DetectContentType(payload)
}

// CaptureFile reads a media file from disk and records it in the set as a
// fresh local draft pending push.
func (s *MediaService) CaptureFile(ctx context.Context, setName, path string) (*models.FileRecord, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading capture: %w", err)
	}
	return s.Capture(ctx, setName, filepath.Base(path), payload)
}

// Capture records a captured payload in the set.
func (s *MediaService) Capture(ctx context.Context, setName, filename string, payload []byte) (*models.FileRecord, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty capture payload")
	}

	now := models.NowMillis()
	rec := &models.FileRecord{
		LocalID:     uuid.NewString(),
		Payload:     payload,
		ContentType: detectContentType(filename, payload),
		Size:        int64(len(payload)),
		Filename:    filename,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		ShouldPush:  true,
	}

	if err := s.store.Create(ctx, setName, rec); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}

	s.sched.Schedule(setName)
	return rec, nil
}

// Rename changes the display filename of a record.
func (s *MediaService) Rename(ctx context.Context, setName, localID, filename string) error {
	rec, err := s.store.GetByID(ctx, setName, localID)
	if err != nil {
		return fmt.Errorf("error retrieving record: %w", err)
	}

	rec.Filename = filename
	rec.Touch(models.NowMillis())

	if err := s.store.Update(ctx, setName, rec); err != nil {
		return fmt.Errorf("error updating record: %w", err)
	}

	s.sched.Schedule(setName)
	return nil
}

// Delete tombstones a record. The payload is dropped immediately; the row
// itself survives until the remote soft-delete is acknowledged.
func (s *MediaService) Delete(ctx context.Context, setName, localID string) error {
	rec, err := s.store.GetByID(ctx, setName, localID)
	if err != nil {
		return fmt.Errorf("error retrieving record: %w", err)
	}

	rec.Tombstone(models.NowMillis())

	if err := s.store.Update(ctx, setName, rec); err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}

	s.sched.Schedule(setName)
	return nil
}

// List returns the set's records, most-recent-first.
func (s *MediaService) List(ctx context.Context, setName string) ([]models.FileRecord, error) {
	return s.store.GetAll(ctx, setName)
}

// Get returns one record.
func (s *MediaService) Get(ctx context.Context, setName, localID string) (*models.FileRecord, error) {
	return s.store.GetByID(ctx, setName, localID)
}

// Export stages a record's payload to disk and returns a scoped handle the
// caller must release.
func (s *MediaService) Export(ctx context.Context, setName, localID string) (*models.PayloadHandle, error) {
	rec, err := s.store.GetByID(ctx, setName, localID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving record: %w", err)
	}
	if len(rec.Payload) == 0 {
		return nil, fmt.Errorf("record %s has no local payload", localID)
	}
	return models.StagePayload("exports", rec.Payload)
}
