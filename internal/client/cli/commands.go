package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkov/snapsync/internal/client/gateway"
)

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}

func (a *App) Sets(ctx context.Context, status string) error {
	overviews, err := a.gw.ListSets(ctx, gateway.SetListParams{Status: status})
	if err != nil {
		return fmt.Errorf("error listing sets: %w", err)
	}
	for _, o := range overviews {
		name := "-"
		if o.File != nil {
			name = o.File.Filename
		}
		_, _ = printlnFn(o.Name, string(o.Status), name, formatMillis(o.UpdatedAt))
	}
	return nil
}

func (a *App) List(ctx context.Context, set string) error {
	recs, err := a.media.List(ctx, set)
	if err != nil {
		return fmt.Errorf("error listing files: %w", err)
	}
	for _, r := range recs {
		state := "synced"
		switch {
		case r.Tombstoned():
			state = "deleting"
		case r.ShouldPush:
			state = "pending"
		}
		_, _ = printlnFn(r.LocalID, r.Filename, r.ContentType, r.Size, "v"+fmt.Sprint(r.Version), state)
	}
	return nil
}

func (a *App) Capture(ctx context.Context, set, path string) error {
	rec, err := a.media.CaptureFile(ctx, set, path)
	if err != nil {
		return err
	}
	_, _ = printlnFn("captured", rec.LocalID)
	return nil
}

func (a *App) Show(ctx context.Context, set, id string) error {
	rec, err := a.media.Get(ctx, set, id)
	if err != nil {
		return err
	}
	_, _ = printlnFn("localId:   ", rec.LocalID)
	_, _ = printlnFn("remoteId:  ", rec.RemoteID)
	_, _ = printlnFn("storageKey:", rec.StorageKey)
	_, _ = printlnFn("filename:  ", rec.Filename)
	_, _ = printlnFn("type/size: ", rec.ContentType, rec.Size)
	_, _ = printlnFn("version:   ", rec.Version)
	_, _ = printlnFn("created:   ", formatMillis(rec.CreatedAt))
	_, _ = printlnFn("updated:   ", formatMillis(rec.UpdatedAt))
	if rec.Tombstoned() {
		_, _ = printlnFn("deleted:   ", formatMillis(rec.DeletedAt))
	}
	return nil
}

func (a *App) Delete(ctx context.Context, set, id string) error {
	if err := a.media.Delete(ctx, set, id); err != nil {
		return err
	}
	_, _ = printlnFn("deleted", id)
	return nil
}

// Sync runs an immediate pass, bypassing the debounce window.
func (a *App) Sync(ctx context.Context, set string) error {
	a.coord.SyncSet(ctx, set)
	return nil
}
