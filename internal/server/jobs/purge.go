// Package jobs runs the server's background maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/avolkov/snapsync/internal/logging"
	"github.com/avolkov/snapsync/internal/server/services"
)

// PurgeRunner periodically removes tombstones older than the retention
// window. Soft-deleted rows only need to live long enough for every client
// session to observe the deletion; after that they are dead weight.
type PurgeRunner struct {
	svc       *services.FileService
	retention time.Duration
	interval  time.Duration
	log       logging.Logger
	scheduler gocron.Scheduler
}

func NewPurgeRunner(svc *services.FileService, retention, interval time.Duration, log logging.Logger) *PurgeRunner {
	return &PurgeRunner{svc: svc, retention: retention, interval: interval, log: log}
}

// Start schedules the purge job and runs it on the configured interval
// until Shutdown is called.
func (r *PurgeRunner) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = s.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.runOnce(ctx) }),
	)
	if err != nil {
		return err
	}

	r.scheduler = s
	s.Start()
	r.log.Info(ctx, "tombstone purge scheduled", "interval", r.interval, "retention", r.retention)
	return nil
}

func (r *PurgeRunner) runOnce(ctx context.Context) {
	purged, err := r.svc.PurgeTombstones(ctx, r.retention)
	if err != nil {
		r.log.Error(ctx, "tombstone purge failed", "error", err)
		return
	}
	if purged > 0 {
		r.log.Info(ctx, "tombstones purged", "count", purged)
	}
}

// Shutdown stops the scheduler and waits for a running job to finish.
func (r *PurgeRunner) Shutdown() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}
