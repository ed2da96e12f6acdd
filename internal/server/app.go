// Package server wires the metadata API together: storage, services, REST
// endpoint and background jobs.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkov/snapsync/internal/logging"
	"github.com/avolkov/snapsync/internal/server/api"
	"github.com/avolkov/snapsync/internal/server/config"
	"github.com/avolkov/snapsync/internal/server/jobs"
	"github.com/avolkov/snapsync/internal/server/repositories/files"
	"github.com/avolkov/snapsync/internal/server/services"
)

type App struct {
	config *config.Config
	log    logging.Logger
	db     *sql.DB
	svc    *services.FileService
	srv    *http.Server
	purge  *jobs.PurgeRunner
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewDefault()

	repo, db, err := files.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	svc := services.NewFileService(repo, c)
	router := api.NewRouter(svc, []byte(c.SecretKey), log)

	srv := &http.Server{
		Addr:    c.EndpointAddr,
		Handler: router,
	}

	purge := jobs.NewPurgeRunner(svc, c.TombstoneRetention, c.PurgeInterval, log)

	return &App{config: c, log: log, db: db, svc: svc, srv: srv, purge: purge}, nil
}

// Run serves the API until the process receives SIGINT or SIGTERM, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.purge.Start(ctx); err != nil {
		return fmt.Errorf("error starting purge job: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "server listening", "addr", a.config.EndpointAddr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Close()
		return err
	case <-ctx.Done():
	}

	a.log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.srv.Shutdown(shutdownCtx)
	a.Close()
	return err
}

func (a *App) Close() {
	if err := a.purge.Shutdown(); err != nil {
		a.log.Error(context.Background(), "error stopping purge job", "error", err)
	}
	_ = a.db.Close()
}
