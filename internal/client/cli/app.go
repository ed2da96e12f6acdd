// Package cli is the thin presentation shell of the client: a command loop
// over the media service and the sync engine. Everything interesting lives
// below it.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/avolkov/snapsync/internal/client/config"
	"github.com/avolkov/snapsync/internal/client/gateway"
	"github.com/avolkov/snapsync/internal/client/services"
	"github.com/avolkov/snapsync/internal/client/store"
	"github.com/avolkov/snapsync/internal/client/syncer"
	"github.com/avolkov/snapsync/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	log    logging.Logger
	db     *sql.DB
	media  *services.MediaService
	coord  *syncer.Coordinator
	gw     gateway.Gateway
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewDefault()

	st, db, err := store.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	gw := gateway.NewHTTPGateway(c.ServerEndpointURL, c.AccessToken, log)
	coord := syncer.New(st, gw, syncer.NewPingProbe(gw), log, c.DebounceWindow)
	media := services.NewMediaService(st, coord)

	return &App{config: c, log: log, db: db, media: media, coord: coord, gw: gw}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.coord.StartWatcher(a.config.OnlineCheckInterval)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, scanner)
}

func (a *App) Close() {
	a.coord.Close()
	_ = a.db.Close()
}
