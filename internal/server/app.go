// Package server assembles the wakevault server from its configuration and
// runs it: the ledger runtime over the selected store, the gRPC request
// surface, the HTTP read API, event publishing and the scheduled jobs.
package server

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/events"
	"github.com/dmitrijs2005/wakevault/internal/keeper"
	"github.com/dmitrijs2005/wakevault/internal/ledger"
	"github.com/dmitrijs2005/wakevault/internal/ledger/memstore"
	"github.com/dmitrijs2005/wakevault/internal/ledger/pgstore"
	"github.com/dmitrijs2005/wakevault/internal/logging"
	"github.com/dmitrijs2005/wakevault/internal/metrics"
	"github.com/dmitrijs2005/wakevault/internal/server/config"
	"github.com/dmitrijs2005/wakevault/internal/server/httpapi"
	"github.com/dmitrijs2005/wakevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wakevault/internal/timex"

	gs "github.com/dmitrijs2005/wakevault/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	clock   timex.Clock
	metrics *metrics.Metrics
	runtime *ledger.Runtime
	archive *events.Archive
	keeper  *keeper.Keeper
	closers []io.Closer
}

// NewApp builds every component named by c. Connections opened here are
// released when Run returns, or by Close if Run is never called.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger, err := logging.New(out, c.LogBackend, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, err
	}

	dep, err := c.Deployment()
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  c,
		logger:  logger,
		clock:   timex.SystemClock{},
		metrics: metrics.New(),
	}

	store, err := app.newStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	publisher, err := app.newPublisher(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.runtime = ledger.NewRuntime(
		escrow.NewMachine(c.Params, dep),
		store,
		app.clock,
		logger.With("module", "ledger"),
		ledger.WithPublisher(publisher),
		ledger.WithRecorder(app.metrics),
		ledger.WithFaucet(c.FaucetLimit),
	)

	if c.KeeperEnabled {
		key, err := keeperKey(c.KeeperSeed)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.keeper, err = keeper.New(app.runtime, key, app.clock, logger,
			keeper.WithObserver(app.metrics), keeper.WithBatch(c.KeeperBatch))
		if err != nil {
			app.Close()
			return nil, err
		}
		logger.Info(ctx, "keeper enabled", "address", app.keeper.Address().String())
	}

	return app, nil
}

func (app *App) newStore(ctx context.Context) (ledger.Store, error) {
	switch app.config.Store {
	case config.StorePostgres:
		db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)

		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migration error: %w", err)
		}
		return pgstore.New(db, rm), nil
	case config.StoreMemory:
		app.logger.Warn(ctx, "using in-memory store, state is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store %q", app.config.Store)
}

func (app *App) newPublisher(ctx context.Context) (events.Publisher, error) {
	c := app.config
	pubs := events.Multi{events.NewLogPublisher(app.logger)}

	if c.RedisAddr != "" {
		client, err := events.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client)
		pubs = append(pubs, events.NewRedisPublisher(client, c.RedisStream, c.RedisMaxLen))
	}

	if c.S3Bucket != "" {
		client, err := events.NewS3Client(ctx, events.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		app.archive = events.NewArchive(client, c.S3Bucket, c.ArchivePrefix, c.ArchiveBatch, app.logger.With("component", "archive"))
		pubs = append(pubs, app.archive)
	}

	return pubs, nil
}

// keeperKey derives the keeper's signing key from a hex encoded 32-byte
// seed. An empty seed yields a fresh key on every start.
func keeperKey(seed string) (ed25519.PrivateKey, error) {
	if seed == "" {
		_, key, err := ed25519.GenerateKey(nil)
		return key, err
	}
	b, err := hex.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("keeper seed: %w", err)
	}
	if len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("keeper seed must be %d bytes, got %d", ed25519.SeedSize, len(b))
	}
	return ed25519.NewKeyFromSeed(b), nil
}

// Close releases the store and publisher connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(context.Background(), "close", "error", err.Error())
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startScheduler registers the keeper pass and the archive flush with cron.
func (app *App) startScheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	if app.keeper != nil {
		if _, err := app.keeper.Schedule(ctx, c, app.config.KeeperSchedule); err != nil {
			return nil, fmt.Errorf("keeper schedule: %w", err)
		}
	}
	if app.archive != nil {
		_, err := c.AddFunc(app.config.ArchiveSchedule, func() {
			if err := app.archive.Flush(ctx); err != nil {
				app.logger.Error(ctx, "archive flush", "error", err.Error())
			}
		})
		if err != nil {
			return nil, fmt.Errorf("archive schedule: %w", err)
		}
	}

	c.Start()
	return c, nil
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.runtime, app.clock, app.config.RateLimit, app.config.RateBurst)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.New(app.config.EndpointAddrHTTP, app.runtime.Reader(), app.runtime.Machine().Deployment().ProgramID,
		app.logger, app.metrics, app.metrics.Handler())
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled, a termination signal arrives or a
// server fails.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	scheduler, err := app.startScheduler(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	<-scheduler.Stop().Done()

	if app.archive != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
		defer cancel()
		if err := app.archive.Flush(flushCtx); err != nil {
			app.logger.Error(flushCtx, "final archive flush", "error", err.Error())
		}
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
