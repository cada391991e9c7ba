package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	coredatabase "github.com/m3rciful/hackbot/core/database"
	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/stash"
)

const dbWaitTimeout = 30 * time.Second

// Options control the generic bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
	OpenStash  func(context.Context, coreconfig.StashConfig) (stash.Store, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when the journal database is not configured.
type Result struct {
	DB    *sqlx.DB
	Stash stash.Store
}

// Close releases everything Run opened.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Stash != nil {
		errs = append(errs, r.Stash.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, opens the callback stash and, when configured,
// connects to the journal database and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}

	if cfg.Database.Enabled() {
		connect := opts.Connect
		if connect == nil {
			connect = connectWhenReady
		}
		db, err := connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, cfg.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	openStash := opts.OpenStash
	if openStash == nil {
		openStash = stash.Open
	}
	store, err := openStash(ctx, cfg.Stash)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: stash init failed: %w", err)
	}
	res.Stash = store

	return res, nil
}

func connectWhenReady(ctx context.Context, cfg coreconfig.DatabaseConfig) (*sqlx.DB, error) {
	if err := coredatabase.WaitForPostgres(ctx, coredatabase.KeywordDSN(cfg), dbWaitTimeout); err != nil {
		return nil, err
	}
	return coredatabase.Connect(ctx, cfg)
}
