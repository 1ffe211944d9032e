package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sandgraal/retro-games-sub003/internal/auth"
	"github.com/sandgraal/retro-games-sub003/internal/cli"
	"github.com/sandgraal/retro-games-sub003/internal/config"
	"github.com/sandgraal/retro-games-sub003/internal/db"
	"github.com/sandgraal/retro-games-sub003/internal/httpapi"
	"github.com/sandgraal/retro-games-sub003/internal/ingest"
	"github.com/sandgraal/retro-games-sub003/internal/logging"
	"github.com/sandgraal/retro-games-sub003/internal/moderation"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

type serviceFlags struct {
	configPath      string
	once            bool
	serve           bool
	host            string
	port            int
	shutdownTimeout time.Duration
}

func runService(args []string) int {
	fs := flag.NewFlagSet("catalog-ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	var f serviceFlags
	fs.StringVar(&f.configPath, "config", "", "Path to the ingestion config (JSON or YAML)")
	fs.BoolVar(&f.once, "once", false, "Run one ingestion pass and exit (serve afterwards with --serve)")
	fs.BoolVar(&f.serve, "serve", false, "Start the HTTP API server")
	fs.StringVar(&f.host, "host", "0.0.0.0", "Host interface to bind")
	fs.IntVar(&f.port, "port", 8080, "HTTP port")
	fs.DurationVar(&f.shutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	if f.port <= 0 || f.port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ingestCfg, err := config.LoadIngest(f.configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", f.configPath).Msg("invalid ingestion config")
		fmt.Fprintf(os.Stderr, "Failed to load ingestion config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, ingestCfg, f, logger); err != nil {
		fmt.Fprintf(os.Stderr, "catalog-ingest failed: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, ingestCfg config.Ingest, f serviceFlags, logger zerolog.Logger) error {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Error().Err(err).Str("data_dir", cfg.DataDir).Msg("open store failed")
		return err
	}

	pool := openLedger(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	modSvc := moderation.NewService(st, logger)

	opts := ingest.Options{
		Sources:        ingest.BuildSources(ingestCfg.Sources, &http.Client{Timeout: cfg.FetchTimeout()}),
		FuzzyThreshold: ingestCfg.FuzzyThreshold,
		Concurrency:    cfg.FetchConcurrency,
		Suggestions:    modSvc,
	}
	var runs httpapi.RunLedger
	if pool != nil {
		opts.Runs = pool
		runs = pool
	}
	orch := ingest.NewOrchestrator(st, opts, logger)

	if f.once {
		_, err := orch.Run(ctx)
		if !f.serve {
			return err
		}
		if err != nil {
			logger.Error().Err(err).Msg("initial ingestion run failed")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if !f.once {
		scheduler := ingest.NewScheduler(orch, ingestCfg.Interval(), logger)
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}
	if f.serve {
		srv := httpapi.NewServer(httpapi.Deps{
			Snapshots:  st,
			Moderation: modSvc,
			Runs:       runs,
			Resolver:   auth.NewResolver(cfg.JWTSecret, cfg.JWTIssuer),
		}, logger, httpapi.Options{
			Host:               f.host,
			Port:               f.port,
			ShutdownTimeout:    f.shutdownTimeout,
			CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
			SnapshotMaxAge:     time.Duration(cfg.SnapshotMaxAgeSeconds) * time.Second,
		})
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}
	return g.Wait()
}

// openLedger connects the run ledger. The service runs without one when the
// database is unavailable.
func openLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *db.Pool {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.Open(dbCtx, db.Options{
		DSN:         cfg.LedgerDSNOrDefault(),
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("run ledger unavailable; continuing without it")
		return nil
	}
	logger.Info().Str("driver", pool.Driver()).Msg("run ledger connected")
	return pool
}
