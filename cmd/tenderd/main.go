// Command tenderd serves the procurement ledger API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openprocure/tenderchain/pkg/api"
	"github.com/openprocure/tenderchain/pkg/config"
	"github.com/openprocure/tenderchain/pkg/ledger"
	"github.com/openprocure/tenderchain/pkg/tender"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	if err := run(); err != nil {
		slog.Error("tenderd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	chain, err := ledger.Open(ctx, store)
	if err != nil {
		return err
	}
	logger.Info("ledger opened", "driver", cfg.LedgerDriver, "entries", chain.Length(), "head", chain.Head())

	engine := tender.NewEngine(chain, tender.WithLogger(logger))
	service := api.NewService(engine, logger)

	var limiter api.Limiter
	if cfg.RedisAddr != "" {
		limiter = api.NewRedisLimiter(cfg.RedisAddr, cfg.RateRPS, cfg.RateBurst)
		logger.Info("using redis rate limiter", "addr", cfg.RedisAddr)
	} else {
		limiter = api.NewLocalLimiter(cfg.RateRPS, cfg.RateBurst)
	}

	if cfg.SweepIntervalSecs > 0 {
		go runSweep(ctx, engine, logger, time.Duration(cfg.SweepIntervalSecs)*time.Second)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           service.Routes(api.RouteConfig{AuthSecret: cfg.AuthSecret, Limiter: limiter}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runSweep invokes the deadline sweep on a fixed interval. The sweep
// itself is a synchronous engine operation; this is just the timer.
func runSweep(ctx context.Context, engine *tender.Engine, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reopened, err := engine.CheckDeadlines(ctx)
			if err != nil {
				logger.Error("deadline sweep failed", "error", err)
				continue
			}
			if len(reopened) > 0 {
				logger.Info("deadline sweep reopened tenders", "count", len(reopened))
			}
		}
	}
}

func openStore(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	noop := func() {}
	switch cfg.LedgerDriver {
	case "file":
		store, err := ledger.NewFileStore(cfg.LedgerPath)
		return store, noop, err
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.LedgerPath)
		if err != nil {
			return nil, noop, err
		}
		store := ledger.NewSQLStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, func() { _ = db.Close() }, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		store := ledger.NewSQLStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
