package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/chflat/internal/clickhouse"
	"github.com/JonMunkholm/chflat/internal/config"
	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/flatfile"
	"github.com/JonMunkholm/chflat/internal/journal"
	"github.com/JonMunkholm/chflat/internal/logging"
	"github.com/JonMunkholm/chflat/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage_root", cfg.Storage.Root,
		"transfer_max_concurrent", cfg.Transfer.MaxConcurrent,
		"journal_enabled", cfg.Journal.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	// The journal is optional; without it transfers are only logged
	var transfers core.TransferJournal = core.NopJournal{}
	if cfg.Journal.Enabled() {
		j, closeJournal, err := journal.Open(ctx, journal.Config{
			URL:             cfg.Journal.URL,
			MaxConns:        cfg.Journal.MaxConns,
			MinConns:        cfg.Journal.MinConns,
			MaxConnLifetime: cfg.Journal.MaxConnLifetime,
			MaxConnIdleTime: cfg.Journal.MaxConnIdleTime,
		})
		if err != nil {
			slog.Error("failed to open transfer journal", "error", err)
			os.Exit(1)
		}
		defer closeJournal()
		transfers = j
		slog.Info("transfer journal connected")
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		slog.Error("failed to create storage root", "root", cfg.Storage.Root, "error", err)
		os.Exit(1)
	}

	limiter := core.NewTransferLimiter(cfg.Transfer.MaxConcurrent, cfg.Transfer.MaxWait)
	service := core.NewService(
		clickhouse.NewGateway(clickhouse.Config{
			DialTimeout:        cfg.ClickHouse.DialTimeout,
			InsecureSkipVerify: cfg.ClickHouse.InsecureSkipVerify,
		}),
		flatfile.NewStore(flatfile.Config{
			Root:             cfg.Storage.Root,
			MaxFileSize:      cfg.Storage.MaxFileSize,
			DetectTimestamps: cfg.Transfer.DetectTimestamps,
		}),
		core.Options{
			Defaults: core.ConnectionDefaults{
				Host:     cfg.ClickHouse.Host,
				Port:     cfg.ClickHouse.Port,
				Database: cfg.ClickHouse.Database,
				User:     cfg.ClickHouse.User,
			},
			BatchSize: cfg.Transfer.BatchSize,
			Journal:   transfers,
			Limiter:   limiter,
		},
	)

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running transfers finish so no batch is cut mid-insert
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for transfers to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("transfers did not complete in time", "error", err)
			} else {
				slog.Info("all transfers completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
