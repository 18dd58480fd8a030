// Command codeintel-worker runs the code-intelligence conversion daemon.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gupsho/sourcegraph/internal/config"
	"github.com/gupsho/sourcegraph/internal/converter"
	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/gitserver"
	"github.com/gupsho/sourcegraph/internal/store"
	"github.com/gupsho/sourcegraph/internal/worker"
)

func main() {
	configPath := flag.String("config", envOrDefault("CODEINTEL_CONFIG", "/etc/codeintel/config.toml"), "Path to the configuration file")
	logLevel := flag.String("log-level", envOrDefault("CODEINTEL_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("CODEINTEL_LOG_FORMAT", "json"), "Log format (json, text)")
	flag.Parse()

	// Setup logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		logger.Error("failed to open metadata store", "error", err, "path", cfg.DatabasePath())
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Initialize(); err != nil {
		logger.Error("failed to initialize metadata store", "error", err)
		os.Exit(1)
	}

	disk, err := diskstore.New(cfg.StorageRoot)
	if err != nil {
		logger.Error("failed to open storage root", "error", err, "path", cfg.StorageRoot)
		os.Exit(1)
	}

	git, err := gitserver.NewHTTPClient(cfg.GitserverEndpoints)
	if err != nil {
		logger.Error("failed to configure gitserver client", "error", err)
		os.Exit(1)
	}

	conv, err := converter.NewCommandConverter(cfg.ConverterCommand, logger)
	if err != nil {
		logger.Error("failed to configure converter", "error", err)
		os.Exit(1)
	}

	pipeline := worker.NewPipeline(st, disk, conv, git, cfg.MaxStorageBytes, logger)

	w, err := worker.New(st, pipeline, cfg.PoolSize, time.Duration(cfg.PollSeconds)*time.Second, logger)
	if err != nil {
		logger.Error("failed to start worker pool", "error", err)
		os.Exit(1)
	}

	watcher, err := worker.NewUploadWatcher(filepath.Join(cfg.StorageRoot, diskstore.UploadsDir), w.Wake, logger)
	if err != nil {
		logger.Error("failed to create upload watcher", "error", err)
		os.Exit(1)
	}
	if err := watcher.Start(); err != nil {
		logger.Error("failed to start upload watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-done
		logger.Info("shutting down...")
		cancel()
	}()

	logger.Info("starting codeintel-worker",
		"storage_root", cfg.StorageRoot,
		"pool_size", cfg.PoolSize,
		"max_storage_bytes", cfg.MaxStorageBytes)

	w.Run(ctx)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
