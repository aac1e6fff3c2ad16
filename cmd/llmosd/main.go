// Package main — cmd/llmosd/main.go
//
// llm-osd entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/llm-osd/config.yaml.
//  2. Initialise structured logger (zap).
//  3. Open the JSONL audit log and its BoltDB secondary index.
//  4. Start the Prometheus metrics/health server (loopback only).
//  5. Start the Unix domain socket connection server.
//  6. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (stops accepting new connections).
//  2. Wait for the accept loop to stop (max 5s). In-flight connections are
//     not waited for; their contexts are canceled along with the root one.
//  3. Close the audit index and log.
//  4. Flush logger.
//  5. Exit 0.
//
// On config validation failure: exit 1 immediately.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/llm-osd/llm-osd/internal/audit"
	"github.com/llm-osd/llm-osd/internal/auditindex"
	"github.com/llm-osd/llm-osd/internal/config"
	"github.com/llm-osd/llm-osd/internal/observability"
	"github.com/llm-osd/llm-osd/internal/server"
)

func main() {
	configPath := flag.String("config", "/etc/llm-osd/config.yaml", "Path to config.yaml")
	socketPath := flag.String("socket-path", "", "Override socket_path from the config file")
	auditPath := flag.String("audit-path", "", "Override audit_path from the config file")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("llm-osd %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *auditPath != "" {
		cfg.AuditPath = *auditPath
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("llm-osd starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("config", *configPath),
		zap.String("socket_path", cfg.SocketPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditor, err := audit.Open(cfg.AuditPath)
	if err != nil {
		log.Fatal("audit log open failed", zap.Error(err), zap.String("path", cfg.AuditPath))
	}
	defer auditor.Close() //nolint:errcheck
	log.Info("audit log opened", zap.String("path", cfg.AuditPath))

	index, err := auditindex.Open(cfg.AuditIndexPath)
	if err != nil {
		log.Fatal("audit index open failed", zap.Error(err), zap.String("path", cfg.AuditIndexPath))
	}
	defer index.Close() //nolint:errcheck
	auditor.SetIndex(index)
	log.Info("audit index opened", zap.String("path", cfg.AuditIndexPath))

	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	srv := server.New(server.Config{
		SocketPath:        cfg.SocketPath,
		MaxRequestBytes:   cfg.MaxRequestBytes,
		ReadIdleTimeout:   cfg.ReadIdleTimeout,
		ConfirmationToken: cfg.ConfirmationToken,
	}, metrics, auditor, log)

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.ListenAndServe(ctx)
	}()
	log.Info("connection server started", zap.String("socket_path", cfg.SocketPath))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	case err := <-serveDone:
		if err != nil {
			log.Error("connection server exited unexpectedly", zap.Error(err))
		}
		cancel()
	}

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	select {
	case <-shutdownTimer.C:
		log.Warn("shutdown drain timeout — forcing exit")
	case <-serveDone:
		log.Info("connection server stopped")
	}

	log.Info("llm-osd shutdown complete")
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
