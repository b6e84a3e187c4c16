package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/httpapi"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/pipeline"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/store"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "echocancel.db", "SQLite job database path")
	workers := flag.Int("workers", defaultWorkers, "Processing worker goroutines")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if RunCLI(flag.Args(), *dbPath) {
		return
	}

	slog.Info("starting server", "version", Version, "addr", *addr, "db", *dbPath)

	jobStore, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("open sqlite store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := jobStore.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()

	svc := pipeline.NewService(*workers)
	defer svc.Close()
	slog.Debug("processing service started", "workers", *workers)

	server := httpapi.New(svc, jobStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunMetrics(ctx, svc, metricsInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	slog.Info("listening", "addr", *addr)
	if err := server.Run(ctx, *addr); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
