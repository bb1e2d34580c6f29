package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/case-inquiry/internal/adapters/mcp"
	"github.com/kirillkom/case-inquiry/internal/bootstrap"
	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/observability/logging"
)

// Stdout carries the MCP protocol, so every log line goes to stderr.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.NewJSONLoggerTo(os.Stderr, "mcp", "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithLogger(logger))
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if report, err := app.IndexCorpus(ctx); err != nil {
		logger.Warn("corpus_index_failed", "error", err)
	} else {
		logger.Info("corpus_indexed", "chunks", report.Chunks, "indexed", report.Indexed())
	}

	server := mcpadapter.NewServer(app.Inquiry, app.FlowService(), app.Corpus, app.Exporter,
		mcpadapter.WithLogger(logger),
		mcpadapter.WithCorpusReloader(app.IndexCorpus),
	)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
