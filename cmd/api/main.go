package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/case-inquiry/internal/adapters/http"
	"github.com/kirillkom/case-inquiry/internal/bootstrap"
	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/observability/logging"
	"github.com/kirillkom/case-inquiry/internal/observability/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.NewJSONLogger("api", "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithLogger(logger),
		bootstrap.WithMetrics("api", httpMetrics.Registry()),
	)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	report, err := app.IndexCorpus(ctx)
	if err != nil {
		logger.Warn("corpus_index_failed", "error", err)
	} else {
		logger.Info("corpus_indexed", "chunks", report.Chunks, "indexed", report.Indexed())
	}

	router := httpadapter.NewRouter(cfg, app.Inquiry, app.FlowService(), app.Corpus, app.Exporter,
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithLogger(logger),
		httpadapter.WithCorpusReloader(app.IndexCorpus),
	)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.GenerationTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
