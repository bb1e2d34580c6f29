package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/case-inquiry/internal/bootstrap"
	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/queue/nats"
	"github.com/kirillkom/case-inquiry/internal/observability/logging"
	"github.com/kirillkom/case-inquiry/internal/observability/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.NewJSONLogger("worker", "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithLogger(logger),
		bootstrap.WithMetrics("worker", workerMetrics.Registry()),
	)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	report, err := app.IndexCorpus(ctx)
	if err != nil {
		logger.Error("corpus_index_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("corpus_indexed", "chunks", report.Chunks, "indexed", report.Indexed())

	queue, err := app.ConnectQueue()
	if err != nil {
		logger.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	answer := nats.QuestionHandler(observedInquiry{
		InquiryService: app.Inquiry,
		metrics:        workerMetrics,
		logger:         logger,
	})
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeQuestions(ctx, answer)
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// observedInquiry records every queued question in the worker metrics.
type observedInquiry struct {
	ports.InquiryService
	metrics *metrics.WorkerMetrics
	logger  *slog.Logger
}

func (o observedInquiry) Ask(ctx context.Context, question string) (*domain.InquiryResult, error) {
	o.metrics.StartQuestion()
	started := time.Now()
	result, err := o.InquiryService.Ask(ctx, question)
	o.metrics.FinishQuestion("worker", time.Since(started), err)
	if err != nil {
		o.logger.Warn("question_failed", "error", err)
	}
	return result, err
}
