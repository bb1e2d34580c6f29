package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/flow"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/core/retrieval"
	"github.com/kirillkom/case-inquiry/internal/core/usecase"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/chunking"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/corpus"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/flowfile"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/queue/nats"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/case-inquiry/internal/observability/metrics"
)

// questionReplyGrace is how much longer a requester waits than the worker's
// own answer budget.
const questionReplyGrace = 10 * time.Second

type App struct {
	Config config.Config
	Logger *slog.Logger

	Corpus   *retrieval.HybridCoordinator
	Inquiry  *usecase.InquiryUseCase
	Flow     *usecase.FlowUseCase
	Exporter *export.Exporter
	Executor *resilience.Executor

	loadCorpus func(context.Context) ([]domain.ChunkInput, error)
	closers    []func()
}

type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	service    string
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers retrieval and answering metrics on registerer.
func WithMetrics(service string, registerer prometheus.Registerer) Option {
	return func(o *options) {
		o.service = service
		o.registerer = registerer
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	app := &App{Config: cfg, Logger: logger}
	logger.Info("bootstrap_config",
		"provider", cfg.Provider,
		"synthesis_mode", cfg.SynthesisMode,
		"semantic_enabled", cfg.SemanticEnabled,
		"corpus_path", cfg.CorpusPath,
		"postgres_dsn", cfg.PostgresDSN,
		"nats_url", cfg.NATSURL,
	)
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	retrievalMonitor := retrieval.NoopMonitor()
	var inquiryOpts []usecase.InquiryOption
	executorOpts := []resilience.ExecutorOption{resilience.WithLogger(logger.With("component", "resilience"))}
	if o.registerer != nil {
		m := metrics.NewInquiryMetrics(o.service, o.registerer)
		retrievalMonitor = m
		inquiryOpts = append(inquiryOpts, usecase.WithInquiryMonitor(m))
		executorOpts = append(executorOpts, resilience.WithStateObserver(m.ProviderBreakerChanged))
	}

	executor := resilience.NewExecutor(resilience.Config{
		CallTimeout: cfg.ProviderTimeout,
		OperationTimeouts: map[string]time.Duration{
			"ollama.generate":        cfg.GenerationTimeout,
			"ollama.generate_stream": cfg.GenerationTimeout,
			"openai.generate":        cfg.GenerationTimeout,
			nats.RequestOperation:    questionTimeout(cfg) + questionReplyGrace,
		},
		RetryMaxAttempts: cfg.ProviderRetryAttempts,
		BreakerEnabled:   cfg.ProviderBreakerEnabled,
	}, executorOpts...)
	app.Executor = executor

	embedder, generator, err := newProvider(cfg, executor)
	if err != nil {
		return nil, err
	}

	builders := []ports.IndexBuilder{retrieval.NewLexicalRetriever()}
	if cfg.SemanticEnabled && embedder != nil {
		semantic, err := retrieval.NewSemanticRetriever(embedder,
			retrieval.WithEmbedTimeout(executor.Budget(providerOperation(cfg, "embed"))),
			retrieval.WithEmbedBatchSize(cfg.EmbedBatchSize),
			retrieval.WithEmbedWorkers(cfg.EmbedWorkers),
			retrieval.WithQueryCacheSize(cfg.QueryCacheSize),
			retrieval.WithSemanticLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("init semantic retriever: %w", err)
		}
		builders = append(builders, semantic)
	}

	mergeCfg := retrieval.DefaultMergeConfig()
	if cfg.MergeConfigPath != "" {
		mergeCfg, err = retrieval.LoadMergeConfigFile(cfg.MergeConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load merge config: %w", err)
		}
	}

	coordinator, err := retrieval.NewHybridCoordinator(builders, retrieval.NewMerger(mergeCfg),
		retrieval.WithCoordinatorLogger(logger),
		retrieval.WithRetrievalTimeout(cfg.RetrievalTimeout),
		retrieval.WithMonitor(retrievalMonitor),
	)
	if err != nil {
		return nil, fmt.Errorf("init hybrid coordinator: %w", err)
	}
	app.Corpus = coordinator

	mode, err := parseSynthesisMode(cfg.SynthesisMode)
	if err != nil {
		return nil, err
	}
	synthOpts := []usecase.SynthesizerOption{
		usecase.WithGenerationTimeout(executor.Budget(providerOperation(cfg, "generate"))),
		usecase.WithSynthesizerLogger(logger),
	}
	if generator != nil {
		synthOpts = append(synthOpts, usecase.WithGenerator(generator))
	}
	synth := usecase.NewSynthesizer(mode, synthOpts...)

	inquiryOpts = append(inquiryOpts,
		usecase.WithTopK(cfg.RetrievalTopK),
		usecase.WithInquiryLogger(logger),
	)
	if cfg.DefaultQuestionsPath != "" {
		questions, err := flowfile.LoadQuestionsFile(cfg.DefaultQuestionsPath)
		switch {
		case err == nil:
			inquiryOpts = append(inquiryOpts, usecase.WithDefaultQuestions(questions))
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("default_questions_missing", "path", cfg.DefaultQuestionsPath)
		default:
			return nil, fmt.Errorf("load default questions: %w", err)
		}
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		repo, err := resultRepository(ctx, db)
		if err != nil {
			return nil, err
		}
		inquiryOpts = append(inquiryOpts, usecase.WithResultRepository(repo))
	}

	inquiry := usecase.NewInquiryUseCase(coordinator, synth, inquiryOpts...)
	if cfg.PostgresDSN != "" {
		restored, err := inquiry.Restore(ctx)
		if err != nil {
			return nil, fmt.Errorf("restore results: %w", err)
		}
		logger.Info("results_restored", "count", restored)
	}
	app.Inquiry = inquiry

	if cfg.FlowConfigPath != "" {
		graph, err := flowfile.LoadFile(cfg.FlowConfigPath)
		switch {
		case err == nil:
			for _, problem := range graph.Problems() {
				logger.Warn("flow_config_problem", "problem", problem)
			}
			app.Flow = usecase.NewFlowUseCase(flow.NewMachine(graph, flow.WithLogger(logger)), inquiry, logger)
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("flow_config_missing", "path", cfg.FlowConfigPath)
		default:
			return nil, fmt.Errorf("load flow: %w", err)
		}
	}

	exportStore, err := localfs.New(cfg.ExportPath)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	app.Exporter = export.NewExporter(exportStore)

	app.loadCorpus, err = newCorpusLoader(cfg, logger)
	if err != nil {
		return nil, err
	}

	ok = true
	return app, nil
}

func resultRepository(ctx context.Context, db *sql.DB) (*postgres.ResultRepository, error) {
	repo := postgres.NewResultRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func questionTimeout(cfg config.Config) time.Duration {
	if cfg.QuestionTimeout > 0 {
		return cfg.QuestionTimeout
	}
	return nats.DefaultHandlerTimeout
}

// providerOperation names an executor operation the way the provider
// adapters do, e.g. "ollama.embed".
func providerOperation(cfg config.Config, op string) string {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" {
		provider = "ollama"
	}
	return provider + "." + op
}

func newProvider(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case "openai":
		pc := openaicompat.Config{
			BaseURL:        cfg.OpenAIBaseURL,
			APIKey:         cfg.OpenAIAPIKey,
			GenModel:       cfg.OpenAIGenModel,
			EmbeddingModel: cfg.OpenAIEmbedModel,
		}
		embedder, err := openaicompat.NewEmbedder(pc, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai embedder: %w", err)
		}
		generator, err := openaicompat.NewGenerator(pc, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai generator: %w", err)
		}
		return embedder, generator, nil
	case "none", "":
		return nil, nil, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "select provider", fmt.Errorf("unknown provider %q", cfg.Provider))
	}
}

func parseSynthesisMode(raw string) (domain.SynthesisMode, error) {
	switch mode := domain.SynthesisMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", domain.SynthesisExtraction:
		return domain.SynthesisExtraction, nil
	case domain.SynthesisGenerative:
		return mode, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "select synthesis mode", fmt.Errorf("unknown mode %q", raw))
	}
}

func newCorpusLoader(cfg config.Config, logger *slog.Logger) (func(context.Context) ([]domain.ChunkInput, error), error) {
	if cfg.CorpusManifestPath != "" {
		path := cfg.CorpusManifestPath
		return func(context.Context) ([]domain.ChunkInput, error) {
			return corpus.LoadManifestFile(path)
		}, nil
	}
	store, err := localfs.New(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("init corpus storage: %w", err)
	}
	loader := corpus.NewDirectoryLoader(store, plaintext.NewExtractor(store), chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), corpus.WithLogger(logger))
	return loader.Load, nil
}

// IndexCorpus loads the configured corpus and indexes it.
func (a *App) IndexCorpus(ctx context.Context) (domain.IndexReport, error) {
	inputs, err := a.loadCorpus(ctx)
	if err != nil {
		return domain.IndexReport{}, fmt.Errorf("load corpus: %w", err)
	}
	return a.Corpus.IndexDocuments(ctx, inputs)
}

// FlowService returns the flow use case, or nil when no flow is configured.
func (a *App) FlowService() ports.FlowService {
	if a.Flow == nil {
		return nil
	}
	return a.Flow
}

// ConnectQueue opens the follow-up question queue; it is closed with the app.
func (a *App) ConnectQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		HandlerTimeout:     questionTimeout(a.Config),
		ResilienceExecutor: a.Executor,
		Logger:             a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init question queue: %w", err)
	}
	a.onClose(queue.Close)
	return queue, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
