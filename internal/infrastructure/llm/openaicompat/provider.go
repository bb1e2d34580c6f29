// Package openaicompat provides embedding and generation over any
// OpenAI-compatible endpoint (vLLM, LM Studio, llama.cpp server, OpenAI).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL        string
	APIKey         string
	GenModel       string
	EmbeddingModel string
}

func (c Config) token() string {
	if strings.TrimSpace(c.APIKey) == "" {
		// local servers accept any token
		return "none"
	}
	return c.APIKey
}

type Embedder struct {
	embedder embeddings.Embedder
	executor *resilience.Executor
	logger   *slog.Logger
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg Config, executor *resilience.Executor) (*Embedder, error) {
	if cfg.BaseURL == "" || cfg.EmbeddingModel == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openai embedder", errors.New("base url and embedding model are required"))
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.token()),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{
		embedder: embedder,
		executor: executor,
		logger:   slog.Default().With("component", "openai_embedder"),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	err := execute(ctx, e.executor, "openai.embed", func(ctx context.Context) error {
		vectors, err := e.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		out = vectors
		return nil
	})
	if err != nil {
		e.logger.Error("embed_failed", "count", len(texts), "error", err)
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d inputs", len(out), len(texts))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type Generator struct {
	model    llms.Model
	executor *resilience.Executor
	logger   *slog.Logger
}

var _ ports.StreamingGenerator = (*Generator)(nil)

func NewGenerator(cfg Config, executor *resilience.Executor) (*Generator, error) {
	if cfg.BaseURL == "" || cfg.GenModel == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openai generator", errors.New("base url and model are required"))
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.token()),
		openai.WithModel(cfg.GenModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai chat client: %w", err)
	}
	return &Generator{
		model:    client,
		executor: executor,
		logger:   slog.Default().With("component", "openai_generator"),
	}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, nil)
}

// GenerateStream delivers content chunks to onToken as they arrive. Once a
// chunk has been delivered the call is not retried.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	return g.generate(ctx, prompt, onToken)
}

func (g *Generator) generate(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	options := []llms.CallOption{llms.WithTemperature(0.0)}

	delivered := false
	if onToken != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			delivered = true
			return onToken(string(chunk))
		}))
	}

	var answer string
	op := func(ctx context.Context) error {
		if delivered {
			return errors.New("stream interrupted after partial output")
		}
		resp, err := g.model.GenerateContent(ctx, content, options...)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices returned")
		}
		answer = strings.TrimSpace(resp.Choices[0].Content)
		return nil
	}

	if err := execute(ctx, g.executor, "openai.generate", op); err != nil {
		g.logger.Warn("generate_failed", "streaming", onToken != nil, "error", err)
		return "", err
	}
	return answer, nil
}

func execute(ctx context.Context, executor *resilience.Executor, operation string, fn func(context.Context) error) error {
	if executor == nil {
		return resilience.WrapTemporary(operation, fn(ctx), classifyError)
	}
	err := executor.Execute(ctx, operation, fn, classifyError)
	return resilience.WrapTemporary(operation, err, classifyError)
}

// classifyError retries transport-level failures. langchaingo does not
// expose HTTP status codes, so the message is inspected.
func classifyError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) bool {
		msg := strings.ToLower(err.Error())
		for _, marker := range []string{"connection refused", "connection reset", "eof", "429", "502", "503", "504", "timeout"} {
			if strings.Contains(msg, marker) {
				return true
			}
		}
		return false
	})
}
