package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

// Client talks to the Ollama HTTP API. Every request goes through the
// resilience executor when one is configured.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

var _ ports.StreamingGenerator = (*Generator)(nil)

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// GenerateStream streams tokens to onToken. A stream is not retried once the
// first token has been delivered.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": true,
	}

	var out strings.Builder
	delivered := false
	classify := func(err error) resilience.ErrorClassification {
		class := classifyOllamaError(err)
		if delivered {
			class.Retryable = false
		}
		return class
	}
	err := g.client.callWith(ctx, "generate_stream", func(ctx context.Context) error {
		return g.client.postStream(ctx, "/api/generate", reqBody, func(token string) error {
			delivered = true
			out.WriteString(token)
			return onToken(token)
		})
	}, classify)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.callWith(ctx, operation, fn, classifyOllamaError)
}

func (c *Client) callWith(ctx context.Context, operation string, fn func(context.Context) error, classifier resilience.ErrorClassifier) error {
	if c.executor == nil {
		return resilience.WrapTemporary("ollama "+operation, fn(ctx), classifier)
	}
	err := c.executor.Execute(ctx, "ollama."+operation, fn, classifier)
	return resilience.WrapTemporary("ollama "+operation, err, classifier)
}
