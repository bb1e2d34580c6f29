package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

const (
	defaultEmbedTimeout   = 30 * time.Second
	defaultEmbedBatchSize = 32
	defaultEmbedWorkers   = 4
	defaultQueryCacheSize = 256
)

// SemanticRetriever ranks chunks by cosine similarity between the query
// embedding and each chunk embedding. Query embeddings are cached by text.
type SemanticRetriever struct {
	embedder  ports.Embedder
	timeout   time.Duration
	batchSize int
	workers   int
	cacheSize int
	cache     *lru.Cache[string, []float32]
	logger    *slog.Logger

	index atomic.Pointer[semanticIndex]
}

var (
	_ ports.IndexBuilder = (*SemanticRetriever)(nil)
	_ ports.SearchIndex  = (*semanticIndex)(nil)
)

type SemanticOption func(*SemanticRetriever)

// WithEmbedTimeout bounds every single call to the embedding provider.
func WithEmbedTimeout(d time.Duration) SemanticOption {
	return func(r *SemanticRetriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithEmbedBatchSize(n int) SemanticOption {
	return func(r *SemanticRetriever) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithEmbedWorkers(n int) SemanticOption {
	return func(r *SemanticRetriever) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithQueryCacheSize(n int) SemanticOption {
	return func(r *SemanticRetriever) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

func WithSemanticLogger(logger *slog.Logger) SemanticOption {
	return func(r *SemanticRetriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewSemanticRetriever(embedder ports.Embedder, opts ...SemanticOption) (*SemanticRetriever, error) {
	if embedder == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new semantic retriever", errors.New("embedder is required"))
	}
	r := &SemanticRetriever{
		embedder:  embedder,
		timeout:   defaultEmbedTimeout,
		batchSize: defaultEmbedBatchSize,
		workers:   defaultEmbedWorkers,
		cacheSize: defaultQueryCacheSize,
		logger:    slog.Default().With("component", "semantic_retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.New[string, []float32](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

func (r *SemanticRetriever) Name() string { return domain.AlgorithmSemantic }

func (r *SemanticRetriever) Build(ctx context.Context, chunks []domain.Chunk) (ports.SearchIndex, error) {
	return r.buildIndex(ctx, chunks)
}

// Index embeds chunks and swaps the new index in. On failure the previous
// index is cleared so stale vectors are never searched.
func (r *SemanticRetriever) Index(ctx context.Context, chunks []domain.Chunk) error {
	idx, err := r.buildIndex(ctx, chunks)
	if err != nil {
		r.index.Store(nil)
		return err
	}
	r.index.Store(idx)
	return nil
}

func (r *SemanticRetriever) IsIndexed() bool {
	return r.index.Load() != nil
}

func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedItem, error) {
	idx := r.index.Load()
	if idx == nil {
		return nil, domain.WrapError(domain.ErrNotIndexed, "semantic retrieve", errors.New("index has not been built"))
	}
	return idx.Retrieve(ctx, query, k)
}

func (r *SemanticRetriever) buildIndex(ctx context.Context, chunks []domain.Chunk) (*semanticIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "semantic index", errors.New("no chunks to index"))
	}

	started := time.Now()
	vectors, err := r.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, domain.WrapError(domain.ErrProviderFailure, "semantic index",
				fmt.Errorf("chunk %s: embedding dimension %d, expected %d", chunks[i].ID, len(v), dim))
		}
		norms[i] = vectorNorm(v)
	}

	r.logger.Info("semantic_index_built",
		"chunks", len(chunks),
		"dimension", dim,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &semanticIndex{
		owner:   r,
		chunks:  append([]domain.Chunk(nil), chunks...),
		vectors: vectors,
		norms:   norms,
		dim:     dim,
	}, nil
}

// embedChunks embeds chunk texts in batches on a bounded worker pool. The
// first failing batch cancels the rest.
func (r *SemanticRetriever) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return nil, fmt.Errorf("create embed pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += r.batchSize {
		end := min(start+r.batchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			out, err := r.embedBatch(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			copy(vectors[start:end], out)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embed batch: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, domain.WrapError(domain.ErrProviderFailure, "embed chunks", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrProviderFailure, "embed chunks", err)
	}
	return vectors, nil
}

func (r *SemanticRetriever) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.embedder.Embed(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}

func (r *SemanticRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, ok := r.cache.Get(query); ok {
		return v, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.embedder.EmbedQuery(callCtx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProviderFailure, "embed query", err)
	}
	r.cache.Add(query, v)
	return v, nil
}

type semanticIndex struct {
	owner   *SemanticRetriever
	chunks  []domain.Chunk
	vectors [][]float32
	norms   []float64
	dim     int
}

func (idx *semanticIndex) Size() int { return len(idx.chunks) }

type semanticHit struct {
	pos        int
	similarity float64
}

func (idx *semanticIndex) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedItem, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "semantic retrieve", fmt.Errorf("k must be positive, got %d", k))
	}

	qv, err := idx.owner.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(qv) != idx.dim {
		return nil, domain.WrapError(domain.ErrProviderFailure, "semantic retrieve",
			fmt.Errorf("query embedding dimension %d, index dimension %d", len(qv), idx.dim))
	}
	qNorm := vectorNorm(qv)
	if qNorm == 0 {
		return nil, nil
	}

	hits := make([]semanticHit, 0, len(idx.chunks))
	for i, v := range idx.vectors {
		if idx.norms[i] == 0 {
			continue
		}
		sim := dot(qv, v) / (qNorm * idx.norms[i])
		if sim <= 0 || math.IsNaN(sim) {
			continue
		}
		hits = append(hits, semanticHit{pos: i, similarity: sim})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].similarity > hits[j].similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]domain.RetrievedItem, 0, len(hits))
	for _, h := range hits {
		item := domain.NewRetrievedItem(idx.chunks[h.pos], domain.AlgorithmSemantic, h.similarity, h.similarity)
		item.Debug = &domain.DebugInfo{Similarity: h.similarity}
		out = append(out, item)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
