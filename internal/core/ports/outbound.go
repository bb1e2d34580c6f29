package ports

import (
	"context"
	"io"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// Embedder turns text into fixed-length vectors. Identical text yields identical vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator produces prose from a prompt. It may be unreachable.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamingGenerator is implemented by generators that can emit tokens as they arrive.
type StreamingGenerator interface {
	TextGenerator
	GenerateStream(ctx context.Context, prompt string, onToken func(string) error) (string, error)
}

// SearchIndex is an immutable, built index. Retrieve is safe for concurrent use.
type SearchIndex interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedItem, error)
	Size() int
}

// IndexBuilder builds a SearchIndex for one retrieval algorithm.
type IndexBuilder interface {
	Name() string
	Build(ctx context.Context, chunks []domain.Chunk) (SearchIndex, error)
}

// HybridRetriever runs every enabled algorithm and merges their results.
// Failures are reported inside the result, never as an error.
type HybridRetriever interface {
	Retrieve(ctx context.Context, query string, k int) domain.MergedRetrievalResult
}

// ResultRepository persists answered inquiries.
type ResultRepository interface {
	Save(ctx context.Context, result domain.InquiryResult) error
	SetIncluded(ctx context.Context, id string, included bool) error
	List(ctx context.Context) ([]domain.InquiryResult, error)
}

// ObjectStorage stores export files and corpus sources.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Chunker splits raw text into chunk-sized passages.
type Chunker interface {
	Split(text string) []string
}

// QuestionQueue delivers follow-up questions and carries answers back.
type QuestionQueue interface {
	SubscribeQuestions(ctx context.Context, handler func(context.Context, []byte) ([]byte, error)) error
}
