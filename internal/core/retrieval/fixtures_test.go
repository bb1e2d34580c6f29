package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

func caseChunks() []domain.Chunk {
	return domain.BuildChunks(caseInputs())
}

func caseInputs() []domain.ChunkInput {
	return []domain.ChunkInput{
		{Filename: "complaint.txt", ChunkNum: 0, SectionName: "Parties", Text: "The plaintiff John Smith filed a complaint against the defendant."},
		{Filename: "complaint.txt", ChunkNum: 1, SectionName: "Parties", Text: "The defendant XYZ Corporation denies all allegations."},
		{Filename: "complaint.txt", ChunkNum: 2, SectionName: "Relief", Text: "Damages are claimed in the amount of $500,000."},
		{Filename: "complaint.txt", ChunkNum: 3, SectionName: "Facts", Text: "The incident occurred on December 1, 2023."},
	}
}

// keywordEmbedder maps text onto a fixed vocabulary, one dimension per keyword.
type keywordEmbedder struct {
	vocab []string

	mu         sync.Mutex
	queryCalls int
	batchCalls int
	err        error
	block      bool
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vocab: []string{"plaintiff", "defendant", "damages", "incident"}}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.vocab))
	for i, word := range e.vocab {
		if strings.Contains(lower, word) {
			v[i] = 1
		}
	}
	return v
}

func (e *keywordEmbedder) wait(ctx context.Context) error {
	if e.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return e.err
}

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchCalls++
	e.mu.Unlock()
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) QueryCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryCalls
}

var errProviderDown = errors.New("provider down")
