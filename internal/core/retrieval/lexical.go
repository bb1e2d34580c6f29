package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

const (
	bm25K1    = 1.5
	bm25B     = 0.75
	bm25Delta = 1.0
)

// LexicalRetriever ranks chunks with BM25+. The delta term keeps long chunks
// that mention a rare term only once from being scored close to zero.
type LexicalRetriever struct {
	index atomic.Pointer[lexicalIndex]
}

var (
	_ ports.IndexBuilder = (*LexicalRetriever)(nil)
	_ ports.SearchIndex  = (*lexicalIndex)(nil)
)

func NewLexicalRetriever() *LexicalRetriever {
	return &LexicalRetriever{}
}

func (r *LexicalRetriever) Name() string { return domain.AlgorithmLexical }

func (r *LexicalRetriever) Build(_ context.Context, chunks []domain.Chunk) (ports.SearchIndex, error) {
	return buildLexicalIndex(chunks)
}

// Index builds a new index and swaps it in. An empty corpus clears the index.
func (r *LexicalRetriever) Index(ctx context.Context, chunks []domain.Chunk) error {
	idx, err := buildLexicalIndex(chunks)
	if err != nil {
		r.index.Store(nil)
		return err
	}
	r.index.Store(idx)
	return nil
}

func (r *LexicalRetriever) IsIndexed() bool {
	return r.index.Load() != nil
}

func (r *LexicalRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedItem, error) {
	idx := r.index.Load()
	if idx == nil {
		return nil, domain.WrapError(domain.ErrNotIndexed, "lexical retrieve", errors.New("index has not been built"))
	}
	return idx.Retrieve(ctx, query, k)
}

type lexicalIndex struct {
	chunks    []domain.Chunk
	termFreq  []map[string]int
	docLen    []int
	docFreq   map[string]int
	avgDocLen float64
}

func buildLexicalIndex(chunks []domain.Chunk) (*lexicalIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "lexical index", errors.New("no chunks to index"))
	}

	idx := &lexicalIndex{
		chunks:   append([]domain.Chunk(nil), chunks...),
		termFreq: make([]map[string]int, len(chunks)),
		docLen:   make([]int, len(chunks)),
		docFreq:  make(map[string]int, 256),
	}

	total := 0
	for i, chunk := range idx.chunks {
		tokens := Tokenize(chunk.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			idx.docFreq[term]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = len(tokens)
		total += len(tokens)
	}

	idx.avgDocLen = float64(total) / float64(len(idx.chunks))
	if idx.avgDocLen == 0 {
		idx.avgDocLen = 1
	}
	return idx, nil
}

func (idx *lexicalIndex) Size() int { return len(idx.chunks) }

func (idx *lexicalIndex) idf(term string) float64 {
	df := idx.docFreq[term]
	if df == 0 {
		return 0
	}
	return math.Log(float64(len(idx.chunks)+1) / float64(df))
}

// score sums BM25+ contributions of query terms present in chunk i.
func (idx *lexicalIndex) score(i int, terms []string) (float64, []string) {
	tf := idx.termFreq[i]
	norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLen[i])/idx.avgDocLen)

	var total float64
	var matched []string
	for _, term := range terms {
		freq := tf[term]
		if freq == 0 {
			continue
		}
		f := float64(freq)
		total += idx.idf(term) * (bm25Delta + f*(bm25K1+1)/(f+norm))
		matched = append(matched, term)
	}
	return total, matched
}

type lexicalHit struct {
	pos     int
	raw     float64
	matched []string
}

func (idx *lexicalIndex) Retrieve(_ context.Context, query string, k int) ([]domain.RetrievedItem, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lexical retrieve", fmt.Errorf("k must be positive, got %d", k))
	}

	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	hits := make([]lexicalHit, 0, len(idx.chunks))
	for i := range idx.chunks {
		raw, matched := idx.score(i, terms)
		if raw <= 0 {
			continue
		}
		hits = append(hits, lexicalHit{pos: i, raw: raw, matched: matched})
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// hits are in corpus order, so a stable sort keeps that order on ties.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].raw > hits[j].raw
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	maxRaw := hits[0].raw
	out := make([]domain.RetrievedItem, 0, len(hits))
	for _, h := range hits {
		item := domain.NewRetrievedItem(idx.chunks[h.pos], domain.AlgorithmLexical, h.raw/(h.raw+maxRaw), h.raw)
		item.Debug = &domain.DebugInfo{MatchedTerms: h.matched}
		out = append(out, item)
	}
	return out, nil
}
