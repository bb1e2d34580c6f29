package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

const defaultTopK = 5

type InquiryOption func(*InquiryUseCase)

// WithResultRepository persists every result. Persistence failures are logged
// and do not fail the inquiry.
func WithResultRepository(repo ports.ResultRepository) InquiryOption {
	return func(uc *InquiryUseCase) {
		uc.repo = repo
	}
}

func WithDefaultQuestions(questions []domain.DefaultQuestion) InquiryOption {
	return func(uc *InquiryUseCase) {
		uc.defaults = append([]domain.DefaultQuestion(nil), questions...)
	}
}

func WithTopK(k int) InquiryOption {
	return func(uc *InquiryUseCase) {
		if k > 0 {
			uc.topK = k
		}
	}
}

func WithInquiryMonitor(m InquiryMonitor) InquiryOption {
	return func(uc *InquiryUseCase) {
		if m != nil {
			uc.monitor = m
		}
	}
}

func WithInquiryLogger(logger *slog.Logger) InquiryOption {
	return func(uc *InquiryUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

// InquiryUseCase answers questions against the indexed corpus and keeps the
// running list of results.
type InquiryUseCase struct {
	retriever ports.HybridRetriever
	synth     *Synthesizer
	repo      ports.ResultRepository
	defaults  []domain.DefaultQuestion
	topK      int
	monitor   InquiryMonitor
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	results []domain.InquiryResult
}

var _ ports.InquiryService = (*InquiryUseCase)(nil)

func NewInquiryUseCase(retriever ports.HybridRetriever, synth *Synthesizer, opts ...InquiryOption) *InquiryUseCase {
	uc := &InquiryUseCase{
		retriever: retriever,
		synth:     synth,
		topK:      defaultTopK,
		monitor:   noopInquiryMonitor{},
		logger:    slog.Default().With("component", "inquiry"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ask answers an ad-hoc follow-up question.
func (uc *InquiryUseCase) Ask(ctx context.Context, question string) (*domain.InquiryResult, error) {
	return uc.answer(ctx, domain.InquiryFollowUp, "", question, nil)
}

func (uc *InquiryUseCase) AskStream(ctx context.Context, question string, onChunk func(domain.AnswerChunk) error) (*domain.InquiryResult, error) {
	return uc.answer(ctx, domain.InquiryFollowUp, "", question, onChunk)
}

// RunDefaultQuestions answers the configured default questions in order.
// It stops at the first caller cancellation and returns what was answered.
func (uc *InquiryUseCase) RunDefaultQuestions(ctx context.Context) ([]domain.InquiryResult, error) {
	out := make([]domain.InquiryResult, 0, len(uc.defaults))
	for _, q := range uc.defaults {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := uc.answer(ctx, domain.InquiryDefault, q.ID, q.Text, nil)
		if err != nil {
			return out, fmt.Errorf("default question %s: %w", q.ID, err)
		}
		out = append(out, *res)
	}
	return out, nil
}

func (uc *InquiryUseCase) DefaultQuestions() []domain.DefaultQuestion {
	return append([]domain.DefaultQuestion(nil), uc.defaults...)
}

func (uc *InquiryUseCase) answer(
	ctx context.Context,
	kind domain.InquiryKind,
	questionID string,
	question string,
	onChunk func(domain.AnswerChunk) error,
) (*domain.InquiryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is empty"))
	}

	started := time.Now()
	retrieved := uc.retriever.Retrieve(ctx, question, uc.topK)
	if retrieved.Empty() {
		uc.logger.Info("retrieval_empty", "question_id", questionID, "reason", retrieved.Reason)
	}

	contextText := FormatContext(retrieved.Items)
	var synthesis Synthesis
	if onChunk != nil {
		synthesis = uc.synth.SynthesizeStream(ctx, question, contextText, onChunk)
	} else {
		synthesis = uc.synth.Synthesize(ctx, question, contextText)
	}

	result := domain.InquiryResult{
		ID:           uuid.NewString(),
		Kind:         kind,
		QuestionID:   questionID,
		Question:     question,
		Answer:       synthesis.Answer,
		Sources:      sourcesOf(retrieved.Items),
		CitationText: FormatCitations(retrieved.Items),
		Confidence:   Confidence(retrieved.Items),
		Mode:         synthesis.Mode,
		FellBack:     synthesis.FellBack,
		Included:     true,
		CreatedAt:    uc.now().UTC(),
	}
	uc.record(ctx, result)

	elapsed := time.Since(started)
	uc.monitor.QuestionAnswered(kind, synthesis.Mode, synthesis.FellBack, len(result.Sources), elapsed)
	uc.logger.Info("question_answered",
		"result_id", result.ID,
		"kind", kind,
		"question_id", questionID,
		"sources", len(result.Sources),
		"mode", synthesis.Mode,
		"fell_back", synthesis.FellBack,
		"confidence", result.Confidence,
		"duration_ms", elapsed.Milliseconds(),
	)
	return &result, nil
}

func (uc *InquiryUseCase) record(ctx context.Context, result domain.InquiryResult) {
	uc.mu.Lock()
	uc.results = append(uc.results, result)
	uc.mu.Unlock()

	if uc.repo == nil {
		return
	}
	if err := uc.repo.Save(ctx, result); err != nil {
		uc.logger.Warn("result_persist_failed", "result_id", result.ID, "error", err)
	}
}

// Results returns every recorded result in the order it was produced.
func (uc *InquiryUseCase) Results() []domain.InquiryResult {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]domain.InquiryResult, len(uc.results))
	copy(out, uc.results)
	return out
}

func (uc *InquiryUseCase) SetIncluded(ctx context.Context, id string, included bool) error {
	uc.mu.Lock()
	found := false
	for i := range uc.results {
		if uc.results[i].ID == id {
			uc.results[i].Included = included
			found = true
			break
		}
	}
	uc.mu.Unlock()

	if !found {
		return domain.WrapError(domain.ErrResultNotFound, "set included", fmt.Errorf("result %q", id))
	}
	if uc.repo != nil {
		if err := uc.repo.SetIncluded(ctx, id, included); err != nil {
			return fmt.Errorf("persist inclusion flag: %w", err)
		}
	}
	return nil
}

// Restore loads previously persisted results, replacing the in-memory list.
func (uc *InquiryUseCase) Restore(ctx context.Context) (int, error) {
	if uc.repo == nil {
		return 0, nil
	}
	results, err := uc.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list persisted results: %w", err)
	}
	uc.mu.Lock()
	uc.results = results
	uc.mu.Unlock()
	return len(results), nil
}

// FormatContext renders merged items as citation-annotated blocks, one per
// chunk, each prefixed with "[filename, section]:".
func FormatContext(items []domain.MergedItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(citationLabel(it))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(it.Text))
	}
	return b.String()
}

func citationLabel(it domain.MergedItem) string {
	if it.SectionName == "" {
		return "[" + it.Filename + "]"
	}
	return "[" + it.Filename + ", " + it.SectionName + "]"
}

// FormatCitations lists sources as "filename, section (score)" joined by "; ".
func FormatCitations(items []domain.MergedItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		label := it.Filename
		if it.SectionName != "" {
			label += ", " + it.SectionName
		}
		parts = append(parts, fmt.Sprintf("%s (%.2f)", label, it.CombinedScore))
	}
	return strings.Join(parts, "; ")
}

// Confidence is the mean combined score of items, or 0 when there are none.
func Confidence(items []domain.MergedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.CombinedScore
	}
	return domain.Clamp01(sum / float64(len(items)))
}

func sourcesOf(items []domain.MergedItem) []domain.SourceCitation {
	out := make([]domain.SourceCitation, 0, len(items))
	for _, it := range items {
		out = append(out, domain.SourceCitation{
			ChunkID:       it.ChunkID,
			Filename:      it.Filename,
			SectionName:   it.SectionName,
			CombinedScore: it.CombinedScore,
		})
	}
	return out
}
