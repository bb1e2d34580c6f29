package ports

import (
	"context"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// InquiryService is the inbound contract for answering questions against the indexed corpus.
type InquiryService interface {
	Ask(ctx context.Context, question string) (*domain.InquiryResult, error)
	AskStream(ctx context.Context, question string, onChunk func(domain.AnswerChunk) error) (*domain.InquiryResult, error)
	RunDefaultQuestions(ctx context.Context) ([]domain.InquiryResult, error)
	Results() []domain.InquiryResult
	SetIncluded(ctx context.Context, id string, included bool) error
}

// FlowService is the inbound contract for the branching question flow.
type FlowService interface {
	Current() (domain.QuestionNode, bool)
	AnswerCurrent(ctx context.Context) (*domain.FlowStep, error)
	RecordAnswer(questionID, value, text string, citations []string) domain.Transition
	State() domain.FlowState
	Progress() domain.FlowProgress
	Reset()
	// Questions lists every question of the loaded graph in definition order.
	Questions() []domain.QuestionNode
}

// CorpusService indexes chunk inputs and reports per-algorithm state.
type CorpusService interface {
	IndexDocuments(ctx context.Context, inputs []domain.ChunkInput) (domain.IndexReport, error)
	Status() []domain.AlgorithmState
	Enable(name string) error
}
