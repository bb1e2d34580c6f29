package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/flow"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

// FlowUseCase answers the branching question flow against the corpus.
type FlowUseCase struct {
	machine *flow.Machine
	inquiry *InquiryUseCase
	logger  *slog.Logger

	// serializes AnswerCurrent; each answer depends on the previous one
	mu sync.Mutex
}

var _ ports.FlowService = (*FlowUseCase)(nil)

func NewFlowUseCase(machine *flow.Machine, inquiry *InquiryUseCase, logger *slog.Logger) *FlowUseCase {
	if logger == nil {
		logger = slog.Default().With("component", "flow")
	}
	return &FlowUseCase{machine: machine, inquiry: inquiry, logger: logger}
}

func (uc *FlowUseCase) Current() (domain.QuestionNode, bool) {
	return uc.machine.Current()
}

// AnswerCurrent retrieves and synthesizes an answer for the current question,
// records it and advances the flow.
func (uc *FlowUseCase) AnswerCurrent(ctx context.Context) (*domain.FlowStep, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	node, ok := uc.machine.Current()
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer current question", errors.New("flow is complete"))
	}

	result, err := uc.inquiry.answer(ctx, domain.InquiryFlow, node.ID, node.Text, nil)
	if err != nil {
		return nil, err
	}

	value := AnswerValue(node, result.Answer)
	citations := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		citations = append(citations, s.ChunkID)
	}

	tr := uc.machine.RecordAnswer(node.ID, value, result.Answer, citations)
	step := &domain.FlowStep{
		Result:     *result,
		Transition: tr,
		Progress:   uc.machine.Progress(),
	}
	if next, ok := uc.machine.Current(); ok {
		step.Next = &next
	}
	return step, nil
}

func (uc *FlowUseCase) RecordAnswer(questionID, value, text string, citations []string) domain.Transition {
	return uc.machine.RecordAnswer(questionID, value, text, citations)
}

func (uc *FlowUseCase) State() domain.FlowState { return uc.machine.State() }

func (uc *FlowUseCase) Progress() domain.FlowProgress { return uc.machine.Progress() }

func (uc *FlowUseCase) Reset() { uc.machine.Reset() }

func (uc *FlowUseCase) Questions() []domain.QuestionNode { return uc.machine.Graph().Questions() }

// AnswerValue derives the value recorded for an answer. For a classification
// question it is the option whose value or label appears earliest in the
// answer as whole words; if none does, the trimmed answer is returned and the
// flow applies its default branch. Extraction answers are recorded verbatim.
func AnswerValue(node domain.QuestionNode, answer string) string {
	answer = strings.TrimSpace(answer)
	if node.Kind != domain.QuestionClassification {
		return answer
	}

	words := splitWordsLower(answer)
	best, bestPos := "", -1
	for _, opt := range node.Options {
		for _, candidate := range []string{opt.Value, opt.Label} {
			pos := indexWords(words, splitWordsLower(candidate))
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos {
				best, bestPos = opt.Value, pos
			}
		}
	}
	if bestPos < 0 {
		return answer
	}
	return best
}

func indexWords(words, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return -1
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j := range phrase {
			if words[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
