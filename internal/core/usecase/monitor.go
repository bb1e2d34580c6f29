package usecase

import (
	"time"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// InquiryMonitor observes answered questions.
type InquiryMonitor interface {
	QuestionAnswered(kind domain.InquiryKind, mode domain.SynthesisMode, fellBack bool, sources int, duration time.Duration)
}

type noopInquiryMonitor struct{}

func (noopInquiryMonitor) QuestionAnswered(domain.InquiryKind, domain.SynthesisMode, bool, int, time.Duration) {
}
