package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

type inquiryFake struct {
	asked []string
	err   error
}

func (f *inquiryFake) Ask(_ context.Context, question string) (*domain.InquiryResult, error) {
	f.asked = append(f.asked, question)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InquiryResult{ID: "r-1", Question: question, Answer: "John Smith.", Included: true}, nil
}

func (f *inquiryFake) AskStream(ctx context.Context, question string, _ func(domain.AnswerChunk) error) (*domain.InquiryResult, error) {
	return f.Ask(ctx, question)
}

func (f *inquiryFake) RunDefaultQuestions(context.Context) ([]domain.InquiryResult, error) {
	return nil, nil
}

func (f *inquiryFake) Results() []domain.InquiryResult { return nil }

func (f *inquiryFake) SetIncluded(context.Context, string, bool) error { return nil }

func TestQuestionHandlerRepliesWithResult(t *testing.T) {
	svc := &inquiryFake{}
	handler := QuestionHandler(svc)

	raw, err := handler(context.Background(), []byte(`{"question":"Who is the plaintiff?"}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	result, err := DecodeReply(raw)
	if err != nil {
		t.Fatalf("DecodeReply() error = %v", err)
	}
	if result.Answer != "John Smith." || len(svc.asked) != 1 || svc.asked[0] != "Who is the plaintiff?" {
		t.Fatalf("unexpected result %+v asked=%v", result, svc.asked)
	}
}

func TestQuestionHandlerReportsFailures(t *testing.T) {
	svc := &inquiryFake{err: errors.New("retrieval down")}
	handler := QuestionHandler(svc)

	raw, err := handler(context.Background(), []byte(`{"question":"Who?"}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if _, err := DecodeReply(raw); err == nil || err.Error() != "worker: retrieval down" {
		t.Fatalf("expected worker error, got %v", err)
	}

	raw, err = handler(context.Background(), []byte(`not json`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	var reply QuestionReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Error == "" {
		t.Fatalf("expected decode error reply, got %s", raw)
	}
	if len(svc.asked) != 1 {
		t.Fatalf("malformed request must not reach the service, asked=%v", svc.asked)
	}
}

func TestDecodeReplyRejectsEmptyReply(t *testing.T) {
	if _, err := DecodeReply([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(fmt.Errorf("nats request: %w", nats.ErrNoResponders)); !c.Retryable {
		t.Fatalf("expected no responders to be retryable")
	}
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("expected cancellation to be neither retried nor recorded, got %+v", c)
	}
	if c := classifyNATSError(errors.New("bad payload")); c.Retryable {
		t.Fatalf("expected unknown errors to be permanent")
	}
	for _, err := range []error{context.DeadlineExceeded, fmt.Errorf("nats request: %w", nats.ErrTimeout)} {
		if c := classifyNATSError(err); c.Retryable || !c.RecordFailure {
			t.Fatalf("expected timed-out request %v to be recorded but not resent, got %+v", err, c)
		}
	}
}

func TestTimedOutRequestIsPublishedOnce(t *testing.T) {
	exec := resilience.NewExecutor(resilience.Config{
		CallTimeout:         50 * time.Millisecond,
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})

	published := 0
	err := exec.Execute(context.Background(), RequestOperation, func(ctx context.Context) error {
		published++
		<-ctx.Done()
		return fmt.Errorf("nats request: %w", ctx.Err())
	}, classifyNATSError)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if published != 1 {
		t.Fatalf("expected the question to be published once, got %d", published)
	}
	if wrapped := wrapTemporaryIfNeeded(err); !errors.Is(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected timed-out request to surface as temporary, got %v", wrapped)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !errors.Is(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrTimeout) {
		t.Fatalf("expected temporary wrap preserving cause, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(errors.New("permanent")); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be tagged temporary")
	}
}
