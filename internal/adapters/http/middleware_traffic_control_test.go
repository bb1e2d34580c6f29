package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	env := newTestEnv(t, config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	}, false)

	ask := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"Who is the plaintiff?"}`))
		res := httptest.NewRecorder()
		env.handler.ServeHTTP(res, req)
		return res
	}

	if res := ask(); res.Code != http.StatusOK {
		t.Fatalf("first question expected 200, got %d: %s", res.Code, res.Body.String())
	}
	res := ask()
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("second question expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", res.Header().Get("Retry-After"))
	}
	if got := len(env.inquiry.Results()); got != 1 {
		t.Fatalf("rejected question must not be answered, got %d results", got)
	}

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s must bypass the limiter, got %d", path, rec.Code)
		}
	}
}

// blockingInquiry holds every Ask until release is closed.
type blockingInquiry struct {
	ports.InquiryService
	started chan struct{}
	release chan struct{}
}

func (b *blockingInquiry) Ask(ctx context.Context, question string) (*domain.InquiryResult, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &domain.InquiryResult{ID: "r1", Kind: domain.InquiryFollowUp, Question: question, Answer: "John Smith"}, nil
}

func TestBackpressureRejectsQuestionsWhenSaturated(t *testing.T) {
	inquiry := &blockingInquiry{started: make(chan struct{}, 1), release: make(chan struct{})}
	handler := NewRouter(config.Config{APIMaxInFlight: 1}, inquiry, nil, nil, nil).Handler()
	done := make(chan int, 1)

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"Who is the plaintiff?"}`))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()
	<-inquiry.started

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"What damages are sought?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is busy, got %d", res.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if body["error"] == "" || body["error"] == nil {
		t.Fatalf("expected overload error message, got %v", body)
	}

	close(inquiry.release)
	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("first question expected 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first question")
	}
}
