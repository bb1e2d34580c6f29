package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

func TestInquiryMetricsRecordsRetrievalAndAnswers(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	m := NewInquiryMetrics("api", httpMetrics.Registry())

	m.IndexBuilt("lexical", 12, 5*time.Millisecond)
	m.AlgorithmDegraded("semantic", "retrieve", errors.New("timeout"))
	m.RetrievalFinished([]domain.AlgorithmOutcome{
		{Algorithm: "lexical", Status: domain.AlgorithmOK, Count: 3},
		{Algorithm: "semantic", Status: domain.AlgorithmDegraded},
	}, 3, 10*time.Millisecond)
	m.RetrievalFinished(nil, 0, time.Millisecond)
	m.QuestionAnswered(domain.InquiryFollowUp, domain.SynthesisGenerative, true, 2, time.Second)

	if got := testutil.ToFloat64(m.indexChunks.WithLabelValues("api", "lexical")); got != 12 {
		t.Fatalf("expected 12 indexed chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.degradedTotal.WithLabelValues("api", "semantic", "retrieve")); got != 1 {
		t.Fatalf("expected one degraded event, got %v", got)
	}
	if got := testutil.ToFloat64(m.retrievalTotal.WithLabelValues("api", "true")); got != 1 {
		t.Fatalf("expected one hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.retrievalTotal.WithLabelValues("api", "false")); got != 1 {
		t.Fatalf("expected one miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.questionsTotal.WithLabelValues("api", "follow_up", "generative", "true")); got != 1 {
		t.Fatalf("expected one answered question, got %v", got)
	}
}

func TestMiddlewareExposesRequestMetrics(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/v1/results/abc", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodPatch, "/v1/results/{result_id}", "404")); got != 1 {
		t.Fatalf("expected normalized path counter, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "inquiry_http_requests_total") {
		t.Fatalf("expected exposition to contain request counter")
	}
}

func TestWorkerMetricsTracksOutcome(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartQuestion()
	m.FinishQuestion("worker", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one failed question, got %v", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected nothing in flight, got %v", got)
	}
}

func TestProviderBreakerChangedTracksState(t *testing.T) {
	m := NewInquiryMetrics("worker", NewWorkerMetrics("worker").Registry())

	m.ProviderBreakerChanged("ollama.generate", "closed", "open")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("worker", "ollama.generate")); got != 2 {
		t.Fatalf("expected open breaker gauge 2, got %v", got)
	}
	m.ProviderBreakerChanged("ollama.generate", "open", "half-open")
	m.ProviderBreakerChanged("ollama.generate", "half-open", "closed")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("worker", "ollama.generate")); got != 0 {
		t.Fatalf("expected closed breaker gauge 0, got %v", got)
	}
}

func TestWorkerMetricsLabelsErrorKinds(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartQuestion()
	m.FinishQuestion("worker", time.Millisecond, domain.WrapError(domain.ErrNotIndexed, "ask", errors.New("no index")))

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "not_indexed")); got != 1 {
		t.Fatalf("expected one not_indexed question, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/v1/ask":                                "/v1/ask",
		"/v1/results/7f1c":                       "/v1/results/{result_id}",
		"/v1/corpus/algorithms/semantic/enable":  "/v1/corpus/algorithms/{name}/enable",
		"/wp-login.php":                          "unmatched",
		"/v1/corpus/algorithms/semantic/disable": "unmatched",
	}
	for path, want := range tests {
		if got := normalizePath(path); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", path, got, want)
		}
	}
}
