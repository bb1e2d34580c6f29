package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/flow"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/core/retrieval"
	"github.com/kirillkom/case-inquiry/internal/core/usecase"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/case-inquiry/internal/observability/metrics"
)

var testChunks = []domain.ChunkInput{
	{Text: "The plaintiff is John Smith, a resident of Springfield.", Filename: "complaint.txt", SectionName: "Parties"},
	{Text: "This is a civil action for breach of contract.", Filename: "complaint.txt", SectionName: "Nature of Action"},
	{Text: "The plaintiff seeks damages of $50,000.", Filename: "complaint.txt", SectionName: "Relief"},
}

type testEnv struct {
	handler     http.Handler
	inquiry     *usecase.InquiryUseCase
	coordinator *retrieval.HybridCoordinator
}

func newTestEnv(t *testing.T, cfg config.Config, withFlow bool) testEnv {
	t.Helper()
	coordinator, err := retrieval.NewHybridCoordinator(
		[]ports.IndexBuilder{retrieval.NewLexicalRetriever()},
		retrieval.NewMerger(retrieval.DefaultMergeConfig()),
	)
	if err != nil {
		t.Fatalf("NewHybridCoordinator() error = %v", err)
	}
	if _, err := coordinator.IndexDocuments(context.Background(), testChunks); err != nil {
		t.Fatalf("IndexDocuments() error = %v", err)
	}

	inquiry := usecase.NewInquiryUseCase(coordinator, usecase.NewSynthesizer(domain.SynthesisExtraction),
		usecase.WithDefaultQuestions([]domain.DefaultQuestion{{ID: "q1", Text: "Who is the plaintiff?"}}))

	var flowSvc ports.FlowService
	if withFlow {
		graph, err := flow.NewGraph(flow.Definition{
			EntryPoint: "Q1",
			Questions: []domain.QuestionNode{
				{ID: "Q1", Text: "Is this a civil or criminal case?", Kind: domain.QuestionClassification, Options: []domain.QuestionOption{
					{Value: "civil", Next: "Q2"},
					{Value: "criminal", Next: "Q2"},
				}},
				{ID: "Q2", Text: "Who is the plaintiff?", Kind: domain.QuestionExtraction, Terminal: true},
			},
		})
		if err != nil {
			t.Fatalf("NewGraph() error = %v", err)
		}
		flowSvc = usecase.NewFlowUseCase(flow.NewMachine(graph), inquiry, nil)
	}

	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	router := NewRouter(cfg, inquiry, flowSvc, coordinator, export.NewExporter(store),
		WithMetrics(metrics.NewHTTPServerMetrics("api")),
		WithCorpusReloader(func(ctx context.Context) (domain.IndexReport, error) {
			return coordinator.IndexDocuments(ctx, testChunks)
		}),
	)
	return testEnv{handler: router.Handler(), inquiry: inquiry, coordinator: coordinator}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	res := doJSON(t, env.handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAskReturnsCitedAnswer(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	res := doJSON(t, env.handler, http.MethodPost, "/v1/ask", map[string]any{"question": "Who is the plaintiff?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.InquiryResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(result.Answer, "John Smith") {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if !strings.HasPrefix(result.CitationText, "complaint.txt, Parties") {
		t.Fatalf("unexpected citations %q", result.CitationText)
	}
}

func TestAskValidatesInput(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	if res := doJSON(t, env.handler, http.MethodPost, "/v1/ask", map[string]any{"question": "  "}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank question, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader("{"))
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", res.Code)
	}

	if res := doJSON(t, env.handler, http.MethodGet, "/v1/ask", nil); res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", res.Code)
	}
}

func TestAskStreamEmitsResultEvent(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	res := doJSON(t, env.handler, http.MethodPost, "/v1/ask", map[string]any{"question": "Who is the plaintiff?", "stream": true})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}
	body := res.Body.String()
	if !strings.Contains(body, `"result":`) || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("unexpected stream body:\n%s", body)
	}
}

type replacingInquiry struct {
	ports.InquiryService
}

func (replacingInquiry) AskStream(_ context.Context, question string, onChunk func(domain.AnswerChunk) error) (*domain.InquiryResult, error) {
	if err := onChunk(domain.AnswerChunk{Text: "The answer is "}); err != nil {
		return nil, err
	}
	answer := "The plaintiff is John Smith."
	if err := onChunk(domain.AnswerChunk{Text: answer, Replace: true}); err != nil {
		return nil, err
	}
	return &domain.InquiryResult{ID: "r-1", Question: question, Answer: answer, FellBack: true}, nil
}

func TestAskStreamEmitsReplaceEventAfterFallback(t *testing.T) {
	handler := NewRouter(config.Config{}, replacingInquiry{}, nil, nil, nil).Handler()
	res := doJSON(t, handler, http.MethodPost, "/v1/ask", map[string]any{"question": "Who is the plaintiff?", "stream": true})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	token := strings.Index(body, `{"token":"The answer is "}`)
	replace := strings.Index(body, `{"replace":"The plaintiff is John Smith."}`)
	if token < 0 || replace < token {
		t.Fatalf("expected token event followed by replace event:\n%s", body)
	}
}

func TestResultsInclusionAndExport(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	if res := doJSON(t, env.handler, http.MethodPost, "/v1/defaults/run", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200 from default run, got %d", res.Code)
	}
	if res := doJSON(t, env.handler, http.MethodPost, "/v1/ask", map[string]any{"question": "What damages are sought?"}); res.Code != http.StatusOK {
		t.Fatalf("expected 200 from ask, got %d", res.Code)
	}

	results := env.inquiry.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	res := doJSON(t, env.handler, http.MethodPatch, "/v1/results/"+results[1].ID, map[string]any{"included": false})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from patch, got %d: %s", res.Code, res.Body.String())
	}
	if res := doJSON(t, env.handler, http.MethodPatch, "/v1/results/missing", map[string]any{"included": false}); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown result, got %d", res.Code)
	}

	res = doJSON(t, env.handler, http.MethodGet, "/v1/export?format=txt", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from export, got %d", res.Code)
	}
	text := res.Body.String()
	if !strings.Contains(text, "Who is the plaintiff?") || strings.Contains(text, "What damages are sought?") {
		t.Fatalf("export should contain only included results:\n%s", text)
	}

	if res := doJSON(t, env.handler, http.MethodGet, "/v1/export?format=pdf", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}

	res = doJSON(t, env.handler, http.MethodPost, "/v1/export?format=xlsx", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 from saved export, got %d", res.Code)
	}
	var saved map[string]string
	if err := json.NewDecoder(res.Body).Decode(&saved); err != nil || !strings.HasSuffix(saved["key"], ".xlsx") {
		t.Fatalf("unexpected saved export response %v (%v)", saved, err)
	}
}

func TestFlowEndpoints(t *testing.T) {
	env := newTestEnv(t, config.Config{}, true)

	res := doJSON(t, env.handler, http.MethodPost, "/v1/flow/answer", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from flow answer, got %d: %s", res.Code, res.Body.String())
	}
	var step domain.FlowStep
	if err := json.NewDecoder(res.Body).Decode(&step); err != nil {
		t.Fatalf("decode step: %v", err)
	}
	if step.Transition.Outcome != domain.TransitionMatched || step.Transition.To != "Q2" {
		t.Fatalf("expected civil match to Q2, got %+v", step.Transition)
	}

	res = doJSON(t, env.handler, http.MethodPost, "/v1/flow/record", map[string]any{"question_id": "Q9", "value": "x"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from record, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"outcome":"rejected"`) {
		t.Fatalf("expected rejected transition, got %s", res.Body.String())
	}

	res = doJSON(t, env.handler, http.MethodGet, "/v1/flow/questions", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"Q2"`) {
		t.Fatalf("expected question listing, got %d %s", res.Code, res.Body.String())
	}

	if res := doJSON(t, env.handler, http.MethodPost, "/v1/flow/reset", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200 from reset, got %d", res.Code)
	}
	res = doJSON(t, env.handler, http.MethodGet, "/v1/flow", nil)
	if !strings.Contains(res.Body.String(), `"current_question_id":"Q1"`) {
		t.Fatalf("expected flow back at Q1, got %s", res.Body.String())
	}
}

func TestFlowEndpointsWithoutFlowReturn404(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	if res := doJSON(t, env.handler, http.MethodGet, "/v1/flow", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestCorpusEndpoints(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)

	if res := doJSON(t, env.handler, http.MethodPost, "/v1/corpus/index", map[string]any{"chunks": []any{}}); res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty corpus, got %d", res.Code)
	}
	res := doJSON(t, env.handler, http.MethodPost, "/v1/corpus/reload", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from reload, got %d: %s", res.Code, res.Body.String())
	}
	res = doJSON(t, env.handler, http.MethodGet, "/v1/corpus/status", nil)
	if !strings.Contains(res.Body.String(), `"name":"lexical"`) {
		t.Fatalf("unexpected status body %s", res.Body.String())
	}
	if res := doJSON(t, env.handler, http.MethodPost, "/v1/corpus/algorithms/quantum/enable", nil); res.Code == http.StatusOK {
		t.Fatalf("expected enabling an unknown algorithm to fail")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{}, false)
	doJSON(t, env.handler, http.MethodGet, "/healthz", nil)
	res := doJSON(t, env.handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "inquiry_http_requests_total") {
		t.Fatalf("expected request metrics, got %d", res.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := map[error]int{
		domain.ErrInvalidInput:         http.StatusBadRequest,
		domain.ErrResultNotFound:       http.StatusNotFound,
		domain.ErrEmptyCorpus:          http.StatusUnprocessableEntity,
		domain.ErrTemporary:            http.StatusServiceUnavailable,
		domain.ErrAlgorithmUnavailable: http.StatusServiceUnavailable,
		domain.ErrProviderFailure:      http.StatusBadGateway,
	}
	for kind, want := range tests {
		err := domain.WrapError(kind, "op", context.Canceled)
		if got := mapErrorToHTTPStatus(err); got != want {
			t.Fatalf("%v: expected %d, got %d", kind, want, got)
		}
	}
}
