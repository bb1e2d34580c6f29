package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/case-inquiry/internal/config"
	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
	"github.com/kirillkom/case-inquiry/internal/observability/metrics"
)

const maxRequestBody = 8 << 20

// ResultExporter renders and stores result lists.
type ResultExporter interface {
	Render(format export.Format, results []domain.InquiryResult) ([]byte, error)
	Save(ctx context.Context, format export.Format, results []domain.InquiryResult) (string, error)
}

// CorpusReloader reindexes the configured corpus source.
type CorpusReloader func(ctx context.Context) (domain.IndexReport, error)

type Router struct {
	cfg      config.Config
	inquiry  ports.InquiryService
	flow     ports.FlowService
	corpus   ports.CorpusService
	exporter ResultExporter

	reload  CorpusReloader
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithCorpusReloader(reload CorpusReloader) RouterOption {
	return func(rt *Router) {
		rt.reload = reload
	}
}

// NewRouter builds the API. flow may be nil when no flow file is configured.
func NewRouter(
	cfg config.Config,
	inquiry ports.InquiryService,
	flow ports.FlowService,
	corpus ports.CorpusService,
	exporter ResultExporter,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:      cfg,
		inquiry:  inquiry,
		flow:     flow,
		corpus:   corpus,
		exporter: exporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/ask", rt.ask)
	api.HandleFunc("POST /v1/defaults/run", rt.runDefaults)
	api.HandleFunc("GET /v1/results", rt.listResults)
	api.HandleFunc("PATCH /v1/results/{id}", rt.setIncluded)
	api.HandleFunc("GET /v1/export", rt.renderExport)
	api.HandleFunc("POST /v1/export", rt.saveExport)
	api.HandleFunc("GET /v1/flow", rt.flowState)
	api.HandleFunc("GET /v1/flow/questions", rt.flowQuestions)
	api.HandleFunc("POST /v1/flow/answer", rt.flowAnswer)
	api.HandleFunc("POST /v1/flow/record", rt.flowRecord)
	api.HandleFunc("POST /v1/flow/reset", rt.flowReset)
	api.HandleFunc("POST /v1/corpus/index", rt.indexCorpus)
	api.HandleFunc("POST /v1/corpus/reload", rt.reloadCorpus)
	api.HandleFunc("GET /v1/corpus/status", rt.corpusStatus)
	api.HandleFunc("POST /v1/corpus/algorithms/{name}/enable", rt.enableAlgorithm)

	var guarded http.Handler = api
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, 50*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	indexed := false
	if rt.corpus != nil {
		for _, s := range rt.corpus.Status() {
			indexed = indexed || s.Indexed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "indexed": indexed})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Stream   bool   `json:"stream"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Stream {
		rt.askStream(w, r, req.Question)
		return
	}

	result, err := rt.inquiry.Ask(r.Context(), req.Question)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) askStream(w http.ResponseWriter, r *http.Request, question string) {
	stream, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}

	result, err := rt.inquiry.AskStream(r.Context(), question, func(chunk domain.AnswerChunk) error {
		if chunk.Replace {
			return stream.Send(map[string]string{"replace": chunk.Text})
		}
		return stream.Send(map[string]string{"token": chunk.Text})
	})
	if err != nil {
		rt.logger.Warn("ask_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		_ = stream.Send(map[string]string{"error": err.Error()})
		_ = stream.Done()
		return
	}
	_ = stream.Send(map[string]any{"result": result})
	_ = stream.Done()
}

func (rt *Router) runDefaults(w http.ResponseWriter, r *http.Request) {
	results, err := rt.inquiry.RunDefaultQuestions(r.Context())
	if err != nil && len(results) == 0 {
		rt.writeDomainError(w, r, err)
		return
	}
	resp := map[string]any{"results": results}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) listResults(w http.ResponseWriter, r *http.Request) {
	results := rt.inquiry.Results()
	if r.URL.Query().Get("included") == "true" {
		results = export.Included(results)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) setIncluded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Included *bool `json:"included"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Included == nil {
		writeError(w, http.StatusBadRequest, "included is required")
		return
	}
	id := r.PathValue("id")
	if err := rt.inquiry.SetIncluded(r.Context(), id, *req.Included); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "included": *req.Included})
}

func (rt *Router) renderExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	data, err := rt.exporter.Render(format, rt.inquiry.Results())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="inquiry-results.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) saveExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	key, err := rt.exporter.Save(r.Context(), format, rt.inquiry.Results())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (rt *Router) flowState(w http.ResponseWriter, r *http.Request) {
	if !rt.requireFlow(w) {
		return
	}
	resp := map[string]any{
		"state":    rt.flow.State(),
		"progress": rt.flow.Progress(),
	}
	if q, ok := rt.flow.Current(); ok {
		resp["current"] = q
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) flowQuestions(w http.ResponseWriter, _ *http.Request) {
	if !rt.requireFlow(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": rt.flow.Questions()})
}

func (rt *Router) flowAnswer(w http.ResponseWriter, r *http.Request) {
	if !rt.requireFlow(w) {
		return
	}
	step, err := rt.flow.AnswerCurrent(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (rt *Router) flowRecord(w http.ResponseWriter, r *http.Request) {
	if !rt.requireFlow(w) {
		return
	}
	var req struct {
		QuestionID string   `json:"question_id"`
		Value      string   `json:"value"`
		Text       string   `json:"text"`
		Citations  []string `json:"citations"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	transition := rt.flow.RecordAnswer(req.QuestionID, req.Value, req.Text, req.Citations)
	writeJSON(w, http.StatusOK, map[string]any{
		"transition": transition,
		"progress":   rt.flow.Progress(),
	})
}

func (rt *Router) flowReset(w http.ResponseWriter, _ *http.Request) {
	if !rt.requireFlow(w) {
		return
	}
	rt.flow.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"state": rt.flow.State()})
}

func (rt *Router) indexCorpus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chunks []domain.ChunkInput `json:"chunks"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := rt.corpus.IndexDocuments(r.Context(), req.Chunks)
	rt.writeIndexReport(w, r, report, err)
}

func (rt *Router) reloadCorpus(w http.ResponseWriter, r *http.Request) {
	if rt.reload == nil {
		writeError(w, http.StatusNotFound, "corpus reload is not configured")
		return
	}
	report, err := rt.reload(r.Context())
	rt.writeIndexReport(w, r, report, err)
}

func (rt *Router) writeIndexReport(w http.ResponseWriter, r *http.Request, report domain.IndexReport, err error) {
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) corpusStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"algorithms": rt.corpus.Status()})
}

func (rt *Router) enableAlgorithm(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := rt.corpus.Enable(name); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"algorithm": name, "enabled": true})
}

func (rt *Router) requireFlow(w http.ResponseWriter) bool {
	if rt.flow == nil {
		writeError(w, http.StatusNotFound, "question flow is not configured")
		return false
	}
	return true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
