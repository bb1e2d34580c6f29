package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// InquiryMetrics records retrieval and answering events. It satisfies both the
// retrieval monitor and the inquiry monitor hooks.
type InquiryMetrics struct {
	service string

	indexChunks       *prometheus.GaugeVec
	indexDuration     *prometheus.HistogramVec
	degradedTotal     *prometheus.CounterVec
	retrievalTotal    *prometheus.CounterVec
	algorithmResults  *prometheus.HistogramVec
	mergedItems       *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	questionsTotal    *prometheus.CounterVec
	questionSources   *prometheus.HistogramVec
	questionDuration  *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
}

func NewInquiryMetrics(service string, registerer prometheus.Registerer) *InquiryMetrics {
	m := &InquiryMetrics{
		service: service,
		indexChunks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "indexed_chunks",
				Help:      "Chunks held by the current index of each algorithm.",
			},
			[]string{"service", "algorithm"},
		),
		indexDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "index_build_duration_seconds",
				Help:      "Index build duration in seconds by algorithm.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"service", "algorithm"},
		),
		degradedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "algorithm_degraded_total",
				Help:      "Algorithms disabled after a failure, by stage.",
			},
			[]string{"service", "algorithm", "stage"},
		),
		retrievalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "requests_total",
				Help:      "Hybrid retrievals by whether any item survived the merge.",
			},
			[]string{"service", "hit"},
		),
		algorithmResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "algorithm_results",
				Help:      "Items returned per algorithm per retrieval.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"service", "algorithm", "status"},
		),
		mergedItems: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "merged_items",
				Help:      "Items returned by the merger per retrieval.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"service"},
		),
		retrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "retrieval",
				Name:      "duration_seconds",
				Help:      "Hybrid retrieval duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		questionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inquiry",
				Subsystem: "answer",
				Name:      "questions_total",
				Help:      "Answered questions by kind, synthesis mode and fallback.",
			},
			[]string{"service", "kind", "mode", "fell_back"},
		),
		questionSources: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "answer",
				Name:      "sources",
				Help:      "Cited sources per answered question.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"service", "kind"},
		),
		questionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inquiry",
				Subsystem: "answer",
				Name:      "duration_seconds",
				Help:      "End-to-end question answering duration in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"service", "kind", "mode"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "inquiry",
				Subsystem: "provider",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per provider operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}

	registerer.MustRegister(
		m.indexChunks,
		m.indexDuration,
		m.degradedTotal,
		m.retrievalTotal,
		m.algorithmResults,
		m.mergedItems,
		m.retrievalDuration,
		m.questionsTotal,
		m.questionSources,
		m.questionDuration,
		m.breakerState,
	)
	return m
}

func (m *InquiryMetrics) IndexBuilt(algorithm string, chunks int, duration time.Duration) {
	m.indexChunks.WithLabelValues(m.service, algorithm).Set(float64(chunks))
	m.indexDuration.WithLabelValues(m.service, algorithm).Observe(duration.Seconds())
}

func (m *InquiryMetrics) AlgorithmDegraded(algorithm, stage string, _ error) {
	if stage == "" {
		stage = "unknown"
	}
	m.degradedTotal.WithLabelValues(m.service, algorithm, stage).Inc()
	if stage == "index" {
		m.indexChunks.WithLabelValues(m.service, algorithm).Set(0)
	}
}

func (m *InquiryMetrics) RetrievalFinished(outcomes []domain.AlgorithmOutcome, merged int, duration time.Duration) {
	for _, o := range outcomes {
		m.algorithmResults.WithLabelValues(m.service, o.Algorithm, string(o.Status)).Observe(float64(o.Count))
	}
	m.mergedItems.WithLabelValues(m.service).Observe(float64(merged))
	m.retrievalDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	m.retrievalTotal.WithLabelValues(m.service, strconv.FormatBool(merged > 0)).Inc()
}

func (m *InquiryMetrics) QuestionAnswered(kind domain.InquiryKind, mode domain.SynthesisMode, fellBack bool, sources int, duration time.Duration) {
	m.questionsTotal.WithLabelValues(m.service, string(kind), string(mode), strconv.FormatBool(fellBack)).Inc()
	m.questionSources.WithLabelValues(m.service, string(kind)).Observe(float64(sources))
	m.questionDuration.WithLabelValues(m.service, string(kind), string(mode)).Observe(duration.Seconds())
}

// ProviderBreakerChanged matches resilience.StateObserver.
func (m *InquiryMetrics) ProviderBreakerChanged(operation, _, to string) {
	state := 0.0
	switch to {
	case "half-open":
		state = 1
	case "open":
		state = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(state)
}
