package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

const (
	defaultRetrievalTimeout = 30 * time.Second
	defaultOverFetch        = 2
	fallbackK               = 5
)

const (
	ReasonEmptyQuery      = "query is empty"
	ReasonNotIndexed      = "no documents have been indexed"
	ReasonNoAlgorithms    = "no retrieval algorithm is available"
	ReasonAllFailed       = "every retrieval algorithm failed"
	ReasonNoMatches       = "no passages matched the query"
	ReasonBelowMinScore   = "no passages scored above the minimum score"
	ReasonCallerCancelled = "request cancelled"
)

var (
	_ ports.HybridRetriever = (*HybridCoordinator)(nil)
	_ ports.CorpusService   = (*HybridCoordinator)(nil)
)

type algorithmSlot struct {
	builder ports.IndexBuilder
	enabled bool
	reason  string
}

type indexSnapshot struct {
	indexes map[string]ports.SearchIndex
	chunks  int
}

type CoordinatorOption func(*HybridCoordinator)

func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *HybridCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetrievalTimeout bounds each algorithm's Retrieve call.
func WithRetrievalTimeout(d time.Duration) CoordinatorOption {
	return func(c *HybridCoordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOverFetch sets how many times k each algorithm is asked for before merging.
func WithOverFetch(factor int) CoordinatorOption {
	return func(c *HybridCoordinator) {
		if factor > 0 {
			c.overFetch = factor
		}
	}
}

func WithMonitor(m Monitor) CoordinatorOption {
	return func(c *HybridCoordinator) {
		if m != nil {
			c.monitor = m
		}
	}
}

// HybridCoordinator owns one index per algorithm and merges their results.
// Indexes are replaced as a whole snapshot, so a concurrent Retrieve sees
// either the old corpus or the new one, never a mix.
type HybridCoordinator struct {
	merger    *Merger
	monitor   Monitor
	logger    *slog.Logger
	timeout   time.Duration
	overFetch int

	mu    sync.RWMutex
	slots []*algorithmSlot

	indexMu  sync.Mutex
	snapshot atomic.Pointer[indexSnapshot]
}

func NewHybridCoordinator(builders []ports.IndexBuilder, merger *Merger, opts ...CoordinatorOption) (*HybridCoordinator, error) {
	if len(builders) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new hybrid coordinator", errors.New("at least one algorithm is required"))
	}
	if merger == nil {
		merger = NewMerger(DefaultMergeConfig())
	}

	c := &HybridCoordinator{
		merger:    merger,
		monitor:   NoopMonitor(),
		logger:    slog.Default().With("component", "hybrid_coordinator"),
		timeout:   defaultRetrievalTimeout,
		overFetch: defaultOverFetch,
	}
	for _, opt := range opts {
		opt(c)
	}

	seen := make(map[string]struct{}, len(builders))
	for _, b := range builders {
		if b == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new hybrid coordinator", errors.New("nil algorithm"))
		}
		name := b.Name()
		if _, dup := seen[name]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new hybrid coordinator", fmt.Errorf("duplicate algorithm %q", name))
		}
		seen[name] = struct{}{}
		c.slots = append(c.slots, &algorithmSlot{builder: b, enabled: true})
	}
	return c, nil
}

// IndexDocuments builds every enabled algorithm over inputs concurrently and
// swaps the results in as one snapshot. An algorithm that fails to build is
// disabled; the others still serve the new corpus. An error is returned only
// when inputs are empty, which also drops the current snapshot, or when no
// algorithm could build.
func (c *HybridCoordinator) IndexDocuments(ctx context.Context, inputs []domain.ChunkInput) (domain.IndexReport, error) {
	chunks := domain.BuildChunks(inputs)
	report := domain.IndexReport{Chunks: len(chunks)}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	if len(chunks) == 0 {
		c.snapshot.Store(nil)
		return report, domain.WrapError(domain.ErrEmptyCorpus, "index documents", errors.New("no chunks supplied"))
	}

	slots := c.snapshotSlots()
	built := make([]ports.SearchIndex, len(slots))
	report.Outcomes = make([]domain.IndexOutcome, len(slots))

	var g errgroup.Group
	for i, s := range slots {
		name := s.builder.Name()
		if !s.enabled {
			report.Outcomes[i] = domain.IndexOutcome{Algorithm: name, Skipped: true, Reason: s.reason}
			continue
		}
		builder := s.builder
		g.Go(func() error {
			started := time.Now()
			idx, err := builder.Build(ctx, chunks)
			elapsed := time.Since(started)
			if err != nil {
				report.Outcomes[i] = domain.IndexOutcome{Algorithm: name, Reason: err.Error(), Duration: elapsed}
				return nil
			}
			built[i] = idx
			report.Outcomes[i] = domain.IndexOutcome{Algorithm: name, Indexed: true, Duration: elapsed}
			return nil
		})
	}
	_ = g.Wait()

	next := &indexSnapshot{indexes: make(map[string]ports.SearchIndex, len(slots)), chunks: len(chunks)}
	for i, o := range report.Outcomes {
		switch {
		case o.Indexed:
			next.indexes[o.Algorithm] = built[i]
			c.monitor.IndexBuilt(o.Algorithm, len(chunks), o.Duration)
			c.logger.Info("algorithm_indexed", "algorithm", o.Algorithm, "chunks", len(chunks), "duration_ms", o.Duration.Milliseconds())
		case !o.Skipped:
			c.disable(o.Algorithm, "index: "+o.Reason)
			c.monitor.AlgorithmDegraded(o.Algorithm, "index", errors.New(o.Reason))
			c.logger.Warn("algorithm_index_failed", "algorithm", o.Algorithm, "error", o.Reason)
		}
	}
	c.snapshot.Store(next)

	if len(next.indexes) == 0 {
		return report, domain.WrapError(domain.ErrAlgorithmUnavailable, "index documents", errors.New("no algorithm built an index"))
	}
	return report, nil
}

// Retrieve runs every enabled, indexed algorithm concurrently, asking each for
// overFetch*k items, and merges the lists. k <= 0 uses the merge config's K.
// The result always carries a Reason when it has no items.
func (c *HybridCoordinator) Retrieve(ctx context.Context, query string, k int) domain.MergedRetrievalResult {
	result := domain.MergedRetrievalResult{Query: query}
	if strings.TrimSpace(query) == "" {
		result.Reason = ReasonEmptyQuery
		return result
	}
	if k <= 0 {
		k = c.merger.cfg.K
	}
	if k <= 0 {
		k = fallbackK
	}

	snap := c.snapshot.Load()
	if snap == nil || snap.chunks == 0 {
		result.Reason = ReasonNotIndexed
		return result
	}

	type active struct {
		name  string
		index ports.SearchIndex
	}
	var runs []active
	for _, s := range c.snapshotSlots() {
		name := s.builder.Name()
		idx, ok := snap.indexes[name]
		if !s.enabled || !ok {
			continue
		}
		runs = append(runs, active{name: name, index: idx})
	}
	if len(runs) == 0 {
		result.Reason = ReasonNoAlgorithms
		return result
	}

	started := time.Now()
	outcomes := make([]domain.AlgorithmOutcome, len(runs))
	var g errgroup.Group
	for i, run := range runs {
		g.Go(func() error {
			outcomes[i] = c.retrieveOne(ctx, run.name, run.index, query, k*c.overFetch)
			return nil
		})
	}
	_ = g.Wait()
	result.Outcomes = outcomes

	lists := make([][]domain.RetrievedItem, 0, len(outcomes))
	degraded := 0
	for _, o := range outcomes {
		if o.Status == domain.AlgorithmDegraded {
			degraded++
			continue
		}
		if len(o.Items) > 0 {
			lists = append(lists, o.Items)
		}
	}

	switch {
	case ctx.Err() != nil && len(lists) == 0:
		result.Reason = ReasonCallerCancelled
	case degraded == len(outcomes):
		result.Reason = ReasonAllFailed
	case len(lists) == 0:
		result.Reason = ReasonNoMatches
	default:
		result.Items = c.merger.Merge(lists, k)
		if len(result.Items) == 0 {
			result.Reason = ReasonBelowMinScore
		}
	}

	elapsed := time.Since(started)
	c.monitor.RetrievalFinished(outcomes, len(result.Items), elapsed)
	c.logger.Debug("hybrid_retrieval_finished",
		"algorithms", len(outcomes),
		"degraded", degraded,
		"merged", len(result.Items),
		"duration_ms", elapsed.Milliseconds(),
	)
	return result
}

func (c *HybridCoordinator) retrieveOne(ctx context.Context, name string, idx ports.SearchIndex, query string, n int) domain.AlgorithmOutcome {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	items, err := idx.Retrieve(callCtx, query, n)
	if err == nil {
		return domain.OutcomeOK(name, items)
	}

	// A caller that gave up says nothing about the algorithm's health.
	if ctx.Err() != nil {
		return domain.OutcomeDegraded(name, ctx.Err().Error())
	}

	c.disable(name, "retrieve: "+err.Error())
	c.monitor.AlgorithmDegraded(name, "retrieve", err)
	c.logger.Warn("algorithm_retrieve_failed", "algorithm", name, "error", err)
	return domain.OutcomeDegraded(name, err.Error())
}

func (c *HybridCoordinator) disable(name, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s.builder.Name() == name {
			s.enabled = false
			s.reason = reason
		}
	}
}

// Enable re-enables a previously degraded algorithm. It takes part in queries
// again only if the current snapshot holds an index for it; otherwise it is
// rebuilt on the next IndexDocuments call.
func (c *HybridCoordinator) Enable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s.builder.Name() == name {
			s.enabled = true
			s.reason = ""
			c.logger.Info("algorithm_enabled", "algorithm", name)
			return nil
		}
	}
	return domain.WrapError(domain.ErrInvalidInput, "enable algorithm", fmt.Errorf("unknown algorithm %q", name))
}

func (c *HybridCoordinator) Status() []domain.AlgorithmState {
	snap := c.snapshot.Load()
	slots := c.snapshotSlots()
	out := make([]domain.AlgorithmState, 0, len(slots))
	for _, s := range slots {
		st := domain.AlgorithmState{Name: s.builder.Name(), Enabled: s.enabled, Reason: s.reason}
		if snap != nil {
			if idx, ok := snap.indexes[st.Name]; ok {
				st.Indexed = true
				st.Chunks = idx.Size()
			}
		}
		out = append(out, st)
	}
	return out
}

// IsIndexed reports whether any algorithm currently holds an index.
func (c *HybridCoordinator) IsIndexed() bool {
	snap := c.snapshot.Load()
	return snap != nil && len(snap.indexes) > 0
}

func (c *HybridCoordinator) MergeConfig() MergeConfig {
	return c.merger.Config()
}

// snapshotSlots copies slot state so callers can read it without the lock.
func (c *HybridCoordinator) snapshotSlots() []algorithmSlot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]algorithmSlot, len(c.slots))
	for i, s := range c.slots {
		out[i] = *s
	}
	return out
}
