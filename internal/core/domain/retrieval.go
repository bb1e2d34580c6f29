package domain

import (
	"math"
	"time"
)

const (
	AlgorithmLexical  = "lexical"
	AlgorithmSemantic = "semantic"
)

// RetrievedItem is one algorithm's scored hit. RelevanceScore is always in [0,1].
type RetrievedItem struct {
	ChunkID        string     `json:"chunk_id"`
	Text           string     `json:"text"`
	RelevanceScore float64    `json:"relevance_score"`
	RawScore       float64    `json:"raw_score"`
	Algorithm      string     `json:"algorithm"`
	Filename       string     `json:"filename"`
	ChunkNum       int        `json:"chunk_num"`
	SectionName    string     `json:"section_name,omitempty"`
	Debug          *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo carries algorithm-specific diagnostics. Nothing reads it for scoring.
type DebugInfo struct {
	MatchedTerms []string `json:"matched_terms,omitempty"`
	Similarity   float64  `json:"similarity,omitempty"`
}

func NewRetrievedItem(chunk Chunk, algorithm string, relevance, raw float64) RetrievedItem {
	return RetrievedItem{
		ChunkID:        chunk.ID,
		Text:           chunk.Text,
		RelevanceScore: Clamp01(relevance),
		RawScore:       raw,
		Algorithm:      algorithm,
		Filename:       chunk.Filename,
		ChunkNum:       chunk.ChunkNum,
		SectionName:    chunk.SectionName,
	}
}

// MergedItem is the output of a merge. Algorithms is never empty.
type MergedItem struct {
	ChunkID       string   `json:"chunk_id"`
	Text          string   `json:"text"`
	CombinedScore float64  `json:"combined_score"`
	Algorithms    []string `json:"contributing_algorithms"`
	Filename      string   `json:"filename"`
	ChunkNum      int      `json:"chunk_num"`
	SectionName   string   `json:"section_name,omitempty"`
}

type AlgorithmStatus string

const (
	AlgorithmOK       AlgorithmStatus = "ok"
	AlgorithmDegraded AlgorithmStatus = "degraded"
)

// AlgorithmOutcome is the per-algorithm result consumed by the merge step.
type AlgorithmOutcome struct {
	Algorithm string          `json:"algorithm"`
	Status    AlgorithmStatus `json:"status"`
	Items     []RetrievedItem `json:"-"`
	Count     int             `json:"count"`
	Reason    string          `json:"reason,omitempty"`
}

func OutcomeOK(algorithm string, items []RetrievedItem) AlgorithmOutcome {
	return AlgorithmOutcome{Algorithm: algorithm, Status: AlgorithmOK, Items: items, Count: len(items)}
}

func OutcomeDegraded(algorithm, reason string) AlgorithmOutcome {
	return AlgorithmOutcome{Algorithm: algorithm, Status: AlgorithmDegraded, Reason: reason}
}

// MergedRetrievalResult is what the hybrid coordinator returns. Reason is set
// when Items is empty.
type MergedRetrievalResult struct {
	Query    string             `json:"query"`
	Items    []MergedItem       `json:"items"`
	Outcomes []AlgorithmOutcome `json:"outcomes,omitempty"`
	Reason   string             `json:"reason,omitempty"`
}

func (r MergedRetrievalResult) Empty() bool {
	return len(r.Items) == 0
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AlgorithmState describes one configured algorithm.
type AlgorithmState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Indexed bool   `json:"indexed"`
	Chunks  int    `json:"chunks"`
	Reason  string `json:"reason,omitempty"`
}

// IndexOutcome reports how one algorithm handled an indexing request.
type IndexOutcome struct {
	Algorithm string        `json:"algorithm"`
	Indexed   bool          `json:"indexed"`
	Skipped   bool          `json:"skipped,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
}

type IndexReport struct {
	Chunks   int            `json:"chunks"`
	Outcomes []IndexOutcome `json:"outcomes"`
}

// Indexed reports whether at least one algorithm built an index.
func (r IndexReport) Indexed() bool {
	for _, o := range r.Outcomes {
		if o.Indexed {
			return true
		}
	}
	return false
}
