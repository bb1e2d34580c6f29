package retrieval

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

const defaultAlgorithmWeight = 1.0

// MergeConfig tunes how per-algorithm lists are combined.
type MergeConfig struct {
	// Weights per algorithm name. Missing algorithms weigh 1.0.
	Weights map[string]float64 `yaml:"weights"`
	// AgreementBonus is added once per extra algorithm that found the chunk.
	AgreementBonus float64 `yaml:"agreement_bonus"`
	// K is the default result count used when a caller passes k <= 0.
	K        int     `yaml:"k"`
	MinScore float64 `yaml:"min_score"`
}

func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		Weights: map[string]float64{
			domain.AlgorithmLexical:  1.0,
			domain.AlgorithmSemantic: 0.5,
		},
		AgreementBonus: 0.1,
		K:              5,
		MinScore:       0,
	}
}

func (c MergeConfig) Validate() error {
	for name, w := range c.Weights {
		if w < 0 {
			return domain.WrapError(domain.ErrInvalidInput, "merge config", fmt.Errorf("weight for %q is negative", name))
		}
	}
	if c.AgreementBonus < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "merge config", errors.New("agreement_bonus is negative"))
	}
	if c.K < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "merge config", errors.New("k is negative"))
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return domain.WrapError(domain.ErrInvalidInput, "merge config", errors.New("min_score must be within [0,1]"))
	}
	return nil
}

// LoadMergeConfig decodes YAML over DefaultMergeConfig, so omitted keys keep
// their defaults.
func LoadMergeConfig(r io.Reader) (MergeConfig, error) {
	cfg := DefaultMergeConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return MergeConfig{}, domain.WrapError(domain.ErrInvalidInput, "decode merge config", err)
	}
	if err := cfg.Validate(); err != nil {
		return MergeConfig{}, err
	}
	return cfg, nil
}

func LoadMergeConfigFile(path string) (MergeConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return MergeConfig{}, fmt.Errorf("open merge config: %w", err)
	}
	defer f.Close()
	return LoadMergeConfig(f)
}

// Merger combines ranked lists from several algorithms into one list.
type Merger struct {
	cfg MergeConfig
}

func NewMerger(cfg MergeConfig) *Merger {
	weights := make(map[string]float64, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	cfg.Weights = weights
	if cfg.AgreementBonus < 0 {
		cfg.AgreementBonus = 0
	}
	return &Merger{cfg: cfg}
}

func (m *Merger) Config() MergeConfig {
	cfg := m.cfg
	cfg.Weights = make(map[string]float64, len(m.cfg.Weights))
	for k, v := range m.cfg.Weights {
		cfg.Weights[k] = v
	}
	return cfg
}

func (m *Merger) weight(algorithm string) float64 {
	if w, ok := m.cfg.Weights[algorithm]; ok {
		return w
	}
	return defaultAlgorithmWeight
}

type mergeGroup struct {
	first       domain.RetrievedItem
	weightedSum float64
	weightTotal float64
	algorithms  []string
}

// Merge groups items by chunk id in first-seen order, scores each group with
// a weighted average of its relevance scores plus the agreement bonus, and
// returns up to k items sorted by combined score. k <= 0 returns every item.
func (m *Merger) Merge(results [][]domain.RetrievedItem, k int) []domain.MergedItem {
	groups := make(map[string]*mergeGroup)
	order := make([]string, 0)

	for _, list := range results {
		for _, item := range list {
			g, ok := groups[item.ChunkID]
			if !ok {
				g = &mergeGroup{first: item}
				groups[item.ChunkID] = g
				order = append(order, item.ChunkID)
			}
			w := m.weight(item.Algorithm)
			g.weightedSum += item.RelevanceScore * w
			g.weightTotal += w
			if !containsString(g.algorithms, item.Algorithm) {
				g.algorithms = append(g.algorithms, item.Algorithm)
			}
		}
	}

	merged := make([]domain.MergedItem, 0, len(order))
	for _, id := range order {
		g := groups[id]
		base := 0.5
		if g.weightTotal > 0 {
			base = g.weightedSum / g.weightTotal
		}
		combined := domain.Clamp01(base + m.cfg.AgreementBonus*float64(len(g.algorithms)-1))
		if combined < m.cfg.MinScore {
			continue
		}
		merged = append(merged, domain.MergedItem{
			ChunkID:       id,
			Text:          g.first.Text,
			CombinedScore: combined,
			Algorithms:    g.algorithms,
			Filename:      g.first.Filename,
			ChunkNum:      g.first.ChunkNum,
			SectionName:   g.first.SectionName,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CombinedScore > merged[j].CombinedScore
	})
	if k > 0 && len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
