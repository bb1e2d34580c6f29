package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// Definition is the editable form of a question graph. It is what flow files
// decode into and encode from, so it must round-trip without loss.
type Definition struct {
	EntryPoint string                `json:"entry_point" yaml:"entry_point"`
	Questions  []domain.QuestionNode `json:"questions" yaml:"questions"`
}

// Graph is a validated, read-only question graph.
type Graph struct {
	entry    string
	nodes    map[string]domain.QuestionNode
	order    []string
	problems []string
}

// NewGraph validates def. Structural faults (missing entry point, duplicate or
// empty ids, unknown kinds, classification questions without options) are
// errors. Branch targets that name no question are tolerated and listed by
// Problems; answering into one is rejected at runtime.
func NewGraph(def Definition) (*Graph, error) {
	if len(def.Questions) == 0 {
		return nil, invalidFlow(errors.New("no questions defined"))
	}

	g := &Graph{
		entry: strings.TrimSpace(def.EntryPoint),
		nodes: make(map[string]domain.QuestionNode, len(def.Questions)),
		order: make([]string, 0, len(def.Questions)),
	}

	for i, q := range def.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return nil, invalidFlow(fmt.Errorf("question #%d has no id", i+1))
		}
		if _, dup := g.nodes[q.ID]; dup {
			return nil, invalidFlow(fmt.Errorf("duplicate question id %q", q.ID))
		}
		switch q.Kind {
		case domain.QuestionClassification:
			if len(q.Options) == 0 && !q.Terminal {
				return nil, invalidFlow(fmt.Errorf("classification question %q has no options", q.ID))
			}
		case domain.QuestionExtraction:
		default:
			return nil, invalidFlow(fmt.Errorf("question %q has unknown type %q", q.ID, q.Kind))
		}

		q.Options = append([]domain.QuestionOption(nil), q.Options...)
		g.nodes[q.ID] = q
		g.order = append(g.order, q.ID)
	}

	if g.entry == "" {
		return nil, invalidFlow(errors.New("entry_point is empty"))
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, invalidFlow(fmt.Errorf("entry_point %q is not a question", g.entry))
	}

	for _, id := range g.order {
		q := g.nodes[id]
		if q.Terminal {
			if len(q.Options) > 0 || q.Next != "" {
				g.problems = append(g.problems, fmt.Sprintf("question %q is terminal; its branches are ignored", id))
			}
			continue
		}
		for _, target := range branchTargets(q) {
			if _, ok := g.nodes[target]; !ok {
				g.problems = append(g.problems, fmt.Sprintf("question %q branches to unknown question %q", id, target))
			}
		}
	}

	return g, nil
}

func invalidFlow(err error) error {
	return domain.WrapError(domain.ErrInvalidFlow, "validate flow", err)
}

func branchTargets(q domain.QuestionNode) []string {
	var out []string
	if q.Kind == domain.QuestionClassification {
		for _, opt := range q.Options {
			if opt.Next != "" {
				out = append(out, opt.Next)
			}
		}
		return out
	}
	if q.Next != "" {
		out = append(out, q.Next)
	}
	return out
}

func (g *Graph) Entry() string { return g.entry }

func (g *Graph) Node(id string) (domain.QuestionNode, bool) {
	q, ok := g.nodes[id]
	return q, ok
}

// Questions returns the questions in definition order.
func (g *Graph) Questions() []domain.QuestionNode {
	out := make([]domain.QuestionNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Problems lists non-fatal issues found during validation.
func (g *Graph) Problems() []string {
	return append([]string(nil), g.problems...)
}

func (g *Graph) Definition() Definition {
	return Definition{EntryPoint: g.entry, Questions: g.Questions()}
}
