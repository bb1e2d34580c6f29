package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// Machine tracks the current question of one flow run. Answers are applied
// one at a time; concurrent callers are serialized.
type Machine struct {
	graph  *Graph
	logger *slog.Logger

	mu    sync.Mutex
	state domain.FlowState
}

type MachineOption func(*Machine)

func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMachine(graph *Graph, opts ...MachineOption) *Machine {
	m := &Machine{
		graph:  graph,
		logger: slog.Default().With("component", "flow_machine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = domain.FlowState{CurrentQuestionID: graph.Entry()}
	return m
}

func (m *Machine) Graph() *Graph { return m.graph }

// Current returns the question awaiting an answer, or false once complete.
func (m *Machine) Current() (domain.QuestionNode, bool) {
	m.mu.Lock()
	id := m.state.CurrentQuestionID
	m.mu.Unlock()
	if id == "" {
		return domain.QuestionNode{}, false
	}
	return m.graph.Node(id)
}

// RecordAnswer applies an answer to the current question and moves to the
// next one. It never fails: an answer that cannot be applied leaves the state
// unchanged and is reported as a rejected transition.
func (m *Machine) RecordAnswer(questionID, value, text string, citations []string) domain.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsComplete {
		return m.reject(questionID, "flow is already complete")
	}
	node, ok := m.graph.Node(questionID)
	if !ok {
		return m.reject(questionID, "unknown question")
	}
	if questionID != m.state.CurrentQuestionID {
		return m.reject(questionID, fmt.Sprintf("current question is %q", m.state.CurrentQuestionID))
	}

	tr := m.nextFrom(node, value)
	if tr.To != "" {
		if _, ok := m.graph.Node(tr.To); !ok {
			return m.reject(questionID, fmt.Sprintf("branch target %q does not exist", tr.To))
		}
	}

	m.state.Answered = append(m.state.Answered, domain.AnsweredQuestion{
		QuestionID:   node.ID,
		QuestionText: node.Text,
		Category:     node.Category,
		AnswerValue:  value,
		AnswerText:   text,
		Citations:    append([]string(nil), citations...),
	})
	m.state.CurrentQuestionID = tr.To
	m.state.IsComplete = tr.To == ""

	m.logger.Info("flow_answer_recorded",
		"question_id", node.ID,
		"next_question_id", tr.To,
		"outcome", tr.Outcome,
		"complete", m.state.IsComplete,
	)
	return tr
}

func (m *Machine) nextFrom(node domain.QuestionNode, value string) domain.Transition {
	tr := domain.Transition{From: node.ID}
	if node.Terminal {
		tr.Outcome = domain.TransitionCompleted
		return tr
	}

	if node.Kind == domain.QuestionExtraction {
		tr.To = node.Next
		tr.Outcome = domain.TransitionDirect
		return tr
	}

	answer := strings.TrimSpace(value)
	for _, opt := range node.Options {
		if strings.EqualFold(strings.TrimSpace(opt.Value), answer) {
			tr.To = opt.Next
			tr.Outcome = domain.TransitionMatched
			return tr
		}
	}

	// Unmatched answers follow the first option so the flow can continue.
	tr.To = node.Options[0].Next
	tr.Outcome = domain.TransitionDefaulted
	tr.Reason = fmt.Sprintf("answer %q matched no option; took %q", value, node.Options[0].Value)
	m.logger.Warn("flow_answer_unmatched",
		"question_id", node.ID,
		"answer_value", value,
		"default_option", node.Options[0].Value,
	)
	return tr
}

func (m *Machine) reject(questionID, reason string) domain.Transition {
	m.logger.Warn("flow_answer_rejected",
		"question_id", questionID,
		"current_question_id", m.state.CurrentQuestionID,
		"reason", reason,
	)
	return domain.Transition{
		From:    questionID,
		To:      m.state.CurrentQuestionID,
		Outcome: domain.TransitionRejected,
		Reason:  reason,
	}
}

// State returns a copy of the flow state.
func (m *Machine) State() domain.FlowState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.state
	out.Answered = make([]domain.AnsweredQuestion, len(m.state.Answered))
	for i, a := range m.state.Answered {
		a.Citations = append([]string(nil), a.Citations...)
		out.Answered[i] = a
	}
	return out
}

// Progress estimates how many questions remain by following the first branch
// of every question from the current one. The estimate is approximate on
// branching graphs.
func (m *Machine) Progress() domain.FlowProgress {
	m.mu.Lock()
	answered := len(m.state.Answered)
	current := m.state.CurrentQuestionID
	complete := m.state.IsComplete
	m.mu.Unlock()

	p := domain.FlowProgress{Answered: answered, IsComplete: complete, Approximate: true}
	if !complete {
		p.EstimatedRemaining = m.remainingFrom(current)
	}
	p.EstimatedTotal = p.Answered + p.EstimatedRemaining
	return p
}

func (m *Machine) remainingFrom(id string) int {
	visited := make(map[string]struct{})
	count := 0
	for id != "" {
		if _, seen := visited[id]; seen {
			break
		}
		visited[id] = struct{}{}
		node, ok := m.graph.Node(id)
		if !ok {
			break
		}
		count++
		if node.Terminal {
			break
		}
		id = firstBranch(node)
	}
	return count
}

func firstBranch(node domain.QuestionNode) string {
	if node.Kind == domain.QuestionClassification {
		if len(node.Options) == 0 {
			return ""
		}
		return node.Options[0].Next
	}
	return node.Next
}

// Reset discards all answers and returns to the entry point.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.FlowState{CurrentQuestionID: m.graph.Entry()}
	m.logger.Info("flow_reset", "entry_point", m.graph.Entry())
}
