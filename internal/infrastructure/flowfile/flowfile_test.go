package flowfile

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

const caseFlow = `
entry_point: Q1
questions:
  - id: Q1
    text: What type of case is this?
    category: Case Type
    type: classification
    options:
      - value: civil
        label: Civil
        next: Q2
      - value: criminal
        label: Criminal
        next: Q3
  - id: Q2
    text: Who is the plaintiff?
    type: extraction
    next: Q3
  - id: Q3
    text: What relief is sought?
    type: extraction
    terminal: true
`

func TestLoadBuildsGraph(t *testing.T) {
	graph, err := Load(strings.NewReader(caseFlow))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if graph.Entry() != "Q1" {
		t.Fatalf("expected entry Q1, got %q", graph.Entry())
	}
	if q, ok := graph.Node("Q2"); !ok || q.Next != "Q3" {
		t.Fatalf("expected Q2 -> Q3, got %+v", q)
	}
	if len(graph.Problems()) != 0 {
		t.Fatalf("expected no problems, got %v", graph.Problems())
	}
}

func TestSaveThenDecodePreservesDefinition(t *testing.T) {
	graph, err := Load(strings.NewReader(caseFlow))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := graph.Definition()

	var buf bytes.Buffer
	if err := Save(&buf, def); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, def) {
		t.Fatalf("definition changed after save:\nwant %+v\ngot  %+v", def, decoded)
	}
}

func TestLoadRejectsInvalidFlow(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"unknown field": "entry_point: Q1\nquestions: []\nsurprise: true\n",
		"missing entry": "entry_point: Q9\nquestions:\n  - id: Q1\n    text: x\n    type: extraction\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(input)); !errors.Is(err, domain.ErrInvalidFlow) {
				t.Fatalf("expected ErrInvalidFlow, got %v", err)
			}
		})
	}
}

func TestLoadQuestions(t *testing.T) {
	questions, err := LoadQuestions(strings.NewReader(`
questions:
  - text: Who is the plaintiff?
    category: Parties
  - id: damages
    text: What damages are claimed?
`))
	if err != nil {
		t.Fatalf("LoadQuestions() error = %v", err)
	}
	want := []domain.DefaultQuestion{
		{ID: "q1", Text: "Who is the plaintiff?", Category: "Parties"},
		{ID: "damages", Text: "What damages are claimed?"},
	}
	if !reflect.DeepEqual(questions, want) {
		t.Fatalf("unexpected questions %+v", questions)
	}
}

func TestLoadQuestionsRejectsDuplicates(t *testing.T) {
	_, err := LoadQuestions(strings.NewReader("- id: a\n  text: one\n- id: a\n  text: two\n"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestShippedConfigsLoad(t *testing.T) {
	graph, err := LoadFile("../../../configs/flow.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(graph.Problems()) != 0 {
		t.Fatalf("expected no problems, got %v", graph.Problems())
	}

	questions, err := LoadQuestionsFile("../../../configs/questions.yaml")
	if err != nil {
		t.Fatalf("LoadQuestionsFile() error = %v", err)
	}
	if len(questions) == 0 {
		t.Fatal("expected default questions")
	}
}
