// Package flowfile reads and writes question-flow and default-question files.
// YAML is the native format; JSON documents decode as well.
package flowfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/flow"
)

// Load decodes a flow definition and validates it into a graph.
func Load(r io.Reader) (*flow.Graph, error) {
	def, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return flow.NewGraph(def)
}

func LoadFile(path string) (*flow.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Decode reads a definition without validating it. Unknown keys are errors.
func Decode(r io.Reader) (flow.Definition, error) {
	var def flow.Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return flow.Definition{}, domain.WrapError(domain.ErrInvalidFlow, "decode flow", errors.New("flow file is empty"))
		}
		return flow.Definition{}, domain.WrapError(domain.ErrInvalidFlow, "decode flow", err)
	}
	return def, nil
}

// Save encodes def as YAML.
func Save(w io.Writer, def flow.Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	return enc.Close()
}

// Marshal is Save into a byte slice.
func Marshal(def flow.Definition) ([]byte, error) {
	var buf bytes.Buffer
	if err := Save(&buf, def); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type questionsFile struct {
	Questions []domain.DefaultQuestion `yaml:"questions"`
}

// LoadQuestions decodes the default question list, either as a top-level
// sequence or under a "questions" key. Ids default to q1, q2, ...
func LoadQuestions(r io.Reader) ([]domain.DefaultQuestion, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode questions", err)
	}
	if len(root.Content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode questions", errors.New("questions file is empty"))
	}

	var questions []domain.DefaultQuestion
	if root.Content[0].Kind == yaml.SequenceNode {
		err = root.Content[0].Decode(&questions)
	} else {
		var file questionsFile
		err = root.Decode(&file)
		questions = file.Questions
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode questions", err)
	}

	seen := make(map[string]struct{}, len(questions))
	out := make([]domain.DefaultQuestion, 0, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode questions", fmt.Errorf("question #%d has no text", i+1))
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode questions", fmt.Errorf("duplicate question id %q", q.ID))
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

func LoadQuestionsFile(path string) ([]domain.DefaultQuestion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions file: %w", err)
	}
	defer f.Close()
	return LoadQuestions(f)
}
