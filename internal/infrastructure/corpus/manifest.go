package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

type manifestFile struct {
	Chunks []domain.ChunkInput `yaml:"chunks"`
}

// LoadManifest decodes pre-split chunks from YAML or JSON. Both a top-level
// list and a document with a "chunks" key are accepted.
func LoadManifest(r io.Reader) ([]domain.ChunkInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "load manifest", errors.New("manifest is empty"))
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load manifest", err)
	}

	var chunks []domain.ChunkInput
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.SequenceNode {
		err = root.Content[0].Decode(&chunks)
	} else {
		var file manifestFile
		err = root.Decode(&file)
		chunks = file.Chunks
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load manifest", err)
	}

	out := make([]domain.ChunkInput, 0, len(chunks))
	for i, c := range chunks {
		c.Text = strings.TrimSpace(c.Text)
		c.Filename = strings.TrimSpace(c.Filename)
		if c.Filename == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load manifest", fmt.Errorf("chunk %d has no filename", i))
		}
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "load manifest", errors.New("manifest has no text"))
	}
	return out, nil
}

func LoadManifestFile(path string) ([]domain.ChunkInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return LoadManifest(f)
}
