package domain

import (
	"strconv"
	"strings"
)

// ChunkInput is one pre-split unit of document text as handed to the core.
type ChunkInput struct {
	Text        string `json:"text" yaml:"text"`
	Filename    string `json:"filename" yaml:"filename"`
	ChunkNum    int    `json:"chunk_num" yaml:"chunk_num"`
	SectionName string `json:"section_name,omitempty" yaml:"section_name,omitempty"`
}

// Chunk is an indexed text unit. It is never mutated after BuildChunks returns.
type Chunk struct {
	ID          string `json:"chunk_id"`
	Text        string `json:"text"`
	Filename    string `json:"filename"`
	ChunkNum    int    `json:"chunk_num"`
	SectionName string `json:"section_name,omitempty"`
	WordCount   int    `json:"word_count"`
}

// BuildChunks assigns "{filename}_{n}" ids, n counting chunks of the same file
// in input order, so ids are unique within one call.
func BuildChunks(inputs []ChunkInput) []Chunk {
	if len(inputs) == 0 {
		return nil
	}
	seq := make(map[string]int, 8)
	out := make([]Chunk, 0, len(inputs))
	for _, in := range inputs {
		n := seq[in.Filename]
		seq[in.Filename] = n + 1
		out = append(out, Chunk{
			ID:          in.Filename + "_" + strconv.Itoa(n),
			Text:        in.Text,
			Filename:    in.Filename,
			ChunkNum:    in.ChunkNum,
			SectionName: in.SectionName,
			WordCount:   len(strings.Fields(in.Text)),
		})
	}
	return out
}
