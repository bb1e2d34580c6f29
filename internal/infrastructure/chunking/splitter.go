package chunking

import "strings"

// Splitter packs paragraphs into chunks of at most ChunkSize runes. A
// paragraph longer than ChunkSize is cut into overlapping windows.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	paragraphs := Paragraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	out := make([]string, 0, len(paragraphs))
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, p := range paragraphs {
		n := len([]rune(p))
		if n > s.ChunkSize {
			flush()
			out = append(out, s.window(p)...)
			continue
		}
		if currentLen > 0 && currentLen+2+n > s.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(p)
		currentLen += n
	}
	flush()
	return out
}

func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// Paragraphs splits text on blank lines and collapses inner whitespace runs
// within each line.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Split(block, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}
	return out
}
