package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
)

const (
	NoRelevantInformation = "No relevant information was found in the indexed documents."
	NoSpecificAnswer      = "The documents do not contain a specific answer to this question."

	maxAnswerChars           = 500
	maxAnswerSentences       = 3
	minFallbackSentenceChars = 50
	minKeywordLen            = 3
	defaultGenerationTimeout = 60 * time.Second
)

const generativePromptTemplate = `You are assisting with the review of case documents.
Answer the question using only the context below. Each context block starts with its source in square brackets; cite those sources in your answer.
If the context does not contain the answer, say that the documents do not answer it.

Context:
%s

Question: %s

Answer:`

// Synthesis is the synthesizer's output. Mode is the mode that produced
// Answer, which differs from the configured mode after a fallback.
type Synthesis struct {
	Answer   string
	Mode     domain.SynthesisMode
	FellBack bool
}

type SynthesizerOption func(*Synthesizer)

func WithGenerator(generator ports.TextGenerator) SynthesizerOption {
	return func(s *Synthesizer) {
		s.generator = generator
	}
}

func WithGenerationTimeout(d time.Duration) SynthesizerOption {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Synthesizer turns a question and its retrieved context into an answer.
type Synthesizer struct {
	mode      domain.SynthesisMode
	generator ports.TextGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSynthesizer(mode domain.SynthesisMode, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		mode:    mode,
		timeout: defaultGenerationTimeout,
		logger:  slog.Default().With("component", "synthesizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode != domain.SynthesisGenerative {
		s.mode = domain.SynthesisExtraction
	}
	if s.mode == domain.SynthesisGenerative && s.generator == nil {
		s.logger.Warn("synthesis_generator_missing", "mode", s.mode)
		s.mode = domain.SynthesisExtraction
	}
	return s
}

func (s *Synthesizer) Mode() domain.SynthesisMode { return s.mode }

func (s *Synthesizer) Synthesize(ctx context.Context, question, contextText string) Synthesis {
	return s.synthesize(ctx, question, contextText, nil)
}

// SynthesizeStream is Synthesize with generated tokens passed to onChunk as
// they arrive. Extraction answers are delivered as a single chunk, marked
// Replace when a broken stream already delivered partial text.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, question, contextText string, onChunk func(domain.AnswerChunk) error) Synthesis {
	if onChunk == nil {
		return s.Synthesize(ctx, question, contextText)
	}
	delivered := false
	out := s.synthesize(ctx, question, contextText, func(tok string) error {
		delivered = true
		return onChunk(domain.AnswerChunk{Text: tok})
	})
	if out.Mode == domain.SynthesisExtraction {
		_ = onChunk(domain.AnswerChunk{Text: out.Answer, Replace: delivered})
	}
	return out
}

func (s *Synthesizer) synthesize(ctx context.Context, question, contextText string, onToken func(string) error) Synthesis {
	if strings.TrimSpace(contextText) == "" {
		return Synthesis{Answer: NoRelevantInformation, Mode: domain.SynthesisExtraction}
	}
	if s.mode != domain.SynthesisGenerative {
		return Synthesis{Answer: ExtractAnswer(question, contextText), Mode: domain.SynthesisExtraction}
	}

	prompt := fmt.Sprintf(generativePromptTemplate, contextText, question)
	answer, err := s.generate(ctx, prompt, onToken)
	if err == nil {
		answer = strings.TrimSpace(answer)
		if answer != "" {
			return Synthesis{Answer: answer, Mode: domain.SynthesisGenerative}
		}
		err = errors.New("empty response")
	}

	s.logger.Warn("synthesis_fallback", "from", domain.SynthesisGenerative, "to", domain.SynthesisExtraction, "error", err)
	return Synthesis{
		Answer:   ExtractAnswer(question, contextText),
		Mode:     domain.SynthesisExtraction,
		FellBack: true,
	}
}

func (s *Synthesizer) generate(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if streamer, ok := s.generator.(ports.StreamingGenerator); ok && onToken != nil {
		out, err := streamer.GenerateStream(callCtx, prompt, onToken)
		if err != nil {
			return "", domain.WrapError(domain.ErrProviderFailure, "generate stream", err)
		}
		return out, nil
	}

	out, err := s.generator.Generate(callCtx, prompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrProviderFailure, "generate", err)
	}
	return out, nil
}

var citationPrefix = regexp.MustCompile(`(?m)^\s*\[[^\]\n]*\]:[ \t]*`)

// ExtractAnswer picks up to three context sentences sharing the most keywords
// with the question. Citation prefixes are removed before splitting.
func ExtractAnswer(question, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return NoRelevantInformation
	}

	sentences := splitSentences(citationPrefix.ReplaceAllString(contextText, ""))
	keywords := questionKeywords(question)

	type scored struct {
		pos   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, sentence := range sentences {
		if n := keywordOverlap(keywords, sentence); n > 0 {
			ranked = append(ranked, scored{pos: i, score: n})
		}
	}

	if len(ranked) == 0 {
		for _, sentence := range sentences {
			if len([]rune(sentence)) > minFallbackSentenceChars {
				return truncateAtWord(sentence, maxAnswerChars)
			}
		}
		return NoSpecificAnswer
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxAnswerSentences {
		ranked = ranked[:maxAnswerSentences]
	}

	parts := make([]string, 0, len(ranked))
	for _, r := range ranked {
		parts = append(parts, sentences[r.pos])
	}
	return truncateAtWord(strings.Join(parts, " "), maxAnswerChars)
}

func questionKeywords(question string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, token := range splitWordsLower(question) {
		if len([]rune(token)) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

func keywordOverlap(keywords map[string]struct{}, sentence string) int {
	if len(keywords) == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, token := range splitWordsLower(sentence) {
		if _, ok := keywords[token]; ok {
			seen[token] = struct{}{}
		}
	}
	return len(seen)
}

func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "inc": {}, "jr": {}, "sr": {},
	"co": {}, "corp": {}, "ltd": {}, "no": {}, "vs": {}, "v": {}, "st": {},
}

// splitSentences splits on '.', '!' and '?' followed by whitespace, and on
// blank lines. A period after a known abbreviation or a short enumerator
// such as "1." or "12." does not end a sentence.
func splitSentences(text string) []string {
	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	var out []string
	start := 0

	flush := func(end int) {
		sentence := strings.Join(strings.Fields(string(runes[start:end])), " ")
		if sentence != "" {
			out = append(out, sentence)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush(i)
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		end := i + 1
		for end < len(runes) && strings.ContainsRune(`.!?"')]`, runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if r == '.' && nonTerminalPeriod(runes[start:i]) {
			i = end - 1
			continue
		}
		flush(end)
		i = end - 1
	}
	flush(len(runes))
	return out
}

func nonTerminalPeriod(before []rune) bool {
	j := len(before)
	for j > 0 && !unicode.IsSpace(before[j-1]) {
		j--
	}
	word := strings.TrimLeftFunc(strings.ToLower(string(before[j:])), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if word == "" {
		return false
	}
	if _, ok := abbreviations[word]; ok {
		return true
	}
	if len(word) <= 3 {
		for _, r := range word {
			if !unicode.IsDigit(r) {
				return false
			}
		}
		return true
	}
	return false
}

// truncateAtWord cuts s to at most limit runes, backing up to a word boundary.
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	for i := cut; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + ellipsis
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"has": {}, "have": {}, "his": {}, "how": {}, "its": {}, "may": {}, "who": {}, "whom": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "why": {}, "with": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "from": {}, "into": {}, "about": {}, "there": {},
	"their": {}, "they": {}, "them": {}, "were": {}, "been": {}, "being": {}, "does": {},
	"did": {}, "doing": {}, "would": {}, "should": {}, "could": {}, "will": {}, "shall": {},
	"than": {}, "then": {}, "also": {}, "such": {}, "some": {}, "more": {}, "most": {},
	"other": {}, "very": {}, "just": {}, "over": {}, "under": {}, "upon": {}, "your": {},
	"yours": {}, "she": {}, "him": {}, "himself": {}, "herself": {}, "itself": {},
	"please": {}, "tell": {}, "describe": {}, "list": {}, "give": {}, "provide": {},
}
