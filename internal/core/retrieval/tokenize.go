package retrieval

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text, drops punctuation other than hyphens and splits on
// whitespace.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if strings.Trim(f, "-") == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
