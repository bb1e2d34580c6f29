package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "punctuation stripped", in: "Who is the plaintiff?", want: []string{"who", "is", "the", "plaintiff"}},
		{name: "hyphen kept", in: "Cross-claim, filed.", want: []string{"cross-claim", "filed"}},
		{name: "digits and money", in: "$500,000 on 12/1", want: []string{"500000", "on", "121"}},
		{name: "lone hyphens dropped", in: "a - b -- c", want: []string{"a", "b", "c"}},
		{name: "underscore stripped", in: "case_id\tfoo\nbar", want: []string{"caseid", "foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUniqueTermsKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"the", "plaintiff", "filed"}, uniqueTerms([]string{"the", "plaintiff", "the", "filed", "plaintiff"}))
}
