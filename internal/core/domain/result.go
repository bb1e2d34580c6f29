package domain

import "time"

type InquiryKind string

const (
	InquiryDefault  InquiryKind = "default"
	InquiryFollowUp InquiryKind = "follow_up"
	InquiryFlow     InquiryKind = "flow"
)

type SynthesisMode string

const (
	SynthesisExtraction SynthesisMode = "extraction"
	SynthesisGenerative SynthesisMode = "generative"
)

type SourceCitation struct {
	ChunkID       string  `json:"chunk_id"`
	Filename      string  `json:"filename"`
	SectionName   string  `json:"section_name,omitempty"`
	CombinedScore float64 `json:"combined_score"`
}

// InquiryResult is one answered question in the running, exportable result list.
type InquiryResult struct {
	ID           string           `json:"id"`
	Kind         InquiryKind      `json:"kind"`
	QuestionID   string           `json:"question_id,omitempty"`
	Question     string           `json:"question"`
	Answer       string           `json:"answer"`
	Sources      []SourceCitation `json:"sources"`
	CitationText string           `json:"citation_text"`
	Confidence   float64          `json:"confidence"`
	Mode         SynthesisMode    `json:"mode"`
	FellBack     bool             `json:"fell_back,omitempty"`
	Included     bool             `json:"included"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AnswerChunk is one piece of a streamed answer. When Replace is set, text
// streamed so far is void and Text holds the complete answer.
type AnswerChunk struct {
	Text    string `json:"text"`
	Replace bool   `json:"replace,omitempty"`
}
