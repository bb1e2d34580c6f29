package domain

type QuestionKind string

const (
	QuestionClassification QuestionKind = "classification"
	QuestionExtraction     QuestionKind = "extraction"
)

// QuestionOption is one branch of a classification question.
type QuestionOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Next  string `json:"next,omitempty" yaml:"next,omitempty"`
}

// QuestionNode is read-only once the graph is loaded. Options is used only by
// classification nodes and Next only by extraction nodes.
type QuestionNode struct {
	ID       string           `json:"id" yaml:"id"`
	Text     string           `json:"text" yaml:"text"`
	Category string           `json:"category,omitempty" yaml:"category,omitempty"`
	Kind     QuestionKind     `json:"type" yaml:"type"`
	Terminal bool             `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Options  []QuestionOption `json:"options,omitempty" yaml:"options,omitempty"`
	Next     string           `json:"next,omitempty" yaml:"next,omitempty"`
}

type AnsweredQuestion struct {
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	Category     string   `json:"category,omitempty"`
	AnswerValue  string   `json:"answer_value"`
	AnswerText   string   `json:"answer_text"`
	Citations    []string `json:"citations,omitempty"`
}

// FlowState: CurrentQuestionID is empty iff IsComplete.
type FlowState struct {
	Answered          []AnsweredQuestion `json:"answered"`
	CurrentQuestionID string             `json:"current_question_id,omitempty"`
	IsComplete        bool               `json:"is_complete"`
}

type TransitionOutcome string

const (
	// TransitionMatched: a classification answer matched an option.
	TransitionMatched TransitionOutcome = "matched"
	// TransitionDefaulted: no option matched, the first option's branch was taken.
	TransitionDefaulted TransitionOutcome = "defaulted"
	// TransitionDirect: an extraction node followed its next field.
	TransitionDirect TransitionOutcome = "direct"
	// TransitionCompleted: the answered node ended the flow.
	TransitionCompleted TransitionOutcome = "completed"
	// TransitionRejected: the answer was not recorded.
	TransitionRejected TransitionOutcome = "rejected"
)

type Transition struct {
	From    string            `json:"from"`
	To      string            `json:"to,omitempty"`
	Outcome TransitionOutcome `json:"outcome"`
	Reason  string            `json:"reason,omitempty"`
}

// FlowProgress is a best-effort estimate: EstimatedRemaining walks only the
// first branch from the current question and may under- or over-count.
type FlowProgress struct {
	Answered           int  `json:"answered"`
	EstimatedRemaining int  `json:"estimated_remaining"`
	EstimatedTotal     int  `json:"estimated_total"`
	IsComplete         bool `json:"is_complete"`
	Approximate        bool `json:"approximate"`
}

// FlowStep is the outcome of answering the current flow question.
type FlowStep struct {
	Result     InquiryResult `json:"result"`
	Transition Transition    `json:"transition"`
	Next       *QuestionNode `json:"next,omitempty"`
	Progress   FlowProgress  `json:"progress"`
}

// DefaultQuestion is one entry of the fixed list answered by a default run.
type DefaultQuestion struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}
