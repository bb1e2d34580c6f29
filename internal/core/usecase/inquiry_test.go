package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

type retrieverFake struct {
	result  domain.MergedRetrievalResult
	queries []string
	k       int
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, k int) domain.MergedRetrievalResult {
	f.queries = append(f.queries, query)
	f.k = k
	out := f.result
	out.Query = query
	return out
}

type resultRepoFake struct {
	saved    []domain.InquiryResult
	included map[string]bool
	saveErr  error
	listed   []domain.InquiryResult
}

func (f *resultRepoFake) Save(_ context.Context, r domain.InquiryResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, r)
	return nil
}

func (f *resultRepoFake) SetIncluded(_ context.Context, id string, included bool) error {
	if f.included == nil {
		f.included = map[string]bool{}
	}
	f.included[id] = included
	return nil
}

func (f *resultRepoFake) List(context.Context) ([]domain.InquiryResult, error) {
	return f.listed, nil
}

func plaintiffRetrieval() domain.MergedRetrievalResult {
	return domain.MergedRetrievalResult{Items: []domain.MergedItem{
		{
			ChunkID: "complaint.txt_0", Filename: "complaint.txt", SectionName: "Parties",
			Text: "The plaintiff John Smith filed a complaint against the defendant.", CombinedScore: 0.9,
			Algorithms: []string{domain.AlgorithmLexical, domain.AlgorithmSemantic},
		},
		{
			ChunkID: "notes.txt_0", Filename: "notes.txt",
			Text: "This is a civil case.", CombinedScore: 0.5,
			Algorithms: []string{domain.AlgorithmLexical},
		},
	}}
}

func TestInquiryAskBuildsResult(t *testing.T) {
	retriever := &retrieverFake{result: plaintiffRetrieval()}
	repo := &resultRepoFake{}
	uc := NewInquiryUseCase(retriever, NewSynthesizer(domain.SynthesisExtraction), WithResultRepository(repo), WithTopK(3))

	res, err := uc.Ask(context.Background(), "  Who is the plaintiff?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if retriever.k != 3 || retriever.queries[0] != "Who is the plaintiff?" {
		t.Fatalf("unexpected retrieval call k=%d queries=%v", retriever.k, retriever.queries)
	}
	if res.ID == "" || res.Kind != domain.InquiryFollowUp || !res.Included {
		t.Fatalf("unexpected result header %+v", res)
	}
	if !strings.Contains(res.Answer, "John Smith") {
		t.Fatalf("expected extracted answer, got %q", res.Answer)
	}
	if math.Abs(res.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected confidence 0.7, got %f", res.Confidence)
	}
	if len(res.Sources) != 2 || res.Sources[0].ChunkID != "complaint.txt_0" {
		t.Fatalf("unexpected sources %+v", res.Sources)
	}
	if res.CitationText != "complaint.txt, Parties (0.90); notes.txt (0.50)" {
		t.Fatalf("unexpected citation text %q", res.CitationText)
	}
	if len(repo.saved) != 1 || repo.saved[0].ID != res.ID {
		t.Fatalf("expected result to be persisted, got %+v", repo.saved)
	}
	if got := uc.Results(); len(got) != 1 || got[0].ID != res.ID {
		t.Fatalf("expected result in running list, got %+v", got)
	}
}

func TestInquiryAskEmptyRetrieval(t *testing.T) {
	retriever := &retrieverFake{result: domain.MergedRetrievalResult{Reason: "no passages matched the query"}}
	uc := NewInquiryUseCase(retriever, NewSynthesizer(domain.SynthesisExtraction))

	res, err := uc.Ask(context.Background(), "Who is the judge?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != NoRelevantInformation || res.Confidence != 0 || len(res.Sources) != 0 {
		t.Fatalf("unexpected empty-context result %+v", res)
	}
}

func TestInquiryAskRejectsEmptyQuestion(t *testing.T) {
	uc := NewInquiryUseCase(&retrieverFake{}, NewSynthesizer(domain.SynthesisExtraction))
	_, err := uc.Ask(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestInquiryPersistFailureDoesNotFail(t *testing.T) {
	repo := &resultRepoFake{saveErr: errors.New("db down")}
	uc := NewInquiryUseCase(&retrieverFake{result: plaintiffRetrieval()}, NewSynthesizer(domain.SynthesisExtraction), WithResultRepository(repo))

	if _, err := uc.Ask(context.Background(), "Who is the plaintiff?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(uc.Results()) != 1 {
		t.Fatalf("expected in-memory result despite persistence failure")
	}
}

func TestInquiryRunDefaultQuestionsInOrder(t *testing.T) {
	retriever := &retrieverFake{result: plaintiffRetrieval()}
	uc := NewInquiryUseCase(retriever, NewSynthesizer(domain.SynthesisExtraction), WithDefaultQuestions([]domain.DefaultQuestion{
		{ID: "parties", Text: "Who is the plaintiff?"},
		{ID: "type", Text: "What kind of case is this?"},
	}))

	results, err := uc.RunDefaultQuestions(context.Background())
	if err != nil {
		t.Fatalf("RunDefaultQuestions() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].QuestionID != "parties" || results[1].QuestionID != "type" {
		t.Fatalf("unexpected order %q, %q", results[0].QuestionID, results[1].QuestionID)
	}
	for _, r := range results {
		if r.Kind != domain.InquiryDefault {
			t.Fatalf("expected default kind, got %s", r.Kind)
		}
	}
	if strings.Join(retriever.queries, "|") != "Who is the plaintiff?|What kind of case is this?" {
		t.Fatalf("unexpected queries %v", retriever.queries)
	}

	follow, err := uc.Ask(context.Background(), "Who is the plaintiff?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	all := uc.Results()
	if len(all) != 3 || all[2].ID != follow.ID {
		t.Fatalf("expected follow-up appended after defaults, got %d results", len(all))
	}
}

func TestInquiryRunDefaultQuestionsStopsOnCancel(t *testing.T) {
	uc := NewInquiryUseCase(&retrieverFake{}, NewSynthesizer(domain.SynthesisExtraction), WithDefaultQuestions([]domain.DefaultQuestion{
		{ID: "a", Text: "A?"},
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := uc.RunDefaultQuestions(ctx)
	if !errors.Is(err, context.Canceled) || len(results) != 0 {
		t.Fatalf("expected cancellation before first question, got %d results err=%v", len(results), err)
	}
}

func TestInquirySetIncluded(t *testing.T) {
	repo := &resultRepoFake{}
	uc := NewInquiryUseCase(&retrieverFake{result: plaintiffRetrieval()}, NewSynthesizer(domain.SynthesisExtraction), WithResultRepository(repo))
	a, _ := uc.Ask(context.Background(), "Who is the plaintiff?")
	b, _ := uc.Ask(context.Background(), "Who is the defendant?")

	if err := uc.SetIncluded(context.Background(), a.ID, false); err != nil {
		t.Fatalf("SetIncluded() error = %v", err)
	}
	if repo.included[a.ID] {
		t.Fatalf("expected repository flag to be cleared")
	}
	var included []domain.InquiryResult
	for _, r := range uc.Results() {
		if r.Included {
			included = append(included, r)
		}
	}
	if len(included) != 1 || included[0].ID != b.ID {
		t.Fatalf("expected only %s included, got %+v", b.ID, included)
	}

	err := uc.SetIncluded(context.Background(), "missing", true)
	if !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}

func TestInquiryRestore(t *testing.T) {
	repo := &resultRepoFake{listed: []domain.InquiryResult{{ID: "r1", Question: "q", Included: true}}}
	uc := NewInquiryUseCase(&retrieverFake{}, NewSynthesizer(domain.SynthesisExtraction), WithResultRepository(repo))

	n, err := uc.Restore(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Restore() = %d, %v", n, err)
	}
	if uc.Results()[0].ID != "r1" {
		t.Fatalf("expected restored result")
	}
}

func TestFormatContext(t *testing.T) {
	got := FormatContext(plaintiffRetrieval().Items)
	want := "[complaint.txt, Parties]: The plaintiff John Smith filed a complaint against the defendant.\n\n" +
		"[notes.txt]: This is a civil case."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if FormatContext(nil) != "" {
		t.Fatalf("expected empty context for no items")
	}
}

func TestInquiryAskStream(t *testing.T) {
	gen := &streamingGeneratorFake{tokens: []string{"John", " Smith"}}
	uc := NewInquiryUseCase(&retrieverFake{result: plaintiffRetrieval()}, NewSynthesizer(domain.SynthesisGenerative, WithGenerator(gen)))

	var b strings.Builder
	res, err := uc.AskStream(context.Background(), "Who is the plaintiff?", func(chunk domain.AnswerChunk) error {
		b.WriteString(chunk.Text)
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	if b.String() != "John Smith" || res.Answer != "John Smith" || res.Mode != domain.SynthesisGenerative {
		t.Fatalf("unexpected stream %q result %+v", b.String(), res)
	}
}
